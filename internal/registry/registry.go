package registry

import (
	"sort"
	"sync"
	"time"

	"iot-broker/internal/models"
	"iot-broker/internal/notify"

	"go.uber.org/zap"
)

// Registry 设备会话与订阅注册表
// 会话表和订阅表由同一把锁保护：删除会话时同时删除其订阅集合，不会出现孤立订阅。
type Registry struct {
	mu            sync.RWMutex
	sessions      map[string]*models.DeviceSession
	subscriptions map[string]map[string]struct{}

	emitter notify.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistry 创建注册表
func NewRegistry(emitter notify.Emitter, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:      make(map[string]*models.DeviceSession),
		subscriptions: make(map[string]map[string]struct{}),
		emitter:       emitter,
		logger:        logger,
		now:           time.Now,
	}
}

// Connect 创建会话；同 ID 已存在时替换（最后一次连接生效），旧订阅集合一并清空
func (r *Registry) Connect(sessionID string) {
	now := r.now()

	r.mu.Lock()
	r.sessions[sessionID] = &models.DeviceSession{
		ID:          sessionID,
		ConnectedAt: now,
		LastSeen:    now,
	}
	delete(r.subscriptions, sessionID)
	r.mu.Unlock()

	r.logger.Info("Device connected", zap.String("device_id", sessionID))
	r.emitter.Emit(models.Notification{
		Kind:      models.KindDeviceConnected,
		DeviceID:  sessionID,
		Timestamp: now,
	})
}

// Disconnect 删除会话及其订阅；未知 ID 不报错
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	delete(r.subscriptions, sessionID)
	r.mu.Unlock()

	r.logger.Info("Device disconnected", zap.String("device_id", sessionID))
	r.emitter.Emit(models.Notification{
		Kind:      models.KindDeviceDisconnected,
		DeviceID:  sessionID,
		Timestamp: r.now(),
	})
}

// Subscribe 记录订阅（首次订阅时创建集合）
// 未知会话的订阅被忽略，保证订阅集合只属于已跟踪的会话。
func (r *Registry) Subscribe(sessionID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		r.logger.Debug("Subscribe for unknown session ignored",
			zap.String("device_id", sessionID),
			zap.String("topic", topic),
		)
		return
	}

	subs, ok := r.subscriptions[sessionID]
	if !ok {
		subs = make(map[string]struct{})
		r.subscriptions[sessionID] = subs
	}
	subs[topic] = struct{}{}

	r.logger.Info("Device subscribed",
		zap.String("device_id", sessionID),
		zap.String("topic", topic),
	)
}

// Unsubscribe 删除订阅；不存在的主题为空操作
func (r *Registry) Unsubscribe(sessionID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subscriptions[sessionID]
	if !ok {
		return
	}
	delete(subs, topic)

	r.logger.Info("Device unsubscribed",
		zap.String("device_id", sessionID),
		zap.String("topic", topic),
	)
}

// Touch 更新 LastSeen；未知 ID 为空操作
func (r *Registry) Touch(sessionID string) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok && now.After(s.LastSeen) {
		s.LastSeen = now
	}
}

// Session 返回单个会话的副本
func (r *Registry) Session(sessionID string) (models.DeviceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return models.DeviceSession{}, false
	}
	return *s, true
}

// ListSessions 返回所有会话快照（按 ID 排序）
func (r *Registry) ListSessions() []models.DeviceSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.DeviceSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListSubscriptions 返回会话的订阅主题（未知会话返回空）
func (r *Registry) ListSubscriptions(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subscriptions[sessionID]
	out := make([]string, 0, len(subs))
	for topic := range subs {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}
