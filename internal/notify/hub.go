package notify

import (
	"sync"
	"time"

	"iot-broker/internal/models"

	"go.uber.org/zap"
)

// Emitter 通知发送方（核心各组件依赖的最小接口）
type Emitter interface {
	Emit(n models.Notification)
}

// Hub 进程内通知分发器
// 每个订阅者一个带缓冲通道。通道满时普通通知丢弃并记录日志；
// alert 通知不丢弃，阻塞等待消费者最多 alertWait（<=0 表示一直等待）。
// 同一设备的通知由同一 goroutine 顺序发出，因此每个订阅者看到的顺序与处理顺序一致。
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan models.Notification
	nextID uint64
	buffer    int
	alertWait time.Duration
	closed    bool
	logger *zap.Logger
}

// NewHub 创建通知分发器
func NewHub(buffer int, alertWait time.Duration, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[uint64]chan models.Notification),
		buffer:    buffer,
		alertWait: alertWait,
		logger:    logger,
	}
}

// Subscribe 注册订阅者，返回通知通道与取消函数
func (h *Hub) Subscribe() (<-chan models.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.Notification, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Emit 向所有订阅者发送通知
func (h *Hub) Emit(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- n:
			continue
		default:
		}

		if n.Kind == models.KindAlert {
			h.sendAlert(id, ch, n)
			continue
		}
		h.logger.Warn("Notification dropped, subscriber buffer full",
			zap.Uint64("subscriber", id),
			zap.String("kind", string(n.Kind)),
			zap.String("device_id", n.DeviceID),
		)
	}
}

// sendAlert 阻塞发送 alert，调用方持有读锁
func (h *Hub) sendAlert(id uint64, ch chan models.Notification, n models.Notification) {
	if h.alertWait <= 0 {
		ch <- n
		return
	}

	timer := time.NewTimer(h.alertWait)
	defer timer.Stop()

	select {
	case ch <- n:
	case <-timer.C:
		h.logger.Error("Alert notification dropped, subscriber stalled",
			zap.Uint64("subscriber", id),
			zap.String("device_id", n.DeviceID),
			zap.Duration("wait", h.alertWait),
		)
	}
}

// Close 关闭所有订阅通道，之后的 Emit 为空操作
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
