package notify

import (
	"sync"

	"iot-broker/internal/models"
)

// Recorder 记录所有通知的 Emitter，用于测试和调试
type Recorder struct {
	mu            sync.Mutex
	notifications []models.Notification
}

// Emit 记录通知
func (r *Recorder) Emit(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// All 返回已记录通知的副本
func (r *Recorder) All() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.notifications...)
}

// OfKind 返回指定类型的通知
func (r *Recorder) OfKind(kind models.NotificationKind) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Notification
	for _, n := range r.notifications {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
