package alert

import (
	"context"
	"time"

	"iot-broker/internal/models"
	"iot-broker/internal/notify"

	"go.uber.org/zap"
)

// Store 报警持久化
type Store interface {
	InsertAlert(ctx context.Context, alert *models.Alert) error
}

// Dispatcher 报警分发器：报警记录的唯一写入方
type Dispatcher struct {
	store   Store
	emitter notify.Emitter
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewDispatcher 创建报警分发器
// timeout 为单次存储调用超时，<= 0 表示不额外限制
func NewDispatcher(store Store, emitter notify.Emitter, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:   store,
		emitter: emitter,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Trigger 持久化报警并发出 alert 通知
// 持久化失败时仍然发出通知，返回持久化错误
func (d *Dispatcher) Trigger(ctx context.Context, deviceID string, input models.AlertInput) error {
	now := d.now()
	record := &models.Alert{
		DeviceID:  deviceID,
		Type:      input.Type,
		Message:   input.Message,
		Severity:  input.Severity,
		Timestamp: now,
	}

	storeCtx, cancel := withTimeout(ctx, d.timeout)
	err := d.store.InsertAlert(storeCtx, record)
	cancel()
	if err != nil {
		d.logger.Error("Failed to persist alert",
			zap.String("device_id", deviceID),
			zap.String("type", input.Type),
			zap.Error(err),
		)
	}

	d.emitter.Emit(models.Notification{
		Kind:      models.KindAlert,
		DeviceID:  deviceID,
		Timestamp: now,
		Alert:     &input,
	})

	d.logger.Warn("Alert triggered",
		zap.String("device_id", deviceID),
		zap.String("type", input.Type),
		zap.String("severity", string(input.Severity)),
		zap.String("message", input.Message),
	)

	return err
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
