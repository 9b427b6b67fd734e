package events

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"iot-broker/internal/models"
	"iot-broker/internal/notify"
	"iot-broker/internal/payload"

	"go.uber.org/zap"
)

// StatusStore 设备状态存储
type StatusStore interface {
	UpsertStatus(ctx context.Context, status *models.DeviceStatusUpdate) error
}

// EventStore 设备事件存储
type EventStore interface {
	InsertEvent(ctx context.Context, event *models.DeviceEvent) error
}

// Alerter 报警入口
type Alerter interface {
	Trigger(ctx context.Context, deviceID string, input models.AlertInput) error
}

// Processor 设备状态与事件处理
type Processor struct {
	statusStore StatusStore
	eventStore  EventStore
	alerter     Alerter
	emitter     notify.Emitter
	timeout     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewProcessor 创建状态与事件处理器
func NewProcessor(
	statusStore StatusStore,
	eventStore EventStore,
	alerter Alerter,
	emitter notify.Emitter,
	timeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		statusStore: statusStore,
		eventStore:  eventStore,
		alerter:     alerter,
		emitter:     emitter,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}
}

// ProcessStatus 处理状态消息：upsert 设备状态并发出 status-update 通知
func (p *Processor) ProcessStatus(ctx context.Context, deviceID string, data []byte) error {
	raw, err := payload.Object(data)
	if err != nil {
		p.logger.Error("Failed to decode status payload",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return err
	}

	now := p.now()
	// 字段类型不符时按缺失处理，不丢弃整条状态
	update := &models.DeviceStatusUpdate{
		DeviceID:       deviceID,
		State:          payload.String(raw, "state"),
		Battery:        payload.NumberPtr(raw, "battery"),
		SignalStrength: payload.NumberPtr(raw, "signal"),
		LastSeen:       now,
	}
	if update.SignalStrength == nil {
		update.SignalStrength = payload.NumberPtr(raw, "signalStrength")
	}

	storeCtx, cancel := withTimeout(ctx, p.timeout)
	err = p.statusStore.UpsertStatus(storeCtx, update)
	cancel()
	if err != nil {
		p.logger.Error("Failed to upsert device status",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	p.emitter.Emit(models.Notification{
		Kind:      models.KindStatusUpdate,
		DeviceID:  deviceID,
		Timestamp: now,
		Status:    update,
		Payload:   rawCopy(data),
	})

	return nil
}

// ProcessEvent 处理事件消息：持久化事件，发出 device-event 通知，error/critical 级别升级为报警
func (p *Processor) ProcessEvent(ctx context.Context, deviceID string, data []byte) error {
	raw, err := payload.Object(data)
	if err != nil {
		p.logger.Error("Failed to decode event payload",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return err
	}

	now := p.now()
	event := &models.DeviceEvent{
		DeviceID:  deviceID,
		EventType: payload.String(raw, "type"),
		Message:   payload.String(raw, "message"),
		Severity:  models.Severity(payload.String(raw, "severity")),
		Timestamp: payload.Timestamp(raw["timestamp"]),
	}
	if v, ok := raw["data"]; ok && !payload.IsNull(v) {
		event.Data = append(json.RawMessage(nil), v...)
	}
	if event.Severity == "" {
		event.Severity = models.SeverityInfo
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}

	storeCtx, cancel := withTimeout(ctx, p.timeout)
	err = p.eventStore.InsertEvent(storeCtx, event)
	cancel()
	if err != nil {
		p.logger.Error("Failed to persist device event",
			zap.String("device_id", deviceID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}

	p.emitter.Emit(models.Notification{
		Kind:      models.KindDeviceEvent,
		DeviceID:  deviceID,
		Timestamp: now,
		Event:     event,
		Payload:   rawCopy(data),
	})

	if event.Severity.Escalates() {
		_ = p.alerter.Trigger(ctx, deviceID, models.AlertInput{
			Type:     event.EventType,
			Message:  event.Message,
			Severity: event.Severity,
		})
	}

	return nil
}

func rawCopy(data []byte) json.RawMessage {
	return append(json.RawMessage(nil), bytes.TrimSpace(data)...)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
