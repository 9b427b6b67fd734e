package repository

import (
	"context"
	"database/sql"
	"fmt"

	"iot-broker/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeviceEventsRepository 设备事件仓库
type DeviceEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceEventsRepository 创建设备事件仓库
func NewDeviceEventsRepository(db *sql.DB, logger *zap.Logger) *DeviceEventsRepository {
	return &DeviceEventsRepository{
		db:     db,
		logger: logger,
	}
}

// InsertEvent 持久化设备事件；EventID 为空时自动生成
func (r *DeviceEventsRepository) InsertEvent(ctx context.Context, event *models.DeviceEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}

	var data interface{}
	if len(event.Data) > 0 {
		data = string(event.Data)
	}

	query := `
		INSERT INTO device_events (
			event_id,
			device_id,
			event_type,
			message,
			data,
			severity,
			timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.DeviceID,
		event.EventType,
		event.Message,
		data,
		string(event.Severity),
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert device event: %w", models.ErrSinkWrite, err)
	}

	r.logger.Debug("Device event inserted",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.String("event_type", event.EventType),
	)
	return nil
}
