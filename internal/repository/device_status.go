package repository

import (
	"context"
	"database/sql"
	"fmt"

	"iot-broker/internal/models"

	"go.uber.org/zap"
)

// DeviceStatusRepository 设备状态仓库
type DeviceStatusRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceStatusRepository 创建设备状态仓库
func NewDeviceStatusRepository(db *sql.DB, logger *zap.Logger) *DeviceStatusRepository {
	return &DeviceStatusRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertStatus 按 device_id 插入或更新设备状态
func (r *DeviceStatusRepository) UpsertStatus(ctx context.Context, status *models.DeviceStatusUpdate) error {
	if status.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", models.ErrSinkWrite)
	}

	query := `
		INSERT INTO device_status (
			device_id,
			state,
			battery,
			signal_strength,
			last_seen,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (device_id) DO UPDATE SET
			state = EXCLUDED.state,
			battery = EXCLUDED.battery,
			signal_strength = EXCLUDED.signal_strength,
			last_seen = EXCLUDED.last_seen,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		status.DeviceID,
		status.State,
		status.Battery,
		status.SignalStrength,
		status.LastSeen.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert device status: %w", models.ErrSinkWrite, err)
	}

	r.logger.Debug("Device status upserted",
		zap.String("device_id", status.DeviceID),
		zap.String("state", status.State),
	)
	return nil
}
