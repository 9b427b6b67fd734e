package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"iot-broker/internal/models"

	"go.uber.org/zap"
)

// TelemetryRepository 时序数据仓库（PostgreSQL 实现的时序 sink）
type TelemetryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTelemetryRepository 创建时序数据仓库
func NewTelemetryRepository(db *sql.DB, logger *zap.Logger) *TelemetryRepository {
	return &TelemetryRepository{
		db:     db,
		logger: logger,
	}
}

// WritePoint 写入一个时序点
func (r *TelemetryRepository) WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, ts time.Time) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal tags: %w", models.ErrSinkWrite, err)
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal fields: %w", models.ErrSinkWrite, err)
	}

	query := `
		INSERT INTO telemetry_points (
			measurement,
			device_id,
			tags,
			fields,
			timestamp
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query,
		measurement,
		tags[models.TagDeviceID],
		string(tagsJSON),
		string(fieldsJSON),
		ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert telemetry point: %w", models.ErrSinkWrite, err)
	}

	r.logger.Debug("Telemetry point written",
		zap.String("measurement", measurement),
		zap.String("device_id", tags[models.TagDeviceID]),
		zap.Time("timestamp", ts),
	)
	return nil
}
