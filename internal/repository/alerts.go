package repository

import (
	"context"
	"database/sql"
	"fmt"

	"iot-broker/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertsRepository 报警仓库
type AlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertsRepository 创建报警仓库
func NewAlertsRepository(db *sql.DB, logger *zap.Logger) *AlertsRepository {
	return &AlertsRepository{
		db:     db,
		logger: logger,
	}
}

// InsertAlert 持久化报警；AlertID 为空时自动生成
func (r *AlertsRepository) InsertAlert(ctx context.Context, alert *models.Alert) error {
	if alert.AlertID == "" {
		alert.AlertID = uuid.New().String()
	}

	query := `
		INSERT INTO alerts (
			alert_id,
			device_id,
			type,
			message,
			severity,
			timestamp
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.DeviceID,
		alert.Type,
		alert.Message,
		string(alert.Severity),
		alert.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert alert: %w", models.ErrSinkWrite, err)
	}

	r.logger.Debug("Alert inserted",
		zap.String("alert_id", alert.AlertID),
		zap.String("device_id", alert.DeviceID),
		zap.String("type", alert.Type),
	)
	return nil
}
