package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS telemetry_points (
		id          BIGSERIAL PRIMARY KEY,
		measurement TEXT        NOT NULL,
		device_id   TEXT        NOT NULL,
		tags        JSONB       NOT NULL DEFAULT '{}',
		fields      JSONB       NOT NULL DEFAULT '{}',
		timestamp   TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_telemetry_points_device_time
		ON telemetry_points (device_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS device_status (
		device_id       TEXT PRIMARY KEY,
		state           TEXT,
		battery         DOUBLE PRECISION,
		signal_strength DOUBLE PRECISION,
		last_seen       TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS device_events (
		event_id   UUID PRIMARY KEY,
		device_id  TEXT        NOT NULL,
		event_type TEXT,
		message    TEXT,
		data       JSONB,
		severity   TEXT        NOT NULL DEFAULT 'info',
		timestamp  TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		alert_id   UUID PRIMARY KEY,
		device_id  TEXT        NOT NULL,
		type       TEXT,
		message    TEXT,
		severity   TEXT,
		timestamp  TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_device_time
		ON alerts (device_id, timestamp DESC)`,
}

// EnsureSchema 创建缺失的表和索引（幂等）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
