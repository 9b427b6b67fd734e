package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"iot-broker/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func floatPtr(f float64) *float64 {
	return &f
}

// ============================================
// 时序写入
// ============================================

func TestWritePoint_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTelemetryRepository(db, zap.NewNop())
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO telemetry_points`).
		WithArgs(
			models.TelemetryMeasurement,
			"d1",
			`{"device_id":"d1","device_type":"unknown","location":"lab"}`,
			`{"battery":5,"humidity":0,"pressure":0,"temperature":-20}`,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.WritePoint(context.Background(), models.TelemetryMeasurement,
		map[string]string{"device_id": "d1", "device_type": "unknown", "location": "lab"},
		map[string]float64{"temperature": -20, "humidity": 0, "pressure": 0, "battery": 5},
		ts,
	)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWritePoint_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTelemetryRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO telemetry_points`).
		WillReturnError(errors.New("connection refused"))

	err := repo.WritePoint(context.Background(), models.TelemetryMeasurement,
		map[string]string{"device_id": "d1"}, map[string]float64{}, time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSinkWrite)
	assert.Contains(t, err.Error(), "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 设备状态
// ============================================

func TestUpsertStatus_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDeviceStatusRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO device_status`).
		WithArgs("d1", "online", 80.0, -67.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertStatus(context.Background(), &models.DeviceStatusUpdate{
		DeviceID:       "d1",
		State:          "online",
		Battery:        floatPtr(80),
		SignalStrength: floatPtr(-67),
		LastSeen:       time.Now(),
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatus_NullableFields(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDeviceStatusRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO device_status`).
		WithArgs("d1", "sleeping", nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertStatus(context.Background(), &models.DeviceStatusUpdate{
		DeviceID: "d1",
		State:    "sleeping",
		LastSeen: time.Now(),
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatus_MissingDeviceID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDeviceStatusRepository(db, zap.NewNop())

	err := repo.UpsertStatus(context.Background(), &models.DeviceStatusUpdate{State: "online"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "device_id is required")
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 设备事件
// ============================================

func TestInsertEvent_GeneratesID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDeviceEventsRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO device_events`).
		WithArgs(sqlmock.AnyArg(), "d1", "overheat", "core temp high", `{"core":91}`, "critical", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &models.DeviceEvent{
		DeviceID:  "d1",
		EventType: "overheat",
		Message:   "core temp high",
		Data:      json.RawMessage(`{"core":91}`),
		Severity:  models.SeverityCritical,
		Timestamp: time.Now(),
	}
	err := repo.InsertEvent(context.Background(), event)

	require.NoError(t, err)
	assert.NotEmpty(t, event.EventID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEvent_NullData(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDeviceEventsRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO device_events`).
		WithArgs("evt-1", "d1", "boot", "", nil, "info", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertEvent(context.Background(), &models.DeviceEvent{
		EventID:   "evt-1",
		DeviceID:  "d1",
		EventType: "boot",
		Severity:  models.SeverityInfo,
		Timestamp: time.Now(),
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEvent_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDeviceEventsRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO device_events`).WillReturnError(sql.ErrConnDone)

	err := repo.InsertEvent(context.Background(), &models.DeviceEvent{DeviceID: "d1", Timestamp: time.Now()})

	assert.ErrorIs(t, err, models.ErrSinkWrite)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

// ============================================
// 报警
// ============================================

func TestInsertAlert_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAlertsRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(sqlmock.AnyArg(), "d1", "anomaly", "temperature out of range: 55", "warning", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	alert := &models.Alert{
		DeviceID:  "d1",
		Type:      models.AlertTypeAnomaly,
		Message:   "temperature out of range: 55",
		Severity:  models.SeverityWarning,
		Timestamp: time.Now(),
	}
	err := repo.InsertAlert(context.Background(), alert)

	require.NoError(t, err)
	assert.NotEmpty(t, alert.AlertID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlert_LogsGeneratedID(t *testing.T) {
	db, mock := setupMockDB(t)
	core, logs := observer.New(zapcore.DebugLevel)
	repo := NewAlertsRepository(db, zap.New(core))

	mock.ExpectExec(`INSERT INTO alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	alert := &models.Alert{DeviceID: "d1", Type: models.AlertTypeAnomaly, Severity: models.SeverityWarning, Timestamp: time.Now()}
	require.NoError(t, repo.InsertAlert(context.Background(), alert))

	entries := logs.FilterMessage("Alert inserted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, alert.AlertID, entries[0].ContextMap()["alert_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlert_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAlertsRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO alerts`).WillReturnError(errors.New("disk full"))

	err := repo.InsertAlert(context.Background(), &models.Alert{DeviceID: "d1", Timestamp: time.Now()})

	assert.ErrorIs(t, err, models.ErrSinkWrite)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Schema
// ============================================

func TestEnsureSchema(t *testing.T) {
	db, mock := setupMockDB(t)

	for range schemaStatements {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, EnsureSchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_StopsOnError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS telemetry_points`).
		WillReturnError(errors.New("permission denied"))

	err := EnsureSchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}
