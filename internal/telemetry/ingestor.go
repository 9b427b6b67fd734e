package telemetry

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

// Sink 时序存储
type Sink interface {
	WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, ts time.Time) error
}

// Alerter 报警入口
type Alerter interface {
	Trigger(ctx context.Context, deviceID string, input models.AlertInput) error
}

// Ingestor 遥测数据接入
type Ingestor struct {
	sink    Sink
	alerter Alerter
	emitter notify.Emitter
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestor 创建遥测接入器
func NewIngestor(sink Sink, alerter Alerter, emitter notify.Emitter, timeout time.Duration, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		sink:    sink,
		alerter: alerter,
		emitter: emitter,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest 处理一条遥测消息
// 解析失败时无任何副作用；存储失败只记录日志，继续发通知和做异常检测。
func (i *Ingestor) Ingest(ctx context.Context, deviceID string, data []byte) error {
	receivedAt := i.now()

	decoded, err := decodePayload(data)
	if err != nil {
		i.logger.Error("Failed to decode telemetry payload",
			zap.String("device_id", deviceID),
			zap.Int("payload_size", len(data)),
			zap.Error(err),
		)
		return err
	}

	reading := decoded.reading(deviceID, receivedAt)

	storeCtx, cancel := withTimeout(ctx, i.timeout)
	err = i.sink.WritePoint(storeCtx, models.TelemetryMeasurement, reading.Tags(), reading.Fields(), reading.Timestamp)
	cancel()
	if err != nil {
		i.logger.Error("Failed to write telemetry point",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	i.emitter.Emit(models.Notification{
		Kind:      models.KindTelemetry,
		DeviceID:  deviceID,
		Timestamp: receivedAt,
		Reading:   reading,
		Payload:   append(json.RawMessage(nil), bytes.TrimSpace(data)...),
	})

	for _, input := range DetectAnomalies(decoded.numbers) {
		// 报警分发器自己记录持久化错误
		_ = i.alerter.Trigger(ctx, deviceID, input)
	}

	return nil
}

// decodedTelemetry 解码后的遥测负载
type decodedTelemetry struct {
	numbers    map[models.TelemetryField]float64
	deviceType string
	location   string
	timestamp  time.Time
}

var knownFields = []models.TelemetryField{
	models.FieldTemperature,
	models.FieldHumidity,
	models.FieldPressure,
	models.FieldBattery,
}

func decodePayload(data []byte) (*decodedTelemetry, error) {
	raw, err := payload.Object(data)
	if err != nil {
		return nil, err
	}

	d := &decodedTelemetry{
		numbers: make(map[models.TelemetryField]float64, len(knownFields)),
	}
	for _, field := range knownFields {
		if v, ok := payload.Number(raw, string(field)); ok {
			d.numbers[field] = v
		}
	}
	d.deviceType = payload.String(raw, "type", "deviceType", "device_type")
	d.location = payload.String(raw, "location")
	d.timestamp = payload.Timestamp(raw["timestamp"])

	return d, nil
}

func (d *decodedTelemetry) reading(deviceID string, receivedAt time.Time) *models.TelemetryReading {
	r := &models.TelemetryReading{
		DeviceID:    deviceID,
		DeviceType:  d.deviceType,
		Location:    d.location,
		Temperature: models.DefaultTemperature,
		Humidity:    models.DefaultHumidity,
		Pressure:    models.DefaultPressure,
		Battery:     models.DefaultBattery,
		Timestamp:   d.timestamp,
	}
	if r.DeviceType == "" {
		r.DeviceType = models.UnknownTag
	}
	if r.Location == "" {
		r.Location = models.UnknownTag
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = receivedAt
	}

	if v, ok := d.numbers[models.FieldTemperature]; ok {
		r.Temperature = v
	}
	if v, ok := d.numbers[models.FieldHumidity]; ok {
		r.Humidity = v
	}
	if v, ok := d.numbers[models.FieldPressure]; ok {
		r.Pressure = v
	}
	if v, ok := d.numbers[models.FieldBattery]; ok {
		r.Battery = v
	}
	return r
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
