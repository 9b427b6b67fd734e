package models

import "time"

// 遥测测量名与标签
const (
	TelemetryMeasurement = "device_telemetry"

	TagDeviceID   = "device_id"
	TagDeviceType = "device_type"
	TagLocation   = "location"

	UnknownTag = "unknown"
)

// 默认值（字段缺失时使用）
const (
	DefaultTemperature = 0
	DefaultHumidity    = 0
	DefaultPressure    = 0
	DefaultBattery     = 100
)

// TelemetryField 已知遥测字段
type TelemetryField string

const (
	FieldTemperature TelemetryField = "temperature"
	FieldHumidity    TelemetryField = "humidity"
	FieldPressure    TelemetryField = "pressure"
	FieldBattery     TelemetryField = "battery"
)

// TelemetryReading 单条遥测读数（瞬态，不在核心中保留）
type TelemetryReading struct {
	DeviceID    string    `json:"device_id"`
	DeviceType  string    `json:"device_type"`
	Location    string    `json:"location"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	Battery     float64   `json:"battery"`
	Timestamp   time.Time `json:"timestamp"`
}

// Tags 时序点标签
func (r *TelemetryReading) Tags() map[string]string {
	return map[string]string{
		TagDeviceID:   r.DeviceID,
		TagDeviceType: r.DeviceType,
		TagLocation:   r.Location,
	}
}

// Fields 时序点字段
func (r *TelemetryReading) Fields() map[string]float64 {
	return map[string]float64{
		string(FieldTemperature): r.Temperature,
		string(FieldHumidity):    r.Humidity,
		string(FieldPressure):    r.Pressure,
		string(FieldBattery):     r.Battery,
	}
}
