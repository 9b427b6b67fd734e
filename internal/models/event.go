package models

import (
	"encoding/json"
	"time"
)

// Severity 事件/报警级别
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Escalates 是否需要升级为报警
func (s Severity) Escalates() bool {
	return s == SeverityCritical || s == SeverityError
}

// DeviceEvent 设备事件（创建后不可变）
type DeviceEvent struct {
	EventID   string          `json:"event_id"`
	DeviceID  string          `json:"device_id"`
	EventType string          `json:"event_type"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Severity  Severity        `json:"severity"`
	Timestamp time.Time       `json:"timestamp"`
}
