package models

import (
	"encoding/json"
	"time"
)

// NotificationKind 通知类型
type NotificationKind string

const (
	KindDeviceConnected    NotificationKind = "device-connected"
	KindDeviceDisconnected NotificationKind = "device-disconnected"
	KindTelemetry          NotificationKind = "telemetry"
	KindStatusUpdate       NotificationKind = "status-update"
	KindDeviceEvent        NotificationKind = "device-event"
	KindAlert              NotificationKind = "alert"
)

// Notification 进程内通知，按核心处理顺序发出
// 仅与 Kind 对应的负载字段非空
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	DeviceID  string           `json:"device_id"`
	Timestamp time.Time        `json:"timestamp"`

	Reading *TelemetryReading   `json:"reading,omitempty"`
	Status  *DeviceStatusUpdate `json:"status,omitempty"`
	Event   *DeviceEvent        `json:"event,omitempty"`
	Alert   *AlertInput         `json:"alert,omitempty"`

	// 原始解码负载（telemetry / status-update / device-event）
	Payload json.RawMessage `json:"payload,omitempty"`
}
