package models

import "time"

// DeviceStatusUpdate 设备状态（按 DeviceID upsert，核心不保留副本）
type DeviceStatusUpdate struct {
	DeviceID       string    `json:"device_id"`
	State          string    `json:"state"`
	Battery        *float64  `json:"battery,omitempty"`
	SignalStrength *float64  `json:"signal_strength,omitempty"`
	LastSeen       time.Time `json:"last_seen"`
}
