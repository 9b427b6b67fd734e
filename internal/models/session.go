package models

import "time"

// DeviceSession 设备会话（由 Session Registry 独占，外部只拿到副本）
type DeviceSession struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}
