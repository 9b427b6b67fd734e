package models

import "time"

// 异常检测报警类型
const AlertTypeAnomaly = "anomaly"

// AlertInput 触发报警的输入
type AlertInput struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Alert 报警记录（仅由 Alert Dispatcher 创建，不可变）
type Alert struct {
	AlertID   string    `json:"alert_id"`
	DeviceID  string    `json:"device_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}
