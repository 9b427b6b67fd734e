// Package payload 设备负载解码辅助函数
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"iot-broker/internal/models"
)

// 毫秒时间戳上限 9999-12-31T23:59:59.999Z，超出视为无法解析
const maxEpochMillis = 253402300799999

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// DecodeObject 将 JSON 对象解码到 v；非对象（含 null）返回 ErrDecode
func DecodeObject(data []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: payload is not a JSON object", models.ErrDecode)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %w", models.ErrDecode, err)
	}
	return nil
}

// Object 将 JSON 对象解码为字段表；字段值保持原样，由调用方宽松提取
func Object(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := DecodeObject(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Number 读取数值字段；缺失、null 或非数值返回 false
func Number(raw map[string]json.RawMessage, key string) (float64, bool) {
	v, ok := raw[key]
	if !ok || IsNull(v) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false
	}
	return f, true
}

// NumberPtr 同 Number，缺失时返回 nil
func NumberPtr(raw map[string]json.RawMessage, key string) *float64 {
	f, ok := Number(raw, key)
	if !ok {
		return nil
	}
	return &f
}

// String 按顺序读取第一个非空字段；非字符串值（数字、布尔等）取其 JSON 文本
func String(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || IsNull(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			s = string(bytes.TrimSpace(v))
		}
		if s != "" {
			return s
		}
	}
	return ""
}

// Timestamp 解析毫秒时间戳或时间字符串；缺失、为 0 或无法解析时返回零值
func Timestamp(v json.RawMessage) time.Time {
	if len(v) == 0 {
		return time.Time{}
	}

	var ms float64
	if err := json.Unmarshal(v, &ms); err == nil {
		if ms <= 0 || ms > maxEpochMillis {
			return time.Time{}
		}
		return time.UnixMilli(int64(ms))
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// IsNull JSON 值是否为 null
func IsNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
