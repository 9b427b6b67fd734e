package telemetry

import (
	"fmt"
	"strconv"

	"iot-broker/internal/models"
)

// Threshold 字段允许范围（闭区间）
type Threshold struct {
	Min float64
	Max float64
}

// Contains 值是否在范围内
func (t Threshold) Contains(v float64) bool {
	return v >= t.Min && v <= t.Max
}

// 固定阈值表；pressure 没有阈值，不做检查
var thresholds = map[models.TelemetryField]Threshold{
	models.FieldTemperature: {Min: -10, Max: 50},
	models.FieldHumidity:    {Min: 0, Max: 100},
	models.FieldBattery:     {Min: 10, Max: 100},
}

// 检查顺序固定，保证同一读数产生的报警顺序稳定
var checkedFields = []models.TelemetryField{
	models.FieldTemperature,
	models.FieldHumidity,
	models.FieldBattery,
}

// ThresholdFor 返回字段阈值
func ThresholdFor(field models.TelemetryField) (Threshold, bool) {
	t, ok := thresholds[field]
	return t, ok
}

// DetectAnomalies 对解码后负载中出现的已知字段做阈值检查
// 只查阈值表里的字段名，负载中的其他键一律忽略；缺失或非数值字段不检查。
func DetectAnomalies(values map[models.TelemetryField]float64) []models.AlertInput {
	var alerts []models.AlertInput
	for _, field := range checkedFields {
		v, ok := values[field]
		if !ok {
			continue
		}
		if thresholds[field].Contains(v) {
			continue
		}
		alerts = append(alerts, models.AlertInput{
			Type:     models.AlertTypeAnomaly,
			Message:  fmt.Sprintf("%s out of range: %s", field, formatValue(v)),
			Severity: models.SeverityWarning,
		})
	}
	return alerts
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
