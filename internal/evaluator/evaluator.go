// Package evaluator 生命体征阈值评估（纯函数，无状态、无 I/O）
package evaluator

import (
	"fmt"
	"strconv"

	"wisefido-vitals/internal/models"
)

// 临床阈值（单一数据源）
const (
	TempCriticalHigh = 39.5 // °C
	TempWarningHigh  = 38.0
	TempCriticalLow  = 35.0
	TempWarningLow   = 36.0

	HeartCriticalHigh = 150 // bpm
	HeartWarningHigh  = 100
	HeartCriticalLow  = 40
	HeartWarningLow   = 60

	SpO2CriticalLow = 90.0 // %
	SpO2WarningLow  = 95.0

	RespCriticalHigh = 30 // 次/分
	RespWarningHigh  = 20
	RespCriticalLow  = 8
	RespWarningLow   = 12
)

// Evaluate 评估单条生命体征记录
// 正常时返回空切片；每个字段最多产生一条报警（严重级别优先判断）
// 输出顺序：体温、心率、血氧、呼吸
func Evaluate(record models.VitalSignRecord) []models.Alert {
	alerts := make([]models.Alert, 0, 4)

	if alert, ok := evaluateTemperature(record.Temperature); ok {
		alerts = append(alerts, alert)
	}
	if alert, ok := evaluateHeartRate(record.HeartRate); ok {
		alerts = append(alerts, alert)
	}
	if alert, ok := evaluateOxygenSaturation(record.OxygenSaturation); ok {
		alerts = append(alerts, alert)
	}
	if alert, ok := evaluateRespiratoryRate(record.RespiratoryRate); ok {
		alerts = append(alerts, alert)
	}

	return alerts
}

func evaluateTemperature(v *float64) (models.Alert, bool) {
	if v == nil {
		return models.Alert{}, false
	}
	t := *v
	switch {
	case t > TempCriticalHigh:
		return critical(models.CategoryTemperature, "High fever: %s°C (>39.5°C)", formatFloat(t)), true
	case t > TempWarningHigh:
		return warning(models.CategoryTemperature, "Fever: %s°C (>38°C)", formatFloat(t)), true
	case t < TempCriticalLow:
		return critical(models.CategoryTemperature, "Hypothermia: %s°C (<35°C)", formatFloat(t)), true
	case t < TempWarningLow:
		return warning(models.CategoryTemperature, "Low temperature: %s°C (<36°C)", formatFloat(t)), true
	}
	return models.Alert{}, false
}

func evaluateHeartRate(v *int) (models.Alert, bool) {
	if v == nil {
		return models.Alert{}, false
	}
	hr := *v
	switch {
	case hr > HeartCriticalHigh:
		return critical(models.CategoryHeartRate, "Severe tachycardia: %d bpm (>150)", hr), true
	case hr > HeartWarningHigh:
		return warning(models.CategoryHeartRate, "Tachycardia: %d bpm (>100)", hr), true
	case hr < HeartCriticalLow:
		return critical(models.CategoryHeartRate, "Severe bradycardia: %d bpm (<40)", hr), true
	case hr < HeartWarningLow:
		return warning(models.CategoryHeartRate, "Bradycardia: %d bpm (<60)", hr), true
	}
	return models.Alert{}, false
}

func evaluateOxygenSaturation(v *float64) (models.Alert, bool) {
	if v == nil {
		return models.Alert{}, false
	}
	spo2 := *v
	switch {
	case spo2 < SpO2CriticalLow:
		return critical(models.CategoryOxygenSaturation, "Critical SpO₂: %s%% (<90%%)", formatFloat(spo2)), true
	case spo2 < SpO2WarningLow:
		return warning(models.CategoryOxygenSaturation, "Low SpO₂: %s%% (<95%%)", formatFloat(spo2)), true
	}
	return models.Alert{}, false
}

func evaluateRespiratoryRate(v *int) (models.Alert, bool) {
	if v == nil {
		return models.Alert{}, false
	}
	rr := *v
	switch {
	case rr > RespCriticalHigh || rr < RespCriticalLow:
		return critical(models.CategoryRespiratoryRate, "Critical resp. rate: %d/min", rr), true
	case rr > RespWarningHigh || rr < RespWarningLow:
		return warning(models.CategoryRespiratoryRate, "Abnormal resp. rate: %d/min", rr), true
	}
	return models.Alert{}, false
}

func critical(category models.Category, format string, args ...interface{}) models.Alert {
	return models.Alert{Category: category, Message: fmt.Sprintf(format, args...), Critical: true}
}

func warning(category models.Category, format string, args ...interface{}) models.Alert {
	return models.Alert{Category: category, Message: fmt.Sprintf(format, args...), Critical: false}
}

// formatFloat 最短表示（40 而非 40.000000）
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
