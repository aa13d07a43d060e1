package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordTimeLayout 住院服务使用的时间格式（yyyy-MM-dd'T'HH:mm:ss，无时区）
const RecordTimeLayout = "2006-01-02T15:04:05"

// recordTimeKeyLayout 保留小数秒（整秒时与 RecordTimeLayout 输出相同）
const recordTimeKeyLayout = "2006-01-02T15:04:05.999999999"

// RecordTime 兼容住院服务时间格式的时间类型
// 支持 "2006-01-02T15:04:05"（可带小数秒）、RFC3339 与 null
// 无法解析的值按零值处理并保留原文，不会导致整批解码失败
type RecordTime struct {
	time.Time
	malformed string
}

// NewRecordTime 构建 RecordTime（统一为 UTC）
func NewRecordTime(t time.Time) RecordTime {
	return RecordTime{Time: t.UTC()}
}

// UnmarshalJSON 解析时间字符串
func (t *RecordTime) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	t.malformed = ""

	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.malformed = string(data)
		return nil
	}

	parsed, err := ParseRecordTime(raw)
	if err != nil {
		t.malformed = raw
		return nil
	}
	t.Time = parsed
	return nil
}

// Malformed 原始值无法解析
func (t RecordTime) Malformed() bool {
	return t.malformed != ""
}

// Raw 无法解析时的原始值
func (t RecordTime) Raw() string {
	return t.malformed
}

// MarshalJSON 按住院服务格式输出
func (t RecordTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// String 返回身份键中使用的时间表示（UTC，保留小数秒）
func (t RecordTime) String() string {
	return t.UTC().Format(recordTimeKeyLayout)
}

// ParseRecordTime 解析时间字符串（空字符串返回零值）
func ParseRecordTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}

	for _, layout := range []string{RecordTimeLayout, "2006-01-02T15:04:05.999999999", time.RFC3339Nano} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid record time: %q", raw)
}

// VitalSignRecord 生命体征记录（住院服务 vitalSignsRecords 中的一项）
// 数值字段为 nil 表示未记录，评估时跳过
type VitalSignRecord struct {
	ID               int64      `json:"id,omitempty"`
	RecordDate       RecordTime `json:"recordDate"`
	Temperature      *float64   `json:"temperature"`      // °C
	HeartRate        *int       `json:"heartRate"`        // bpm
	OxygenSaturation *float64   `json:"oxygenSaturation"` // %
	RespiratoryRate  *int       `json:"respiratoryRate"`  // 次/分
	BloodPressure    string     `json:"bloodPressure,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	RecordedBy       string     `json:"recordedBy,omitempty"`
}

// Hospitalization 住院记录（只读，由外部数据源整体提供）
type Hospitalization struct {
	ID                int64             `json:"id"`
	PatientID         int64             `json:"userId"`
	RoomNumber        string            `json:"roomNumber"`
	Status            string            `json:"status,omitempty"` // pending, active, discharged
	AdmissionReason   string            `json:"admissionReason,omitempty"`
	AdmissionDate     RecordTime        `json:"admissionDate"`
	DischargeDate     RecordTime        `json:"dischargeDate"`
	AttendingDoctorID int64             `json:"attendingDoctorId,omitempty"`
	VitalSigns        []VitalSignRecord `json:"vitalSignsRecords"`
}

// MalformedTimes 统计无法解析的时间字段数量
func (h Hospitalization) MalformedTimes() int {
	count := 0
	if h.AdmissionDate.Malformed() {
		count++
	}
	if h.DischargeDate.Malformed() {
		count++
	}
	for _, vs := range h.VitalSigns {
		if vs.RecordDate.Malformed() {
			count++
		}
	}
	return count
}
