package models

import "time"

// Severity 通知严重级别
type Severity string

const (
	SeverityCritical Severity = "critical" // 立即危险
	SeverityWarning  Severity = "warning"  // 异常但非立即危险
)

// IsValid 检查严重级别是否合法
func (s Severity) IsValid() bool {
	return s == SeverityCritical || s == SeverityWarning
}

// Category 报警类别
type Category string

const (
	CategoryTemperature      Category = "temperature"
	CategoryHeartRate        Category = "heartRate"
	CategoryOxygenSaturation Category = "oxygenSaturation"
	CategoryRespiratoryRate  Category = "respiratoryRate"
	CategoryMultiple         Category = "multiple" // 同一条记录触发多个报警
)

// Alert 单条规则命中结果（由单条生命体征记录推导，无状态）
type Alert struct {
	Category Category `json:"type"`
	Message  string   `json:"message"`
	Critical bool     `json:"critical"`
}

// Notification 通知（引擎持有的状态单元）
// 除 Read / Acknowledged 外，创建后其余字段不可变
type Notification struct {
	ID                string    `json:"id"` // "<hospitalizationId>-<recordDate>"
	HospitalizationID int64     `json:"hospitalizationId"`
	PatientID         int64     `json:"patientId"`
	RoomNumber        string    `json:"roomNumber"`
	Category          Category  `json:"type"`
	Message           string    `json:"message"`
	Details           []string  `json:"details"`
	Severity          Severity  `json:"severity"`
	Timestamp         time.Time `json:"timestamp"` // 生命体征记录时间，而非检测时间
	Read              bool      `json:"read"`
	Acknowledged      bool      `json:"acknowledged"`
}

// Clone 深拷贝（Details 切片独立）
func (n Notification) Clone() Notification {
	if n.Details != nil {
		details := make([]string, len(n.Details))
		copy(details, n.Details)
		n.Details = details
	}
	return n
}
