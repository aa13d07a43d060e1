package source

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-vitals/internal/models"

	"go.uber.org/zap"
)

// PostgresSource 直接读取住院服务数据库
type PostgresSource struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSource 创建数据库数据源
func NewPostgresSource(db *sql.DB, logger *zap.Logger) *PostgresSource {
	return &PostgresSource{db: db, logger: logger}
}

const hospitalizationsQuery = `
	SELECT
		h.id,
		COALESCE(h.user_id, 0) as user_id,
		COALESCE(h.room_number, '') as room_number,
		COALESCE(h.status, '') as status,
		COALESCE(h.admission_reason, '') as admission_reason,
		h.admission_date,
		h.discharge_date,
		COALESCE(h.attending_doctor_id, 0) as attending_doctor_id,
		v.id,
		v.record_date,
		v.temperature,
		v.heart_rate,
		v.oxygen_saturation,
		v.respiratory_rate,
		v.blood_pressure,
		v.notes,
		v.recorded_by
	FROM hospitalization h
	LEFT JOIN vital_signs v ON v.hospitalization_id = h.id
	ORDER BY h.id, v.record_date, v.id
`

// FetchAll 获取全部住院记录（含生命体征）
func (s *PostgresSource) FetchAll(ctx context.Context) ([]models.Hospitalization, error) {
	rows, err := s.db.QueryContext(ctx, hospitalizationsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query hospitalizations: %w", err)
	}
	defer rows.Close()

	var (
		result []models.Hospitalization
		index  = make(map[int64]int) // hospitalization id -> result 下标
	)

	for rows.Next() {
		var (
			h             models.Hospitalization
			admissionDate sql.NullTime
			dischargeDate sql.NullTime

			vsID          sql.NullInt64
			recordDate    sql.NullTime
			temperature   sql.NullFloat64
			heartRate     sql.NullInt64
			spo2          sql.NullFloat64
			respRate      sql.NullInt64
			bloodPressure sql.NullString
			notes         sql.NullString
			recordedBy    sql.NullString
		)

		if err := rows.Scan(
			&h.ID,
			&h.PatientID,
			&h.RoomNumber,
			&h.Status,
			&h.AdmissionReason,
			&admissionDate,
			&dischargeDate,
			&h.AttendingDoctorID,
			&vsID,
			&recordDate,
			&temperature,
			&heartRate,
			&spo2,
			&respRate,
			&bloodPressure,
			&notes,
			&recordedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hospitalization row: %w", err)
		}

		i, ok := index[h.ID]
		if !ok {
			if admissionDate.Valid {
				h.AdmissionDate = models.NewRecordTime(admissionDate.Time)
			}
			if dischargeDate.Valid {
				h.DischargeDate = models.NewRecordTime(dischargeDate.Time)
			}
			h.VitalSigns = []models.VitalSignRecord{}
			result = append(result, h)
			i = len(result) - 1
			index[h.ID] = i
		}

		// LEFT JOIN：无生命体征的住院记录
		if !vsID.Valid {
			continue
		}

		vs := models.VitalSignRecord{
			ID:            vsID.Int64,
			BloodPressure: bloodPressure.String,
			Notes:         notes.String,
			RecordedBy:    recordedBy.String,
		}
		if recordDate.Valid {
			vs.RecordDate = models.NewRecordTime(recordDate.Time)
		}
		if temperature.Valid {
			v := temperature.Float64
			vs.Temperature = &v
		}
		if heartRate.Valid {
			v := int(heartRate.Int64)
			vs.HeartRate = &v
		}
		if spo2.Valid {
			v := spo2.Float64
			vs.OxygenSaturation = &v
		}
		if respRate.Valid {
			v := int(respRate.Int64)
			vs.RespiratoryRate = &v
		}

		result[i].VitalSigns = append(result[i].VitalSigns, vs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hospitalization rows: %w", err)
	}

	s.logger.Debug("Loaded hospitalizations from database",
		zap.Int("hospitalization_count", len(result)),
	)

	return result, nil
}
