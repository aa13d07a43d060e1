package notification

import (
	"fmt"
	"sort"

	"wisefido-vitals/internal/evaluator"
	"wisefido-vitals/internal/models"
)

// roomPlaceholder 房间号缺失时的显示值
const roomPlaceholder = "—"

// IdentityKey 通知身份键：住院ID + 记录时间
// 同一条记录在后续轮询中重复评估不会产生重复通知
func IdentityKey(hospitalizationID int64, record models.VitalSignRecord) string {
	return fmt.Sprintf("%d-%s", hospitalizationID, record.RecordDate.String())
}

// buildCandidates 为未出现在 known 中、且评估结果非空的记录构建候选通知
// known 在同一批次内也会被更新，保证批次内无重复键
func buildCandidates(hospitalizations []models.Hospitalization, known map[string]struct{}) ([]models.Notification, int) {
	var candidates []models.Notification
	evaluated := 0

	for _, h := range hospitalizations {
		for _, vs := range h.VitalSigns {
			key := IdentityKey(h.ID, vs)
			if _, ok := known[key]; ok {
				continue
			}

			evaluated++
			alerts := evaluator.Evaluate(vs)
			if len(alerts) == 0 {
				continue // 生命体征正常
			}

			known[key] = struct{}{}
			candidates = append(candidates, buildNotification(key, h, vs, alerts))
		}
	}

	return candidates, evaluated
}

// buildNotification 由一组报警构建通知
func buildNotification(key string, h models.Hospitalization, vs models.VitalSignRecord, alerts []models.Alert) models.Notification {
	severity := models.SeverityWarning
	for _, a := range alerts {
		if a.Critical {
			severity = models.SeverityCritical
			break
		}
	}

	category := models.CategoryMultiple
	if len(alerts) == 1 {
		category = alerts[0].Category
	}

	room := h.RoomNumber
	if room == "" {
		room = roomPlaceholder
	}

	prefix := "Abnormal vitals"
	if severity == models.SeverityCritical {
		prefix = "Critical vitals"
	}

	details := make([]string, 0, len(alerts))
	for _, a := range alerts {
		details = append(details, a.Message)
	}

	return models.Notification{
		ID:                key,
		HospitalizationID: h.ID,
		PatientID:         h.PatientID,
		RoomNumber:        room,
		Category:          category,
		Message:           fmt.Sprintf("%s — Room %s · Patient #%d", prefix, room, h.PatientID),
		Details:           details,
		Severity:          severity,
		Timestamp:         vs.RecordDate.UTC(),
	}
}

// mergeAndSort 候选在前、已有在后，然后按排序规则稳定排序
func mergeAndSort(candidates, existing []models.Notification) []models.Notification {
	merged := make([]models.Notification, 0, len(candidates)+len(existing))
	merged = append(merged, candidates...)
	merged = append(merged, existing...)
	sortNotifications(merged)
	return merged
}

// sortNotifications critical 在前；同级别按记录时间倒序
func sortNotifications(list []models.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		return less(list[i], list[j])
	})
}

func less(a, b models.Notification) bool {
	if a.Severity != b.Severity {
		return a.Severity == models.SeverityCritical
	}
	return a.Timestamp.After(b.Timestamp)
}

// IsSorted 检查列表是否满足排序规则
func IsSorted(list []models.Notification) bool {
	return sort.SliceIsSorted(list, func(i, j int) bool {
		return less(list[i], list[j])
	})
}
