package httpapi

import (
	"context"
	"errors"
	"net/http"

	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/notification"

	"go.uber.org/zap"
)

// NotificationService 通知引擎对外操作（notification.Engine 实现）
type NotificationService interface {
	Notifications() []models.Notification
	FilterBySeverity(severity models.Severity) []models.Notification
	FilterByUnread() []models.Notification
	UnreadCount() int
	CriticalUnreadCount() int
	MarkAllRead()
	MarkRead(id string)
	Acknowledge(id string)
	ClearAll()
	Refresh(ctx context.Context) (int, error)
	State() notification.State
	Stats() notification.Stats
}

// NotificationHandler 通知 HTTP 处理器
type NotificationHandler struct {
	service NotificationService
	logger  *zap.Logger
	checks  []healthCheck
}

type healthCheck struct {
	name  string
	check func() bool
}

func NewNotificationHandler(service NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, logger: logger}
}

// Summary 汇总
type Summary struct {
	Total          int                `json:"total"`
	Unread         int                `json:"unread"`
	CriticalUnread int                `json:"critical_unread"`
	State          string             `json:"state"`
	Stats          notification.Stats `json:"stats"`
}

// List GET /api/v1/vitals/notifications?severity=critical|warning&unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	severity := models.Severity(q.Get("severity"))
	unread := parseBool(q.Get("unread"), false)

	var list []models.Notification
	switch {
	case severity != "":
		if !severity.IsValid() {
			writeJSON(w, http.StatusBadRequest, Fail("invalid severity: must be critical or warning"))
			return
		}
		list = h.service.FilterBySeverity(severity)
		if unread {
			list = keepUnread(list)
		}
	case unread:
		list = h.service.FilterByUnread()
	default:
		list = h.service.Notifications()
	}

	writeJSON(w, http.StatusOK, Ok(list))
}

// Summary GET /api/v1/vitals/notifications/summary
func (h *NotificationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(Summary{
		Total:          len(h.service.Notifications()),
		Unread:         h.service.UnreadCount(),
		CriticalUnread: h.service.CriticalUnreadCount(),
		State:          h.service.State().String(),
		Stats:          h.service.Stats(),
	}))
}

// MarkAllRead POST /api/v1/vitals/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.service.MarkAllRead()
	writeJSON(w, http.StatusOK, Ok(map[string]any{"unread": h.service.UnreadCount()}))
}

// MarkRead POST /api/v1/vitals/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, id string) {
	h.service.MarkRead(id)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id}))
}

// Acknowledge POST /api/v1/vitals/notifications/{id}/ack
func (h *NotificationHandler) Acknowledge(w http.ResponseWriter, r *http.Request, id string) {
	h.service.Acknowledge(id)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id}))
}

// ClearAll DELETE /api/v1/vitals/notifications
func (h *NotificationHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	h.service.ClearAll()
	writeJSON(w, http.StatusOK, Ok(map[string]any{"total": 0}))
}

// Refresh POST /api/v1/vitals/notifications/refresh
func (h *NotificationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	added, err := h.service.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, notification.ErrGatedOff) {
			writeJSON(w, http.StatusForbidden, Fail(err.Error()))
			return
		}
		h.logger.Error("Manual refresh failed",
			zap.String("request_id", r.Header.Get(requestIDHeader)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"added": added}))
}

// AddHealthCheck 注册下游依赖检查，需在开始服务前调用
// 检查失败时 /healthz 的 status 为 degraded，通知接口不受影响
func (h *NotificationHandler) AddHealthCheck(name string, check func() bool) {
	h.checks = append(h.checks, healthCheck{name: name, check: check})
}

// Health GET /healthz
func (h *NotificationHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status": "ok",
		"state":  h.service.State().String(),
	}
	for _, c := range h.checks {
		if c.check() {
			body[c.name] = "up"
			continue
		}
		body[c.name] = "down"
		body["status"] = "degraded"
		h.logger.Warn("Health check failed", zap.String("check", c.name))
	}
	writeJSON(w, http.StatusOK, Ok(body))
}

func keepUnread(list []models.Notification) []models.Notification {
	out := make([]models.Notification, 0, len(list))
	for _, n := range list {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}
