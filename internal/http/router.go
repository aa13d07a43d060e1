package httpapi

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const notificationsPath = "/api/v1/vitals/notifications"

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler 带中间件的完整 handler
func (r *Router) Handler() http.Handler {
	return Chain(r, RequestID, Logging(r.logger), Recovery(r.logger))
}

// RegisterSystemRoutes 健康检查与指标
func (r *Router) RegisterSystemRoutes(n *NotificationHandler) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n.Health(w, req)
	})
	r.HandleHandler("/metrics", promhttp.Handler())
}

// RegisterNotificationRoutes 注册通知路由
func (r *Router) RegisterNotificationRoutes(n *NotificationHandler) {
	// list / clear
	r.Handle(notificationsPath, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			n.List(w, req)
		case http.MethodDelete:
			n.ClearAll(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle(notificationsPath+"/summary", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n.Summary(w, req)
	})

	r.Handle(notificationsPath+"/read-all", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n.MarkAllRead(w, req)
	})

	r.Handle(notificationsPath+"/refresh", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n.Refresh(w, req)
	})

	// {id}/read, {id}/ack
	r.Handle(notificationsPath+"/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, notificationsPath+"/")
		id, action, ok := strings.Cut(rest, "/")
		if !ok || id == "" || strings.Contains(action, "/") {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		switch action {
		case "read":
			n.MarkRead(w, req, id)
		case "ack":
			n.Acknowledge(w, req, id)
		default:
			writeJSON(w, http.StatusNotFound, Fail("not found"))
		}
	})
}
