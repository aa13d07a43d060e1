package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 轮询指标
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_poll_cycles_total",
			Help: "Total number of evaluation cycles",
		},
		[]string{"status"}, // status: ok, failed
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vitals_poll_duration_seconds",
			Help:    "Time taken by one fetch-and-evaluate cycle",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	RecordsEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitals_records_evaluated_total",
			Help: "Total number of vital-sign records evaluated",
		},
	)

	MalformedTimestampsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitals_malformed_timestamps_total",
			Help: "Total number of unparseable timestamps received from the hospitalization service",
		},
	)

	// 通知指标
	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"severity"},
	)

	NotificationLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitals_notification_log_size",
			Help: "Current number of entries in the notification log",
		},
	)

	UnreadNotifications = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vitals_notifications_unread",
			Help: "Current number of unread notifications",
		},
		[]string{"severity"},
	)

	// 下游发布指标
	SinkPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_sink_publish_total",
			Help: "Total number of snapshot deliveries to sinks",
		},
		[]string{"sink", "status"},
	)

	// HTTP 指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitals_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method"},
	)

	// Panic 恢复
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
