package publisher

import (
	"context"
	"runtime/debug"
	"time"

	"wisefido-vitals/internal/metrics"
	"wisefido-vitals/internal/models"

	"go.uber.org/zap"
)

// Subscriber 通知日志发布方（notification.Engine）
type Subscriber interface {
	Subscribe() (<-chan []models.Notification, func())
}

// Sink 日志快照的下游
type Sink interface {
	Name() string
	Publish(ctx context.Context, snapshot []models.Notification) error
}

// Forwarder 消费引擎订阅，把每个快照依次交给各个 Sink
// Sink 失败只记录日志，不影响引擎和其他 Sink
type Forwarder struct {
	subscriber Subscriber
	sinks      []Sink
	timeout    time.Duration
	resend     time.Duration
	logger     *zap.Logger
}

// NewForwarder 创建转发器
func NewForwarder(subscriber Subscriber, logger *zap.Logger, sinks ...Sink) *Forwarder {
	return &Forwarder{
		subscriber: subscriber,
		sinks:      sinks,
		timeout:    5 * time.Second,
		logger:     logger,
	}
}

// SetResendInterval 日志没有变化时，按该间隔把最近的快照重新投递给所有 Sink
// 用于刷新带 TTL 的快照并重试上次失败的 Sink；<= 0 关闭
func (f *Forwarder) SetResendInterval(d time.Duration) {
	f.resend = d
}

// Run 阻塞运行，直到 ctx 取消
func (f *Forwarder) Run(ctx context.Context) {
	updates, unsubscribe := f.subscriber.Subscribe()
	defer unsubscribe()

	var resend <-chan time.Time
	if f.resend > 0 {
		ticker := time.NewTicker(f.resend)
		defer ticker.Stop()
		resend = ticker.C
	}

	f.logger.Info("Notification forwarder started",
		zap.Int("sink_count", len(f.sinks)),
		zap.Duration("resend_interval", f.resend),
	)

	var (
		last    []models.Notification
		hasLast bool
	)
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Notification forwarder stopped")
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			last, hasLast = snapshot, true
			f.dispatch(ctx, snapshot)
		case <-resend:
			if hasLast {
				f.dispatch(ctx, last)
			}
		}
	}
}

func (f *Forwarder) dispatch(ctx context.Context, snapshot []models.Notification) {
	for _, sink := range f.sinks {
		f.publish(ctx, sink, snapshot)
	}
}

func (f *Forwarder) publish(ctx context.Context, sink Sink, snapshot []models.Notification) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Sink panic recovered",
				zap.String("sink", sink.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			metrics.PanicsRecovered.WithLabelValues("sink_" + sink.Name()).Inc()
			metrics.SinkPublishTotal.WithLabelValues(sink.Name(), "panic").Inc()
		}
	}()

	sinkCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := sink.Publish(sinkCtx, snapshot); err != nil {
		f.logger.Warn("Failed to publish notifications",
			zap.String("sink", sink.Name()),
			zap.Int("notification_count", len(snapshot)),
			zap.Error(err),
		)
		metrics.SinkPublishTotal.WithLabelValues(sink.Name(), "failed").Inc()
		return
	}

	metrics.SinkPublishTotal.WithLabelValues(sink.Name(), "ok").Inc()
}

// tracker 记录上一次成功投递时日志中的通知 ID
// 只在 Forwarder 的单个 goroutine 中使用
type tracker struct {
	seen map[string]struct{}
}

func newTracker() *tracker {
	return &tracker{seen: make(map[string]struct{})}
}

// fresh 返回 snapshot 中上次未见过的通知
func (t *tracker) fresh(snapshot []models.Notification) []models.Notification {
	var out []models.Notification
	for _, n := range snapshot {
		if _, ok := t.seen[n.ID]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// mark 单条投递成功后立即记录，部分失败时重试不会重复投递
func (t *tracker) mark(id string) {
	t.seen[id] = struct{}{}
}

// commit 以 snapshot 替换已见集合；清空日志后同一 ID 会再次被视为新通知
func (t *tracker) commit(snapshot []models.Notification) {
	seen := make(map[string]struct{}, len(snapshot))
	for _, n := range snapshot {
		seen[n.ID] = struct{}{}
	}
	t.seen = seen
}
