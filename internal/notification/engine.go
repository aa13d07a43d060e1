package notification

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"wisefido-vitals/internal/metrics"
	"wisefido-vitals/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultMonitoringRole = "doctor"
)

var (
	// ErrGatedOff 调用者不是监控角色，引擎不评估
	ErrGatedOff = errors.New("notification engine is gated off for this caller")
	// ErrNoSource 监控角色但未提供数据源
	ErrNoSource = errors.New("hospitalization source is required")
)

// HospitalizationSource 住院记录数据源（外部协作方）
type HospitalizationSource interface {
	FetchAll(ctx context.Context) ([]models.Hospitalization, error)
}

// RoleSource 角色提供方（外部协作方），仅在构造时调用一次
type RoleSource interface {
	RoleOf(ctx context.Context, caller string) (string, error)
}

// Options 引擎构造参数
type Options struct {
	Source         HospitalizationSource
	Roles          RoleSource
	Caller         string
	MonitoringRole string        // 默认 "doctor"
	PollInterval   time.Duration // 默认 30s
	Logger         *zap.Logger
}

// Engine 临床阈值通知引擎
// 通知日志只由引擎持有，对外只发布拷贝
type Engine struct {
	source   HospitalizationSource
	interval time.Duration
	caller   string
	logger   *zap.Logger

	mu    sync.Mutex
	state State
	log   []models.Notification // 始终有序
	known map[string]struct{}   // 日志中的身份键
	subs  map[int]chan []models.Notification
	subID int

	cancel context.CancelFunc
	done   chan struct{}

	cycles   atomic.Uint64
	failures atomic.Uint64
	created  atomic.Uint64
}

// Stats 引擎统计
type Stats struct {
	Cycles   uint64 `json:"cycles"`
	Failures uint64 `json:"failures"`
	Created  uint64 `json:"created"`
}

// NewEngine 创建通知引擎
// 角色在此处解析一次：非监控角色得到 gated-off 引擎；
// 监控角色立即执行首次评估并开始轮询，直到 Stop 或 ctx 取消
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MonitoringRole == "" {
		opts.MonitoringRole = DefaultMonitoringRole
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	e := &Engine{
		source:   opts.Source,
		interval: opts.PollInterval,
		caller:   opts.Caller,
		logger:   opts.Logger.With(zap.String("component", "notification_engine"), zap.String("caller", opts.Caller)),
		state:    StateGatedOff,
		log:      []models.Notification{},
		known:    make(map[string]struct{}),
		subs:     make(map[int]chan []models.Notification),
		done:     make(chan struct{}),
	}

	if !e.isMonitoringRole(ctx, opts.Roles, opts.MonitoringRole) {
		close(e.done)
		e.logger.Info("Notification engine gated off",
			zap.String("monitoring_role", opts.MonitoringRole),
		)
		return e, nil
	}

	if e.source == nil {
		return nil, ErrNoSource
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state = StatePolling

	e.logger.Info("Notification engine started",
		zap.Duration("poll_interval", e.interval),
	)

	go e.run(loopCtx)

	return e, nil
}

// isMonitoringRole 查询调用者角色；查询失败按非监控角色处理
func (e *Engine) isMonitoringRole(ctx context.Context, roles RoleSource, monitoringRole string) bool {
	if roles == nil {
		return false
	}

	role, err := roles.RoleOf(ctx, e.caller)
	if err != nil {
		e.logger.Warn("Failed to resolve caller role",
			zap.Error(err),
		)
		return false
	}

	return role == monitoringRole
}

// run 轮询循环：立即执行一次，之后每个间隔执行一次
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer func() {
		e.mu.Lock()
		if e.state == StatePolling {
			e.state = StateStopped
		}
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Notification engine stopped")
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll 执行一次评估；失败只记录日志，下个周期照常进行
func (e *Engine) poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Evaluation cycle panic recovered",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			metrics.PanicsRecovered.WithLabelValues("notification_engine").Inc()
		}
	}()

	added, err := e.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// 已停止，丢弃本次结果
			return
		}
		e.logger.Error("Failed to evaluate hospitalizations",
			zap.Error(err),
		)
		return
	}

	if added > 0 {
		e.logger.Info("New notifications",
			zap.Int("added", added),
		)
	}
}

// Refresh 执行一次评估周期，返回新增通知数量
// 抓取期间不持锁；去重在合并时针对当时的日志进行，
// 因此与轮询周期并发调用也不会产生重复通知
func (e *Engine) Refresh(ctx context.Context) (int, error) {
	if e.State() == StateGatedOff {
		return 0, ErrGatedOff
	}

	start := time.Now()
	e.cycles.Add(1)

	hospitalizations, err := e.source.FetchAll(ctx)
	metrics.PollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.failures.Add(1)
		metrics.PollCyclesTotal.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("failed to fetch hospitalizations: %w", err)
	}
	metrics.PollCyclesTotal.WithLabelValues("ok").Inc()

	e.mu.Lock()
	defer e.mu.Unlock()

	candidates, evaluated := buildCandidates(hospitalizations, e.known)
	metrics.RecordsEvaluatedTotal.Add(float64(evaluated))

	e.logger.Debug("Evaluated hospitalizations",
		zap.Int("hospitalization_count", len(hospitalizations)),
		zap.Int("evaluated", evaluated),
		zap.Int("candidates", len(candidates)),
	)

	if len(candidates) == 0 {
		return 0, nil
	}

	for _, n := range candidates {
		metrics.NotificationsCreatedTotal.WithLabelValues(string(n.Severity)).Inc()
	}
	e.created.Add(uint64(len(candidates)))

	e.log = mergeAndSort(candidates, e.log)
	e.publishLocked()

	return len(candidates), nil
}

// Stop 停止轮询（幂等）；日志保留
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StatePolling {
		e.state = StateStopped
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	<-e.done
}

// State 当前生命周期状态
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats 返回引擎统计
func (e *Engine) Stats() Stats {
	return Stats{
		Cycles:   e.cycles.Load(),
		Failures: e.failures.Load(),
		Created:  e.created.Load(),
	}
}

// ============================================
// 修改操作（同步执行，执行后总是重新发布完整日志）
// ============================================

// MarkAllRead 全部标记已读
func (e *Engine) MarkAllRead() {
	e.mutate(func(n *models.Notification) bool {
		n.Read = true
		return true
	})
}

// MarkRead 标记单条已读；id 不存在时不做任何修改
func (e *Engine) MarkRead(id string) {
	e.mutate(func(n *models.Notification) bool {
		if n.ID != id {
			return false
		}
		n.Read = true
		return true
	})
}

// Acknowledge 确认通知（同时标记已读）；id 不存在时不做任何修改
func (e *Engine) Acknowledge(id string) {
	e.mutate(func(n *models.Notification) bool {
		if n.ID != id {
			return false
		}
		n.Acknowledged = true
		n.Read = true
		return true
	})
}

// ClearAll 清空日志并遗忘历史，后续周期可再次为同一记录生成通知
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log = []models.Notification{}
	e.known = make(map[string]struct{})
	e.publishLocked()
}

// mutate 写时复制：已发布的切片不会被原地修改
// 没有命中任何通知时不复制日志，但仍重新发布
func (e *Engine) mutate(apply func(n *models.Notification) bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var updated []models.Notification
	for i := range e.log {
		n := e.log[i]
		if !apply(&n) {
			continue
		}
		if updated == nil {
			updated = make([]models.Notification, len(e.log))
			copy(updated, e.log)
		}
		updated[i] = n
	}

	if updated != nil {
		e.log = updated
	}
	e.publishLocked()
}

// ============================================
// 查询（基于当前日志即时计算）
// ============================================

// Notifications 返回当前日志的拷贝
func (e *Engine) Notifications() []models.Notification {
	return e.filter(func(models.Notification) bool { return true })
}

// UnreadCount 未读数量
func (e *Engine) UnreadCount() int {
	return len(e.FilterByUnread())
}

// CriticalUnreadCount 未读且为 critical 的数量
func (e *Engine) CriticalUnreadCount() int {
	return len(e.filter(func(n models.Notification) bool {
		return !n.Read && n.Severity == models.SeverityCritical
	}))
}

// FilterBySeverity 按严重级别过滤
func (e *Engine) FilterBySeverity(severity models.Severity) []models.Notification {
	return e.filter(func(n models.Notification) bool {
		return n.Severity == severity
	})
}

// FilterByUnread 只返回未读
func (e *Engine) FilterByUnread() []models.Notification {
	return e.filter(func(n models.Notification) bool {
		return !n.Read
	})
}

func (e *Engine) filter(keep func(models.Notification) bool) []models.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Notification, 0, len(e.log))
	for _, n := range e.log {
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	return out
}

// ============================================
// 订阅
// ============================================

// Subscribe 订阅日志；立即回放当前日志，之后每次发布推送完整日志
// 通道容量为 1，只保留最新一次发布；调用返回的函数取消订阅并关闭通道
func (e *Engine) Subscribe() (<-chan []models.Notification, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan []models.Notification, 1)
	id := e.subID
	e.subID++
	e.subs[id] = ch
	ch <- cloneAll(e.log)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			close(ch)
		})
	}

	return ch, unsubscribe
}

// publishLocked 向所有订阅者推送日志快照（调用方持锁）
func (e *Engine) publishLocked() {
	for _, ch := range e.subs {
		// 丢弃未消费的旧快照；持锁期间只有这里发送，因此不会阻塞
		select {
		case <-ch:
		default:
		}
		ch <- cloneAll(e.log)
	}

	unread, criticalUnread := 0, 0
	for _, n := range e.log {
		if !n.Read {
			unread++
			if n.Severity == models.SeverityCritical {
				criticalUnread++
			}
		}
	}
	metrics.NotificationLogSize.Set(float64(len(e.log)))
	metrics.UnreadNotifications.WithLabelValues(string(models.SeverityCritical)).Set(float64(criticalUnread))
	metrics.UnreadNotifications.WithLabelValues(string(models.SeverityWarning)).Set(float64(unread - criticalUnread))
}

func cloneAll(list []models.Notification) []models.Notification {
	out := make([]models.Notification, len(list))
	for i, n := range list {
		out[i] = n.Clone()
	}
	return out
}
