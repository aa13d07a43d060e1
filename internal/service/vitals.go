package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"wisefido-vitals/common/database"
	"wisefido-vitals/common/mqtt"
	rediscommon "wisefido-vitals/common/redis"
	"wisefido-vitals/internal/auth"
	"wisefido-vitals/internal/config"
	httpapi "wisefido-vitals/internal/http"
	"wisefido-vitals/internal/notification"
	"wisefido-vitals/internal/publisher"
	"wisefido-vitals/internal/source"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// streamMaxLen 新通知 Stream 最大长度（近似裁剪）
const streamMaxLen = 10000

// VitalsService 生命体征通知服务
type VitalsService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB       // 仅 postgres 数据源
	redisClient *redis.Client // 仅启用 Redis 镜像时
	mqttClient  *mqtt.Client  // 仅配置了 MQTT_BROKER 时

	source notification.HospitalizationSource
	roles  notification.RoleSource
	sinks  []publisher.Sink

	mu       sync.Mutex
	engine   *notification.Engine
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	errChan  chan error
}

// NewVitalsService 创建服务并连接外部依赖
func NewVitalsService(cfg *config.Config, logger *zap.Logger) (*VitalsService, error) {
	s := &VitalsService{
		config:  cfg,
		logger:  logger,
		errChan: make(chan error, 1),
	}

	// 1. 数据源
	switch cfg.Vitals.Source {
	case config.SourcePostgres:
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		s.source = source.NewPostgresSource(db, logger)
	default:
		s.source = source.NewHTTPSource(source.HTTPConfig{
			BaseURL: cfg.Vitals.SourceURL,
			Token:   cfg.Vitals.CallerToken,
		}, logger)
	}

	// 2. 角色源
	if cfg.Vitals.CallerToken != "" {
		s.roles = auth.NewTokenRoleSource(cfg.Vitals.CallerToken, []byte(cfg.Vitals.JWTSecret), cfg.Vitals.MonitoringRole)
	} else {
		s.roles = auth.NewStaticRoleSource(map[string]string{cfg.Vitals.Caller: cfg.Vitals.CallerRole})
	}

	// 3. Redis 镜像
	if cfg.Vitals.RedisEnabled {
		client := rediscommon.NewRedisClient(&cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rediscommon.Ping(ctx, client)
		cancel()
		if err != nil {
			client.Close()
			s.closeResources()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redisClient = client
		s.sinks = append(s.sinks,
			publisher.NewRedisSnapshot(client, cfg.Vitals.SnapshotKey, cfg.Vitals.Caller, cfg.SnapshotTTLDuration()),
			publisher.NewRedisStream(client, cfg.Vitals.Stream, streamMaxLen),
		)
	}

	// 4. MQTT 推送
	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("failed to connect to mqtt: %w", err)
		}
		s.mqttClient = client
		s.sinks = append(s.sinks, publisher.NewMQTTNotifier(client, cfg.Vitals.MQTTTopic, cfg.MQTT.QoS))
	}

	return s, nil
}

// Start 启动引擎、转发器与 HTTP 服务（不阻塞）
func (s *VitalsService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return errors.New("vitals service already started")
	}

	s.logger.Info("Starting vitals service",
		zap.String("source", s.config.Vitals.Source),
		zap.String("caller", s.config.Vitals.Caller),
		zap.Int("sink_count", len(s.sinks)),
	)

	listener, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.HTTP.Addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	engine, err := notification.NewEngine(runCtx, notification.Options{
		Source:         s.source,
		Roles:          s.roles,
		Caller:         s.config.Vitals.Caller,
		MonitoringRole: s.config.Vitals.MonitoringRole,
		PollInterval:   s.config.PollIntervalDuration(),
		Logger:         s.logger,
	})
	if err != nil {
		cancel()
		listener.Close()
		return fmt.Errorf("failed to create notification engine: %w", err)
	}

	if len(s.sinks) > 0 {
		forwarder := publisher.NewForwarder(engine, s.logger, s.sinks...)
		forwarder.SetResendInterval(s.config.SnapshotResendInterval())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			forwarder.Run(runCtx)
		}()
	}

	handler := httpapi.NewNotificationHandler(engine, s.logger)
	if s.mqttClient != nil {
		handler.AddHealthCheck("mqtt", s.mqttClient.IsConnected)
	}
	router := httpapi.NewRouter(s.logger)
	router.RegisterSystemRoutes(handler)
	router.RegisterNotificationRoutes(handler)

	server := &http.Server{
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
			s.errChan <- err
		}
	}()

	s.engine = engine
	s.server = server
	s.listener = listener
	s.cancel = cancel

	return nil
}

// Errors HTTP 服务的致命错误
func (s *VitalsService) Errors() <-chan error {
	return s.errChan
}

// Addr HTTP 实际监听地址（Start 之后有效）
func (s *VitalsService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Engine 通知引擎（Start 之后有效）
func (s *VitalsService) Engine() *notification.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Stop 停止服务并关闭连接
func (s *VitalsService) Stop() error {
	s.logger.Info("Stopping vitals service")

	s.mu.Lock()
	server, engine, cancel := s.server, s.engine, s.cancel
	s.mu.Unlock()

	if server != nil {
		ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
		done()
	}
	if engine != nil {
		engine.Stop()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.closeResources()
	return nil
}

func (s *VitalsService) closeResources() {
	// 关闭数据库连接
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	// 关闭 Redis 连接
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
}
