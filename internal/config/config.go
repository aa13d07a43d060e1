package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wisefido-vitals/common/config"
)

const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Config 生命体征通知服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 通知服务特定配置
	Vitals struct {
		Source    string // http 或 postgres
		SourceURL string // 住院服务地址，如 "http://localhost:8089"

		PollInterval   int    // 轮询间隔（秒），默认 30秒
		MonitoringRole string // 接收通知的角色，默认 "doctor"

		// 调用者（角色门控）
		Caller      string
		CallerRole  string // 无 token 时使用的静态角色
		CallerToken string // Keycloak 访问令牌
		JWTSecret   string

		// Redis 镜像
		RedisEnabled bool
		SnapshotKey  string // 快照键前缀，如 "vitals:notifications:"
		SnapshotTTL  int    // 快照 TTL（秒），默认 120秒
		Stream       string // 新通知 Stream

		MQTTTopic string
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "hospitalization"
	cfg.Database.SSLMode = "disable"
	if err := cfg.Database.LoadFromEnv("DB"); err != nil {
		return nil, err
	}

	cfg.Redis.Addr = "localhost:6379"
	if err := cfg.Redis.LoadFromEnv("REDIS"); err != nil {
		return nil, err
	}

	cfg.MQTT.ClientID = "wisefido-vitals"
	cfg.MQTT.QoS = 1
	if err := cfg.MQTT.LoadFromEnv("MQTT"); err != nil {
		return nil, err
	}

	// 通知服务配置
	cfg.Vitals.Source = getEnv("VITALS_SOURCE", SourceHTTP)
	cfg.Vitals.SourceURL = getEnv("VITALS_SOURCE_URL", "http://localhost:8089")
	cfg.Vitals.MonitoringRole = getEnv("VITALS_MONITORING_ROLE", "doctor")
	cfg.Vitals.Caller = getEnv("VITALS_CALLER", "doctor")
	cfg.Vitals.CallerRole = getEnv("VITALS_CALLER_ROLE", "doctor")
	cfg.Vitals.CallerToken = getEnv("VITALS_CALLER_TOKEN", "")
	cfg.Vitals.JWTSecret = getEnv("VITALS_JWT_SECRET", "")
	cfg.Vitals.SnapshotKey = getEnv("VITALS_SNAPSHOT_KEY", "vitals:notifications:")
	cfg.Vitals.Stream = getEnv("VITALS_STREAM", "vitals:notifications:new")
	cfg.Vitals.MQTTTopic = getEnv("VITALS_MQTT_TOPIC", "wisefido/vitals/notifications")

	var err error
	if cfg.Vitals.PollInterval, err = getEnvInt("VITALS_POLL_INTERVAL", 30); err != nil {
		return nil, err
	}
	if cfg.Vitals.SnapshotTTL, err = getEnvInt("VITALS_SNAPSHOT_TTL", 120); err != nil {
		return nil, err
	}
	if cfg.Vitals.RedisEnabled, err = getEnvBool("VITALS_REDIS_ENABLED", false); err != nil {
		return nil, err
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Vitals.Source {
	case SourceHTTP:
		if c.Vitals.SourceURL == "" {
			return fmt.Errorf("VITALS_SOURCE_URL is required when VITALS_SOURCE=%s", SourceHTTP)
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("invalid VITALS_SOURCE %q: must be %q or %q", c.Vitals.Source, SourceHTTP, SourcePostgres)
	}

	if c.Vitals.PollInterval <= 0 {
		return fmt.Errorf("VITALS_POLL_INTERVAL must be positive, got %d", c.Vitals.PollInterval)
	}
	if c.Vitals.SnapshotTTL <= 0 {
		return fmt.Errorf("VITALS_SNAPSHOT_TTL must be positive, got %d", c.Vitals.SnapshotTTL)
	}
	if c.Vitals.CallerToken != "" && c.Vitals.JWTSecret == "" {
		return fmt.Errorf("VITALS_JWT_SECRET is required when VITALS_CALLER_TOKEN is set")
	}

	return nil
}

// PollIntervalDuration 轮询间隔
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.Vitals.PollInterval) * time.Second
}

// SnapshotTTLDuration 快照 TTL
func (c *Config) SnapshotTTLDuration() time.Duration {
	return time.Duration(c.Vitals.SnapshotTTL) * time.Second
}

// SnapshotResendInterval 快照在 TTL 过半时重新写入
func (c *Config) SnapshotResendInterval() time.Duration {
	return c.SnapshotTTLDuration() / 2
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
