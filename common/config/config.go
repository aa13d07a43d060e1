package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（Broker 为空表示不启用）
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量覆盖配置（prefix 如 "DB"），未设置的保持原值
// 读取 <prefix>_HOST/_PORT/_USER/_PASSWORD/_NAME/_SSLMODE/_MAX_CONNS/_MAX_IDLE
func (c *DatabaseConfig) LoadFromEnv(prefix string) error {
	setString(&c.Host, prefix+"_HOST")
	setString(&c.User, prefix+"_USER")
	setString(&c.Password, prefix+"_PASSWORD")
	setString(&c.Database, prefix+"_NAME")
	setString(&c.SSLMode, prefix+"_SSLMODE")

	if err := setInt(&c.Port, prefix+"_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.MaxConns, prefix+"_MAX_CONNS"); err != nil {
		return err
	}
	return setInt(&c.MaxIdle, prefix+"_MAX_IDLE")
}

// LoadFromEnv 从环境变量覆盖Redis配置（<prefix>_ADDR/_PASSWORD/_DB）
func (c *RedisConfig) LoadFromEnv(prefix string) error {
	setString(&c.Addr, prefix+"_ADDR")
	setString(&c.Password, prefix+"_PASSWORD")
	return setInt(&c.DB, prefix+"_DB")
}

// LoadFromEnv 从环境变量覆盖MQTT配置（<prefix>_BROKER/_CLIENT_ID/_USERNAME/_PASSWORD/_QOS）
func (c *MQTTConfig) LoadFromEnv(prefix string) error {
	setString(&c.Broker, prefix+"_BROKER")
	setString(&c.ClientID, prefix+"_CLIENT_ID")
	setString(&c.Username, prefix+"_USERNAME")
	setString(&c.Password, prefix+"_PASSWORD")

	qos := int(c.QoS)
	if err := setInt(&qos, prefix+"_QOS"); err != nil {
		return err
	}
	if qos < 0 || qos > 2 {
		return fmt.Errorf("invalid %s_QOS %d: must be 0, 1 or 2", prefix, qos)
	}
	c.QoS = byte(qos)
	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = n
	return nil
}
