package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "wisefido-vitals/common/redis"
	"wisefido-vitals/internal/models"

	"github.com/go-redis/redis/v8"
)

// Snapshot Redis 中保存的日志快照
type Snapshot struct {
	Caller         string                `json:"caller"`
	Total          int                   `json:"total"`
	Unread         int                   `json:"unread"`
	CriticalUnread int                   `json:"critical_unread"`
	Notifications  []models.Notification `json:"notifications"`
	UpdatedAt      int64                 `json:"updated_at"`
}

// RedisSnapshot 把完整日志镜像到 Redis（SET + TTL），供其他服务读取
type RedisSnapshot struct {
	client *redis.Client
	key    string
	caller string
	ttl    time.Duration
}

// NewRedisSnapshot 创建快照镜像，键为 keyPrefix + caller
func NewRedisSnapshot(client *redis.Client, keyPrefix, caller string, ttl time.Duration) *RedisSnapshot {
	return &RedisSnapshot{
		client: client,
		key:    keyPrefix + caller,
		caller: caller,
		ttl:    ttl,
	}
}

func (s *RedisSnapshot) Name() string { return "redis_snapshot" }

// Key 快照键
func (s *RedisSnapshot) Key() string { return s.key }

// Publish 写入快照
func (s *RedisSnapshot) Publish(ctx context.Context, snapshot []models.Notification) error {
	payload := Snapshot{
		Caller:        s.caller,
		Total:         len(snapshot),
		Notifications: snapshot,
		UpdatedAt:     time.Now().Unix(),
	}
	if payload.Notifications == nil {
		payload.Notifications = []models.Notification{}
	}
	for _, n := range snapshot {
		if !n.Read {
			payload.Unread++
			if n.Severity == models.SeverityCritical {
				payload.CriticalUnread++
			}
		}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key, jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set notification snapshot: %w", err)
	}

	return nil
}

// RedisStream 把新出现的通知逐条写入 Redis Stream
type RedisStream struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	tracker *tracker
}

// NewRedisStream 创建 Stream 发布器
func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	return &RedisStream{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		tracker: newTracker(),
	}
}

func (s *RedisStream) Name() string { return "redis_stream" }

// Publish 只发布上次快照之后新增的通知
// 已写入的条目立即记录，失败后只重试尚未写入的部分
func (s *RedisStream) Publish(ctx context.Context, snapshot []models.Notification) error {
	for _, n := range s.tracker.fresh(snapshot) {
		if _, err := rediscommon.PublishJSONToStream(ctx, s.client, s.stream, s.maxLen, n); err != nil {
			return fmt.Errorf("failed to publish notification %s to stream: %w", n.ID, err)
		}
		s.tracker.mark(n.ID)
	}

	s.tracker.commit(snapshot)
	return nil
}
