package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-vitals/common/config"
)

func TestPublishJSONToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	payload := map[string]interface{}{"id": "7-2025-01-02T10:00:00", "severity": "critical"}
	id, err := PublishJSONToStream(ctx, client, "vitals:test", 0, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "vitals:test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, "critical", decoded["severity"])
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestPublishToStream_ConvertsValues(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	_, err := PublishToStream(ctx, client, "vitals:test", 0, map[string]interface{}{
		"count":    3,
		"critical": true,
		"raw":      []byte("x"),
		"nested":   []string{"a"},
	})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, "vitals:test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "3", msgs[0].Values["count"])
	assert.Equal(t, "true", msgs[0].Values["critical"])
	assert.Equal(t, "x", msgs[0].Values["raw"])
	assert.Equal(t, `["a"]`, msgs[0].Values["nested"])
}
