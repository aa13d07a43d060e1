package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"wisefido-vitals/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeMQTT 记录发布的消息
type fakeMQTT struct {
	err      error
	failCall int // 第 N 次调用失败（从 1 开始），0 表示不注入
	calls    int
	messages []publishedMessage
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.failCall > 0 && f.calls == f.failCall {
		return errors.New("connection lost")
	}
	f.messages = append(f.messages, publishedMessage{topic: topic, qos: qos, payload: payload})
	return nil
}

func TestMQTTNotifier_Publish(t *testing.T) {
	client := &fakeMQTT{}
	notifier := NewMQTTNotifier(client, "wisefido/vitals/notifications", 1)
	ctx := context.Background()

	snapshot := []models.Notification{
		notification("a", models.SeverityCritical, false),
		notification("b", models.SeverityWarning, false),
	}
	require.NoError(t, notifier.Publish(ctx, snapshot))
	require.NoError(t, notifier.Publish(ctx, snapshot))

	require.Len(t, client.messages, 2)
	assert.Equal(t, "wisefido/vitals/notifications/critical", client.messages[0].topic)
	assert.Equal(t, "wisefido/vitals/notifications/warning", client.messages[1].topic)
	assert.Equal(t, byte(1), client.messages[0].qos)

	var n models.Notification
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &n))
	assert.Equal(t, "a", n.ID)
	assert.Equal(t, []string{"High fever: 40°C (>39.5°C)"}, n.Details)
}

func TestMQTTNotifier_FailureKeepsPending(t *testing.T) {
	client := &fakeMQTT{err: errors.New("not connected")}
	notifier := NewMQTTNotifier(client, "t", 0)
	ctx := context.Background()
	snapshot := []models.Notification{notification("a", models.SeverityCritical, false)}

	assert.Error(t, notifier.Publish(ctx, snapshot))

	client.err = nil
	require.NoError(t, notifier.Publish(ctx, snapshot))
	assert.Len(t, client.messages, 1)
}

func TestMQTTNotifier_CancelledContext(t *testing.T) {
	client := &fakeMQTT{}
	notifier := NewMQTTNotifier(client, "t", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := notifier.Publish(ctx, []models.Notification{notification("a", models.SeverityWarning, false)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.messages)
}

func TestMQTTNotifier_PartialFailureDoesNotDuplicate(t *testing.T) {
	client := &fakeMQTT{failCall: 2}
	notifier := NewMQTTNotifier(client, "t", 0)
	ctx := context.Background()
	snapshot := []models.Notification{
		notification("a", models.SeverityCritical, false),
		notification("b", models.SeverityWarning, false),
		notification("c", models.SeverityWarning, false),
	}

	assert.Error(t, notifier.Publish(ctx, snapshot))
	require.Len(t, client.messages, 1)

	require.NoError(t, notifier.Publish(ctx, snapshot))
	require.Len(t, client.messages, 3)

	ids := make([]string, 0, len(client.messages))
	for _, m := range client.messages {
		var n models.Notification
		require.NoError(t, json.Unmarshal(m.payload, &n))
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
