package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-vitals/internal/models"
)

// MQTTPublisher MQTT 发布接口（common/mqtt.Client 实现）
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier 新通知推送到 MQTT，主题为 <topic>/<severity>
type MQTTNotifier struct {
	client  MQTTPublisher
	topic   string
	qos     byte
	tracker *tracker
}

// NewMQTTNotifier 创建 MQTT 推送
func NewMQTTNotifier(client MQTTPublisher, topic string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{
		client:  client,
		topic:   topic,
		qos:     qos,
		tracker: newTracker(),
	}
}

func (m *MQTTNotifier) Name() string { return "mqtt" }

// Publish 只推送上次快照之后新增的通知
func (m *MQTTNotifier) Publish(ctx context.Context, snapshot []models.Notification) error {
	for _, n := range m.tracker.fresh(snapshot) {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal notification %s: %w", n.ID, err)
		}

		if err := m.client.Publish(m.topicFor(n), m.qos, false, payload); err != nil {
			return err
		}
		m.tracker.mark(n.ID)
	}

	m.tracker.commit(snapshot)
	return nil
}

func (m *MQTTNotifier) topicFor(n models.Notification) string {
	return fmt.Sprintf("%s/%s", m.topic, n.Severity)
}
