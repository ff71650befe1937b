package alerting

import (
	"context"
	"fmt"

	"github.com/aquasense/waterquality-server/internal/protocol"
	"github.com/aquasense/waterquality-server/internal/queue"
)

// KafkaDispatcher publishes alert notifications to the alerts topic,
// keyed by device and parameter so notifications for one sensor stay in
// order.
type KafkaDispatcher struct {
	producer *queue.Producer
}

// NewKafkaDispatcher creates a Kafka-backed notification dispatcher
func NewKafkaDispatcher(producer *queue.Producer) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer}
}

// Dispatch encodes and publishes one notification
func (d *KafkaDispatcher) Dispatch(ctx context.Context, notification *protocol.AlertNotification) error {
	data, err := protocol.EncodeAlertNotification(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	key := fmt.Sprintf("%s-%s", notification.DeviceID, notification.Parameter)
	return d.producer.Publish(ctx, key, data)
}
