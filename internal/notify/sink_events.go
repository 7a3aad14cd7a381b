package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"guardian/internal/platform/kafka/producer"
)

// Producer is the Kafka publishing port.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink publishes notifications as JSON records keyed by reference id,
// so every notification about one request lands on the same partition.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(p Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(n.ReferenceID),
		Value: payload,
		Headers: map[string]string{
			"kind":            string(n.Kind),
			"notification_id": n.ID,
		},
	})
}

// Publisher is the NATS publishing port.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSSink publishes notifications on <prefix>.<kind>.
type NATSSink struct {
	publisher Publisher
	prefix    string
}

func NewNATSSink(p Publisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "guardian.notifications"
	}
	return &NATSSink{publisher: p, prefix: prefix}
}

func (s *NATSSink) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.publisher.Publish(ctx, s.prefix+"."+string(n.Kind), payload)
}
