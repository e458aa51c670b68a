package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"passport-id/internal/platform/kafka/producer"
)

// MessageProducer is the subset of the Kafka producer used for audit events.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaStore publishes events as JSON records keyed by session id, so all
// events of one session land on the same partition in order.
type KafkaStore struct {
	producer MessageProducer
	topic    string
}

func NewKafkaStore(p MessageProducer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic:   s.topic,
		Key:     []byte(event.SessionID),
		Value:   payload,
		Headers: map[string]string{"action": event.Action},
	})
}
