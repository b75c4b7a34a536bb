package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultTopic = "accounts.audit"

// KafkaStore publishes audit events to a Kafka topic, keyed by user id so
// one user's events stay ordered within a partition.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// KafkaOption configures the store.
type KafkaOption func(*KafkaStore)

func WithTopic(topic string) KafkaOption {
	return func(s *KafkaStore) { s.topic = topic }
}

// NewKafkaStore connects to the given brokers. Callers own Close.
func NewKafkaStore(brokers []string, opts ...KafkaOption) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create kafka client: %w", err)
	}
	s := &KafkaStore{client: client, topic: defaultTopic}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.UserID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *KafkaStore) Close() {
	s.client.Close()
}
