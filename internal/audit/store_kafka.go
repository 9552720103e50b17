package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic receives registration audit events.
const DefaultTopic = "regform.audit"

// KafkaStore produces audit events as JSON records keyed by registration id.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

func NewKafkaStore(client *kgo.Client, topic string) *KafkaStore {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaStore{client: client, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.RegistrationID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (s *KafkaStore) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
