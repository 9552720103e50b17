//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"regform/internal/platform/kafka"
	"regform/pkg/testutil/containers"
)

type KafkaStoreSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaStoreSuite))
}

func (s *KafkaStoreSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaStoreSuite) TestAppendProducesJSONRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "regform.audit.test"
	producer, err := kafka.New(ctx, s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer producer.Close()

	store := NewKafkaStore(producer, topic)
	s.Require().NoError(store.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(store.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	event := Event{
		Timestamp:      time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		Action:         ActionRegistrationCreated,
		RegistrationID: "r-1",
		Email:          "jean.dupont@example.com",
	}
	s.Require().NoError(store.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollRecords(ctx, 1)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("r-1", string(records[0].Key))

	var got Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event, got)
}
