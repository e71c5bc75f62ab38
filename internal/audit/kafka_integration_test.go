//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"leadtrack/internal/audit"
	"leadtrack/pkg/testutil/containers"
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

func (s *KafkaStoreSuite) TestAppendIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "leadtrack.audit.test"
	store, err := audit.NewKafkaStore(ctx, s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer store.Close()

	s.Run("topic creation is idempotent", func() {
		again, err := audit.NewKafkaStore(ctx, s.redpanda.Brokers, topic)
		s.Require().NoError(err)
		again.Close()
	})

	s.Require().NoError(store.Append(ctx, audit.Event{
		Action:  string(audit.EventStageUpdated),
		Subject: "*********01",
		Variant: "normalized",
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().NotEmpty(records)

	var got audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(string(audit.EventStageUpdated), got.Action)
	s.Equal("*********01", string(records[0].Key))
}
