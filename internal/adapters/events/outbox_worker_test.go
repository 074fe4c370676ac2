package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres/storetest"
	"github.com/ulixee/payments-sub000/internal/contracts"
	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

type recordingPublisher struct {
	mu   sync.Mutex
	fail error
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, _ []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.keys = append(p.keys, partitionKey)
	return nil
}

func enqueue(t *testing.T, store *postgres.SharedStore, slug string) {
	t.Helper()
	require.NoError(t, store.Outbox().Enqueue(context.Background(), ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    domain.EventBatchOpened,
		PartitionKey: slug,
		Payload:      []byte(`{"batch_slug":"` + slug + `"}`),
		OccurredAt:   time.Now().UTC(),
	}))
}

func TestOutboxWorkerPublishesOnce(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewSharedStore(storetest.SharedDB(t))
	enqueue(t, store, "aaaa000001")
	enqueue(t, store, "aaaa000002")

	publisher := &recordingPublisher{}
	worker := NewOutboxWorker(slog.New(slog.NewTextHandler(io.Discard, nil)), store.Outbox(), publisher, time.Second, 10, time.Minute, 3)

	published, err := worker.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, published)
	require.ElementsMatch(t, []string{"aaaa000001", "aaaa000002"}, publisher.keys)

	published, err = worker.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, published)
}

func TestOutboxWorkerDeadLettersAfterRetries(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewSharedStore(storetest.SharedDB(t))
	enqueue(t, store, "aaaa000003")

	publisher := &recordingPublisher{fail: errors.New("broker down")}
	worker := NewOutboxWorker(slog.New(slog.NewTextHandler(io.Discard, nil)), store.Outbox(), publisher, time.Second, 10, time.Minute, 2)

	for i := 0; i < 2; i++ {
		published, err := worker.ProcessOnce(ctx)
		require.NoError(t, err)
		require.Zero(t, published)
	}

	publisher.fail = nil
	published, err := worker.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, published)
	require.Empty(t, publisher.keys)
}

func TestLoggingPublisherDecodesBatchEvents(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	publisher := NewLoggingPublisher(slog.New(slog.NewJSONHandler(&logs, nil)))

	data, err := json.Marshal(contracts.BatchClosedPayload{BatchSlug: "aaaa000004", PayoutRecords: 3, DepositedCentagons: 1_500, BurnCentagons: 240})
	require.NoError(t, err)
	envelope, err := json.Marshal(contracts.EventEnvelope{
		EventID:      "evt-1",
		EventType:    domain.EventBatchClosed,
		PartitionKey: "aaaa000004",
		Data:         data,
	})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(ctx, domain.EventBatchClosed, envelope, "aaaa000004"))
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	require.Equal(t, "evt-1", entry["event_id"])
	require.Equal(t, "aaaa000004", entry["batch_slug"])
	require.Equal(t, float64(3), entry["payout_records"])
	require.Equal(t, float64(240), entry["burn_centagons"])

	require.Error(t, publisher.Publish(ctx, domain.EventBatchClosed, envelope, "aaaa000005"))
	require.Error(t, publisher.Publish(ctx, domain.EventBatchSettled, envelope, "aaaa000004"))
	require.Error(t, publisher.Publish(ctx, domain.EventBatchClosed, []byte("not json"), "aaaa000004"))
}

func TestKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "")
	require.Error(t, err)

	publisher, err := NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	require.Equal(t, "micronote-batch-events", publisher.topic)
	require.NoError(t, publisher.Close())
}
