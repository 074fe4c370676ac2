package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres/storetest"
	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

func TestLedgerBalancesAndNotes(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewSharedStore(storetest.SharedDB(t))

	note := domain.Note{
		FromAddress: "ar1alice",
		ToAddress:   "ar1bob",
		Centagons:   25,
		Type:        domain.NoteTypeTransfer,
		Timestamp:   time.Now().UTC(),
	}
	note.Hash = note.ComputeHash()

	err := store.Transact(ctx, func(tx ports.SharedTx) error {
		balance, err := tx.Ledger().LockBalance(ctx, "ar1alice")
		require.NoError(t, err)
		require.Zero(t, balance)

		_, err = tx.Ledger().AdjustBalance(ctx, "ar1alice", 100)
		require.NoError(t, err)
		require.NoError(t, tx.Ledger().InsertNote(ctx, note))
		after, err := tx.Ledger().AdjustBalance(ctx, "ar1alice", -note.Centagons)
		require.NoError(t, err)
		require.Equal(t, int64(75), after)
		_, err = tx.Ledger().AdjustBalance(ctx, "ar1bob", note.Centagons)
		return err
	})
	require.NoError(t, err)

	balance, err := store.Ledger().Balance(ctx, "ar1bob")
	require.NoError(t, err)
	require.Equal(t, int64(25), balance)

	got, err := store.Ledger().GetNote(ctx, note.Hash)
	require.NoError(t, err)
	require.Equal(t, note.Centagons, got.Centagons)

	err = store.Ledger().InsertNote(ctx, note)
	require.True(t, errors.Is(err, domain.ErrConflict))

	_, err = store.Ledger().GetNote(ctx, "missing")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestBatchLifecycleMarks(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewSharedStore(storetest.SharedDB(t))
	now := time.Now().UTC()
	closing := now.Add(time.Hour)

	require.NoError(t, store.Batches().Create(ctx, domain.Batch{
		Slug:             "dddd000001",
		Address:          "ar1batch",
		Identity:         "id1batch",
		Type:             domain.BatchTypeMicronote,
		OpenedAt:         now,
		PlannedClosingAt: &closing,
	}))

	err := store.Batches().MarkSettled(ctx, "dddd000001", now)
	require.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, store.Batches().MarkClosed(ctx, "dddd000001", now))
	require.NoError(t, store.Batches().MarkSettled(ctx, "dddd000001", now))

	unsettled, err := store.Batches().ListUnsettled(ctx)
	require.NoError(t, err)
	require.Empty(t, unsettled)
}

func TestOutboxClaimAndPublish(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewSharedStore(storetest.SharedDB(t))
	now := time.Now().UTC()

	eventID := uuid.New()
	require.NoError(t, store.Outbox().Enqueue(ctx, ports.OutboxEvent{
		EventID:      eventID,
		EventType:    domain.EventBatchClosed,
		PartitionKey: "dddd000001",
		Payload:      []byte(`{"batch_slug":"dddd000001"}`),
		OccurredAt:   now,
	}))

	records, err := store.Outbox().ClaimUnpublished(ctx, 10, "claim-1", now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, eventID, records[0].OutboxID)

	again, err := store.Outbox().ClaimUnpublished(ctx, 10, "claim-2", now.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, again)

	require.NoError(t, store.Outbox().MarkPublished(ctx, eventID, "claim-1", now))
}
