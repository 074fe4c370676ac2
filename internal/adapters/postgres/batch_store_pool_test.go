package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres/storetest"
	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

func newPool(t *testing.T, maxOpen int) *postgres.BatchStorePool {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := postgres.NewBatchStorePool(logger, storetest.NewDialer(t), maxOpen, 0, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createSource(t *testing.T, pool *postgres.BatchStorePool, slug string, deposited int64) domain.FundingSource {
	t.Helper()
	var source domain.FundingSource
	err := pool.Transact(context.Background(), slug, func(tx ports.BatchTx) error {
		var err error
		source, err = tx.FundingSources().Create(context.Background(), domain.FundingSource{
			OwnerAddress:       "ar1owner",
			BatchAddress:       "ar1batch",
			DepositedMicrogons: deposited,
			Origin:             domain.FundingOriginDeposit,
			OriginHash:         "hash-" + slug,
			CreatedAt:          time.Now().UTC(),
		})
		return err
	})
	require.NoError(t, err)
	return source
}

func TestAllocateRespectsDepositedCeiling(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t, 4)
	require.NoError(t, pool.Provision(ctx, "aaaa000001"))
	source := createSource(t, pool, "aaaa000001", 1000)

	err := pool.Transact(ctx, "aaaa000001", func(tx ports.BatchTx) error {
		updated, err := tx.FundingSources().Allocate(ctx, source.ID, "ar1owner", 600)
		require.NoError(t, err)
		require.Equal(t, int64(400), updated.RemainingMicrogons())

		_, err = tx.FundingSources().Allocate(ctx, source.ID, "ar1owner", 500)
		require.True(t, errors.Is(err, domain.ErrFundsNeeded))
		var ledgerErr *domain.LedgerError
		require.True(t, errors.As(err, &ledgerErr))
		require.Equal(t, int64(500), ledgerErr.MinimumMicrogonsRequired)
		require.Equal(t, int64(400), ledgerErr.MicrogonsRemaining)

		_, err = tx.FundingSources().Allocate(ctx, source.ID, "ar1intruder", 10)
		require.True(t, errors.Is(err, domain.ErrNotFound))

		require.NoError(t, tx.FundingSources().Release(ctx, source.ID, "ar1owner", 100))
		err = tx.FundingSources().Release(ctx, source.ID, "ar1owner", 10_000)
		require.True(t, errors.Is(err, domain.ErrConflict))

		found, ok, err := tx.FundingSources().FindAvailable(ctx, "ar1owner", 500)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, source.ID, found.ID)

		_, ok, err = tx.FundingSources().FindAvailable(ctx, "ar1owner", 501)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestDuplicateOriginIsConflict(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t, 4)
	require.NoError(t, pool.Provision(ctx, "aaaa000002"))
	createSource(t, pool, "aaaa000002", 1000)

	err := pool.Transact(ctx, "aaaa000002", func(tx ports.BatchTx) error {
		_, err := tx.FundingSources().Create(ctx, domain.FundingSource{
			OwnerAddress:       "ar1owner",
			DepositedMicrogons: 10,
			OriginHash:         "hash-aaaa000002",
			CreatedAt:          time.Now().UTC(),
		})
		return err
	})
	require.True(t, errors.Is(err, domain.ErrConflict))
}

func TestEvictedStoresReopenWithTheirData(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t, 1)
	for _, slug := range []string{"bbbb000001", "bbbb000002"} {
		require.NoError(t, pool.Provision(ctx, slug))
		createSource(t, pool, slug, 5000)
	}
	require.Equal(t, 1, pool.OpenStores())

	err := pool.Transact(ctx, "bbbb000001", func(tx ports.BatchTx) error {
		sources, err := tx.FundingSources().List(ctx)
		require.NoError(t, err)
		require.Len(t, sources, 1)
		require.Equal(t, int64(5000), sources[0].DepositedMicrogons)
		return nil
	})
	require.NoError(t, err)
}

func TestTransactRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t, 2)
	require.NoError(t, pool.Provision(ctx, "cccc000001"))
	source := createSource(t, pool, "cccc000001", 1000)

	boom := errors.New("boom")
	err := pool.Transact(ctx, "cccc000001", func(tx ports.BatchTx) error {
		if _, err := tx.FundingSources().Allocate(ctx, source.ID, "ar1owner", 700); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = pool.Transact(ctx, "cccc000001", func(tx ports.BatchTx) error {
		reloaded, err := tx.FundingSources().Get(ctx, source.ID)
		require.NoError(t, err)
		require.Equal(t, int64(0), reloaded.AllocatedMicrogons)
		return nil
	})
	require.NoError(t, err)
}

func TestSchemaNameRejectsUnsafeSlugs(t *testing.T) {
	name, err := postgres.SchemaName("abc123")
	require.NoError(t, err)
	require.Equal(t, "batch_abc123", name)

	_, err = postgres.SchemaName(`x"; drop`)
	require.Error(t, err)
}
