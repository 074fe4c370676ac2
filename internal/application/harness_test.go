package application_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulixee/payments-sub000/internal/adapters/chain"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres/storetest"
	"github.com/ulixee/payments-sub000/internal/adapters/security"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/domain"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc     *application.Service
	shared  *postgres.SharedStore
	batches *postgres.BatchStorePool
	chain   *chain.StaticBridge
	clock   *clock
	seq     int
}

func newHarness(t *testing.T, cfg application.Config) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := postgres.NewBatchStorePool(logger, storetest.NewDialer(t), 4, 0, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	if cfg.SettlementFeeAddress == "" {
		cfg.SettlementFeeAddress = "ar1fees"
	}
	if cfg.BurnAddress == "" {
		cfg.BurnAddress = "ar1burn"
	}
	h := &harness{
		shared:  postgres.NewSharedStore(storetest.SharedDB(t)),
		batches: pool,
		chain:   chain.NewStaticBridge(100, "tip"),
		clock:   &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.svc = application.NewService(application.Dependencies{
		Config:     cfg,
		Logger:     logger,
		Shared:     h.shared,
		Batches:    pool,
		Chain:      h.chain,
		Keys:       security.Ed25519KeyGenerator{},
		Signer:     security.Ed25519Signer{},
		Encryption: security.NewAESGCMEncryption("test-seed"),
		Clock:      h.clock.Now,
	})
	return h
}

// deposit credits address from outside the ledger, then moves the funds into
// the batch and returns the new funding source id.
func (h *harness) deposit(t *testing.T, batch domain.Batch, address string, centagons int64) int64 {
	t.Helper()
	ctx := context.Background()
	h.seq++
	_, err := h.svc.RecordNote(ctx, domain.Note{
		ToAddress: address,
		Centagons: centagons,
		Type:      domain.NoteTypeTransferIn,
		Timestamp: h.clock.Now().Add(time.Duration(h.seq) * time.Millisecond),
	})
	require.NoError(t, err)

	h.seq++
	result, err := h.svc.Fund(ctx, application.Caller{Address: address}, batch.Slug, domain.Note{
		FromAddress: address,
		ToAddress:   batch.Address,
		Centagons:   centagons,
		Type:        domain.NoteTypeMicronoteFunds,
		Timestamp:   h.clock.Now().Add(time.Duration(h.seq) * time.Millisecond),
	})
	require.NoError(t, err)
	require.Equal(t, centagons*domain.MicrogonsPerCentagon, result.DepositedMicrogons)
	return result.FundsID
}

func (h *harness) remaining(t *testing.T, caller application.Caller, slug string, fundsID int64) int64 {
	t.Helper()
	funds, err := h.svc.ActiveFunds(context.Background(), caller, slug)
	require.NoError(t, err)
	for _, source := range funds {
		if source.ID == fundsID {
			return source.RemainingMicrogons()
		}
	}
	return 0
}
