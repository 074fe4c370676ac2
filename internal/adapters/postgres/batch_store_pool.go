package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ulixee/payments-sub000/internal/ports"
	"gorm.io/gorm"
)

type pooledStore struct {
	slug     string
	db       *gorm.DB
	inflight sync.WaitGroup
}

// BatchStorePool keeps a bounded number of batch stores open. The least
// recently used store is evicted and closed once the grace period has passed
// and its in-flight transactions have finished.
type BatchStorePool struct {
	logger  *slog.Logger
	dialer  Dialer
	grace   time.Duration
	metrics ports.Metrics

	mu     sync.Mutex
	stores *lru.Cache[string, *pooledStore]
	closed sync.WaitGroup
}

func NewBatchStorePool(logger *slog.Logger, dialer Dialer, maxOpen int, grace time.Duration, metrics ports.Metrics) (*BatchStorePool, error) {
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if grace < 0 {
		grace = 0
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	p := &BatchStorePool{
		logger:  logger,
		dialer:  dialer,
		grace:   grace,
		metrics: metrics,
	}
	cache, err := lru.NewWithEvict[string, *pooledStore](maxOpen, p.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create batch store pool: %w", err)
	}
	p.stores = cache
	return p, nil
}

// Provision creates the schema of a new batch store.
func (p *BatchStorePool) Provision(ctx context.Context, slug string) error {
	store, err := p.acquire(ctx, slug)
	if err != nil {
		return err
	}
	defer store.inflight.Done()
	return MigrateBatch(ctx, store.db)
}

func (p *BatchStorePool) Transact(ctx context.Context, slug string, fn func(tx ports.BatchTx) error) error {
	store, err := p.acquire(ctx, slug)
	if err != nil {
		return err
	}
	defer store.inflight.Done()
	return store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(batchTx{db: tx})
	})
}

func (p *BatchStorePool) acquire(ctx context.Context, slug string) (*pooledStore, error) {
	p.mu.Lock()
	if store, ok := p.stores.Get(slug); ok {
		store.inflight.Add(1)
		p.mu.Unlock()
		return store, nil
	}
	p.mu.Unlock()

	db, err := p.dialer.Open(ctx, slug)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if store, ok := p.stores.Get(slug); ok {
		store.inflight.Add(1)
		_ = closeDB(db)
		return store, nil
	}
	store := &pooledStore{slug: slug, db: db}
	store.inflight.Add(1)
	p.stores.Add(slug, store)
	p.metrics.SetOpenStores(p.stores.Len())
	return store, nil
}

// onEvict runs under p.mu from inside the cache, so the close happens on its
// own goroutine.
func (p *BatchStorePool) onEvict(slug string, store *pooledStore) {
	p.closed.Add(1)
	go func() {
		defer p.closed.Done()
		if p.grace > 0 {
			time.Sleep(p.grace)
		}
		store.inflight.Wait()
		if err := closeDB(store.db); err != nil {
			p.logger.Warn("batch store close failed",
				"module", "postgres.batch_store_pool",
				"layer", "adapter",
				"operation", "evict_store",
				"outcome", "failure",
				"batch_slug", slug,
				"error", err,
			)
			return
		}
		p.logger.Info("batch store evicted",
			"module", "postgres.batch_store_pool",
			"layer", "adapter",
			"operation", "evict_store",
			"outcome", "success",
			"batch_slug", slug,
		)
	}()
}

// OpenStores reports how many batch stores currently hold a pool.
func (p *BatchStorePool) OpenStores() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stores.Len()
}

// Close evicts every store and waits for the evictions to finish.
func (p *BatchStorePool) Close() {
	p.mu.Lock()
	p.stores.Purge()
	p.metrics.SetOpenStores(0)
	p.mu.Unlock()
	p.closed.Wait()
}

type batchTx struct {
	db *gorm.DB
}

func (t batchTx) FundingSources() ports.FundingSourceRepository { return &fundingSourceRepository{db: t.db} }
func (t batchTx) Micronotes() ports.MicronoteRepository         { return &micronoteRepository{db: t.db} }
func (t batchTx) Holds() ports.HoldRepository                   { return &holdRepository{db: t.db} }
func (t batchTx) Earnings() ports.EarningRepository             { return &earningRepository{db: t.db} }
func (t batchTx) Payouts() ports.PayoutRepository               { return &payoutRepository{db: t.db} }
