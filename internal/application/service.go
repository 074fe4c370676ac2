package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

type Service struct {
	cfg        Config
	logger     *slog.Logger
	shared     ports.SharedStore
	batches    ports.BatchStores
	chain      ports.ChainBridge
	keys       ports.KeyGenerator
	signer     ports.Signer
	encryption ports.Encryption
	locks      ports.JobLock
	metrics    ports.Metrics
	registry   *BatchRegistry
	nowFn      func() time.Time
}

type Dependencies struct {
	Config     Config
	Logger     *slog.Logger
	Shared     ports.SharedStore
	Batches    ports.BatchStores
	Chain      ports.ChainBridge
	Keys       ports.KeyGenerator
	Signer     ports.Signer
	Encryption ports.Encryption
	Locks      ports.JobLock
	Metrics    ports.Metrics
	Clock      func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := withDefaults(deps.Config)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:        cfg,
		logger:     logger,
		shared:     deps.Shared,
		batches:    deps.Batches,
		chain:      deps.Chain,
		keys:       deps.Keys,
		signer:     deps.Signer,
		encryption: deps.Encryption,
		locks:      deps.Locks,
		metrics:    metrics,
		registry:   NewBatchRegistry(deps.Shared),
		nowFn:      nowFn,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "micronote-ledger"
	}
	if cfg.SettlementFeeMicrogons < 0 {
		cfg.SettlementFeeMicrogons = 0
	}
	if cfg.BurnPercent < 0 || cfg.BurnPercent > 100 {
		cfg.BurnPercent = 20
	}
	if cfg.MinimumNoteMicrogons <= 0 {
		cfg.MinimumNoteMicrogons = 10
	}
	// A note must cover its own settlement fee or close cannot balance.
	if cfg.MinimumNoteMicrogons <= cfg.SettlementFeeMicrogons {
		cfg.MinimumNoteMicrogons = cfg.SettlementFeeMicrogons + 1
	}
	if cfg.MinimumFundingCentagons <= 0 {
		cfg.MinimumFundingCentagons = 1
	}
	if cfg.BatchOpenWindow <= 0 {
		cfg.BatchOpenWindow = 8 * time.Hour
	}
	if cfg.StopNewNotesBefore <= 0 || cfg.StopNewNotesBefore >= cfg.BatchOpenWindow {
		cfg.StopNewNotesBefore = 30 * time.Minute
	}
	if cfg.MinimumOpenBatches <= 0 {
		cfg.MinimumOpenBatches = 2
	}
	if cfg.OpenBatchSafetyMargin <= 0 {
		cfg.OpenBatchSafetyMargin = time.Hour
	}
	if cfg.JobLockTTL <= 0 {
		cfg.JobLockTTL = 5 * time.Minute
	}
	return cfg
}

// Registry exposes the in-memory index of open batches.
func (s *Service) Registry() *BatchRegistry {
	return s.registry
}

func (s *Service) Config() Config {
	return s.cfg
}

// batch resolves a batch through the registry, falling back to the store.
func (s *Service) batch(ctx context.Context, slug string) (domain.Batch, error) {
	if batch, ok := s.registry.BySlug(slug); ok {
		return batch, nil
	}
	batch, err := s.shared.Batches().GetBySlug(ctx, slug)
	if err != nil {
		return domain.Batch{}, err
	}
	s.registry.Upsert(batch)
	return batch, nil
}

// withJobLock runs fn only when the named job lock is free.
func (s *Service) withJobLock(ctx context.Context, key string, fn func(context.Context) error) (bool, error) {
	if s.locks == nil {
		return true, fn(ctx)
	}
	release, acquired, err := s.locks.Acquire(ctx, key, s.cfg.JobLockTTL)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}
	defer release()
	return true, fn(ctx)
}

func (s *Service) logOperation(ctx context.Context, operation, outcome string, attrs ...any) {
	base := []any{
		"module", "application",
		"layer", "application",
		"operation", operation,
		"outcome", outcome,
	}
	s.logger.InfoContext(ctx, "ledger operation", append(base, attrs...)...)
}
