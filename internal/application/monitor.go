package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
)

// BatchMonitor keeps enough micronote batches open and drives expired
// batches through close and settle.
type BatchMonitor struct {
	logger   *slog.Logger
	service  *Service
	interval time.Duration
}

func NewBatchMonitor(logger *slog.Logger, service *Service, interval time.Duration) *BatchMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchMonitor{logger: logger, service: service, interval: interval}
}

func (m *BatchMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if err := m.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.ErrorContext(ctx, "batch monitor iteration failed",
				"module", "application.batch_monitor",
				"layer", "worker",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce runs one monitor tick. A failing batch does not stop the
// others; the first error is returned after the tick completes.
func (m *BatchMonitor) ProcessOnce(ctx context.Context) error {
	registry := m.service.Registry()
	if err := registry.Refresh(ctx); err != nil {
		return err
	}
	if err := m.service.EnsurePermanentBatches(ctx); err != nil {
		return err
	}
	if _, err := m.service.EnsureOpenBatches(ctx); err != nil {
		return err
	}

	var firstErr error
	now := m.service.nowFn()
	for _, batch := range registry.ToClose(now) {
		if _, err := m.service.CloseBatch(ctx, batch.Slug); err != nil {
			firstErr = m.record(ctx, "close_batch", batch.Slug, err, firstErr)
		}
	}
	for _, batch := range registry.ToSettle() {
		if _, err := m.service.SettleBatch(ctx, batch.Slug); err != nil {
			firstErr = m.record(ctx, "settle_batch", batch.Slug, err, firstErr)
		}
	}
	m.service.metrics.SetOpenBatches(len(registry.OpenMicronoteBatches(m.service.nowFn(), 0)))
	return firstErr
}

// record logs a per-batch failure. Lock contention means another worker owns
// the batch and is not reported as an error.
func (m *BatchMonitor) record(ctx context.Context, operation, slug string, err, firstErr error) error {
	var ledgerErr *domain.LedgerError
	if errors.As(err, &ledgerErr) && (ledgerErr.Reason == "batch_close_in_progress" || ledgerErr.Reason == "batch_settle_in_progress") {
		m.logger.InfoContext(ctx, "batch job held by another worker",
			"module", "application.batch_monitor",
			"layer", "worker",
			"operation", operation,
			"outcome", "skipped",
			"batch_slug", slug,
		)
		return firstErr
	}
	m.logger.ErrorContext(ctx, "batch job failed",
		"module", "application.batch_monitor",
		"layer", "worker",
		"operation", operation,
		"outcome", "failure",
		"batch_slug", slug,
		"error", err,
	)
	if firstErr == nil {
		return err
	}
	return firstErr
}
