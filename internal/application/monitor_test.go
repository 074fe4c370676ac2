package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/domain"
)

func TestBatchMonitorRotatesBatches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, application.Config{MinimumOpenBatches: 2})
	monitor := application.NewBatchMonitor(slog.New(slog.NewTextHandler(io.Discard, nil)), h.svc, time.Minute)

	require.NoError(t, monitor.ProcessOnce(ctx))
	registry := h.svc.Registry()
	require.Equal(t, 4, registry.Len())
	first := registry.OpenMicronoteBatches(h.clock.Now(), 0)
	require.Len(t, first, 2)
	_, ok := registry.Permanent(domain.BatchTypeGiftCard)
	require.True(t, ok)

	active, err := h.svc.ActiveBatches(ctx)
	require.NoError(t, err)
	require.NotNil(t, active.Micronote)
	require.NotNil(t, active.Credit)

	h.clock.Advance(9 * time.Hour)
	require.NoError(t, monitor.ProcessOnce(ctx))
	require.Equal(t, 4, registry.Len())
	for _, batch := range first {
		_, ok := registry.BySlug(batch.Slug)
		require.False(t, ok)
		stored, err := h.svc.GetBatch(ctx, batch.Slug)
		require.NoError(t, err)
		require.Equal(t, batch.Slug, stored.Slug)
		_, err = h.svc.BatchSummary(ctx, batch.Slug)
		require.NoError(t, err)
	}
	require.Len(t, registry.OpenMicronoteBatches(h.clock.Now(), 0), 2)
}
