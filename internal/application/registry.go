package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

// BatchRegistry is the process-owned index of unsettled batches. It is
// refreshed from the shared store on every monitor tick.
type BatchRegistry struct {
	shared ports.SharedStore

	mu      sync.RWMutex
	batches map[string]domain.Batch
}

func NewBatchRegistry(shared ports.SharedStore) *BatchRegistry {
	return &BatchRegistry{shared: shared, batches: map[string]domain.Batch{}}
}

func (r *BatchRegistry) Refresh(ctx context.Context) error {
	rows, err := r.shared.Batches().ListUnsettled(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]domain.Batch, len(rows))
	for _, batch := range rows {
		next[batch.Slug] = batch
	}
	r.mu.Lock()
	r.batches = next
	r.mu.Unlock()
	return nil
}

func (r *BatchRegistry) Upsert(batch domain.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if batch.SettledAt != nil {
		delete(r.batches, batch.Slug)
		return
	}
	r.batches[batch.Slug] = batch
}

func (r *BatchRegistry) BySlug(slug string) (domain.Batch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.batches[slug]
	return batch, ok
}

// OpenMicronoteBatches lists micronote batches that stay open for longer than
// margin, the one with the most time left first.
func (r *BatchRegistry) OpenMicronoteBatches(now time.Time, margin time.Duration) []domain.Batch {
	r.mu.RLock()
	out := make([]domain.Batch, 0, len(r.batches))
	for _, batch := range r.batches {
		if batch.Type != domain.BatchTypeMicronote || !batch.IsAllowingNewNotes(now) {
			continue
		}
		if batch.RemainingOpen(now) <= margin {
			continue
		}
		out = append(out, batch)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].RemainingOpen(now) > out[j].RemainingOpen(now)
	})
	return out
}

func (r *BatchRegistry) MostTimeRemaining(now time.Time) (domain.Batch, bool) {
	open := r.OpenMicronoteBatches(now, 0)
	if len(open) == 0 {
		return domain.Batch{}, false
	}
	return open[0], true
}

func (r *BatchRegistry) Permanent(batchType domain.BatchType) (domain.Batch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found domain.Batch
	ok := false
	for _, batch := range r.batches {
		if batch.Type != batchType {
			continue
		}
		if !ok || batch.OpenedAt.Before(found.OpenedAt) {
			found, ok = batch, true
		}
	}
	return found, ok
}

func (r *BatchRegistry) ToClose(now time.Time) []domain.Batch {
	return r.filter(func(batch domain.Batch) bool { return batch.ShouldClose(now) })
}

func (r *BatchRegistry) ToSettle() []domain.Batch {
	return r.filter(func(batch domain.Batch) bool { return batch.ShouldSettle() })
}

func (r *BatchRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.batches)
}

func (r *BatchRegistry) filter(keep func(domain.Batch) bool) []domain.Batch {
	r.mu.RLock()
	out := make([]domain.Batch, 0)
	for _, batch := range r.batches {
		if keep(batch) {
			out = append(out, batch)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}
