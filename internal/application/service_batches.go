package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

// CreateBatch generates keying material, provisions the isolated store and
// records the batch. GiftCard and Credit batches never close.
func (s *Service) CreateBatch(ctx context.Context, batchType domain.BatchType) (domain.Batch, error) {
	if !batchType.Valid() {
		return domain.Batch{}, domain.InvalidParameter("batch_type_invalid", "type", "unknown batch type")
	}
	key, err := s.keys.Generate()
	if err != nil {
		return domain.Batch{}, err
	}
	sealed, err := s.encryption.Encrypt(key.Slug, key.PrivateKey)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("encrypt batch key: %w", err)
	}

	now := s.nowFn()
	batch := domain.Batch{
		Slug:                key.Slug,
		Address:             key.Address,
		Identity:            key.Identity,
		Type:                batchType,
		EncryptedPrivateKey: sealed,
		OpenedAt:            now,
	}
	if !batchType.IsPermanent() {
		closing := now.Add(s.cfg.BatchOpenWindow)
		stop := closing.Add(-s.cfg.StopNewNotesBefore)
		batch.PlannedClosingAt = &closing
		batch.StopNewNotesAt = &stop
	}

	if err := s.batches.Provision(ctx, batch.Slug); err != nil {
		return domain.Batch{}, fmt.Errorf("provision batch store: %w", err)
	}
	if err := s.shared.Transact(ctx, func(tx ports.SharedTx) error {
		if err := tx.Batches().Create(ctx, batch); err != nil {
			return err
		}
		return s.enqueueBatchOpened(ctx, tx, batch, now)
	}); err != nil {
		return domain.Batch{}, err
	}
	s.registry.Upsert(batch)
	s.logOperation(ctx, "create_batch", "success", "batch_slug", batch.Slug, "batch_type", string(batchType))
	return batch, nil
}

// EnsurePermanentBatches creates the GiftCard and Credit batches on first run.
func (s *Service) EnsurePermanentBatches(ctx context.Context) error {
	for _, batchType := range []domain.BatchType{domain.BatchTypeGiftCard, domain.BatchTypeCredit} {
		if _, ok := s.registry.Permanent(batchType); ok {
			continue
		}
		batch, err := s.shared.Batches().GetPermanent(ctx, batchType)
		if err == nil {
			s.registry.Upsert(batch)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if _, err := s.CreateBatch(ctx, batchType); err != nil {
			return err
		}
	}
	return nil
}

// EnsureOpenBatches creates micronote batches until the configured minimum
// stay open beyond the safety margin. It returns the batches it created.
func (s *Service) EnsureOpenBatches(ctx context.Context) ([]domain.Batch, error) {
	open := s.registry.OpenMicronoteBatches(s.nowFn(), s.cfg.OpenBatchSafetyMargin)
	var created []domain.Batch
	for i := len(open); i < s.cfg.MinimumOpenBatches; i++ {
		batch, err := s.CreateBatch(ctx, domain.BatchTypeMicronote)
		if err != nil {
			return created, err
		}
		created = append(created, batch)
	}
	return created, nil
}

func (s *Service) ActiveBatches(ctx context.Context) (ActiveBatches, error) {
	now := s.nowFn()
	var out ActiveBatches
	if batch, ok := s.registry.MostTimeRemaining(now); ok {
		out.Micronote = s.view(batch)
	}
	for _, batchType := range []domain.BatchType{domain.BatchTypeGiftCard, domain.BatchTypeCredit} {
		batch, ok := s.registry.Permanent(batchType)
		if !ok {
			loaded, err := s.shared.Batches().GetPermanent(ctx, batchType)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return ActiveBatches{}, err
			}
			if err == nil {
				s.registry.Upsert(loaded)
				batch, ok = loaded, true
			}
		}
		if !ok {
			continue
		}
		if batchType == domain.BatchTypeGiftCard {
			out.GiftCard = s.view(batch)
		} else {
			out.Credit = s.view(batch)
		}
	}
	if out.Micronote == nil {
		return out, domain.NotFound("no_open_batch", "no micronote batch is currently accepting notes")
	}
	return out, nil
}

func (s *Service) GetBatch(ctx context.Context, slug string) (BatchView, error) {
	batch, err := s.shared.Batches().GetBySlug(ctx, slug)
	if err != nil {
		return BatchView{}, err
	}
	return *s.view(batch), nil
}

func (s *Service) view(batch domain.Batch) *BatchView {
	return &BatchView{
		Slug:                    batch.Slug,
		Type:                    batch.Type,
		Identity:                batch.Identity,
		Address:                 batch.Address,
		OpenedAt:                batch.OpenedAt,
		PlannedClosingAt:        batch.PlannedClosingAt,
		StopNewNotesAt:          batch.StopNewNotesAt,
		MinimumFundingCentagons: s.cfg.MinimumFundingCentagons,
		SettlementFeeMicrogons:  s.cfg.SettlementFeeMicrogons,
	}
}
