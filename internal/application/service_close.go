package application

import (
	"context"
	"fmt"
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

func closeJobKey(slug string) string  { return "batch-close:" + slug }
func settleJobKey(slug string) string { return "batch-settle:" + slug }

// CloseBatch computes, signs and stores the batch's payout records. Once the
// records exist later runs return them unchanged.
func (s *Service) CloseBatch(ctx context.Context, slug string) (CloseResult, error) {
	var out CloseResult
	ran, err := s.withJobLock(ctx, closeJobKey(slug), func(ctx context.Context) error {
		var err error
		out, err = s.closeBatch(ctx, slug)
		return err
	})
	if err != nil {
		return CloseResult{}, err
	}
	if !ran {
		return CloseResult{}, domain.Conflict("batch_close_in_progress", "another worker is closing this batch")
	}
	return out, nil
}

func (s *Service) closeBatch(ctx context.Context, slug string) (CloseResult, error) {
	batch, err := s.shared.Batches().GetBySlug(ctx, slug)
	if err != nil {
		return CloseResult{}, err
	}
	if batch.Type.IsPermanent() {
		return CloseResult{}, domain.InvalidParameter("batch_permanent", "batchSlug", "gift card and credit batches never close")
	}
	if batch.ClosedAt != nil {
		records, err := s.payouts(ctx, slug)
		if err != nil {
			return CloseResult{}, err
		}
		return CloseResult{BatchSlug: slug, AlreadyClosed: true, Payouts: records}, nil
	}
	now := s.nowFn()
	if !batch.ShouldClose(now) {
		return CloseResult{}, domain.InvalidParameter("batch_not_closable", "batchSlug", "batch has not reached its planned closing time").
			WithValues(batch.PlannedClosingAt, now)
	}

	deposits, err := s.shared.Ledger().ListNotesTo(ctx, batch.Address, domain.NoteTypeMicronoteFunds)
	if err != nil {
		return CloseResult{}, err
	}
	privateKey, err := s.encryption.Decrypt(batch.Slug, batch.EncryptedPrivateKey)
	if err != nil {
		return CloseResult{}, fmt.Errorf("decrypt batch key: %w", err)
	}
	block, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return CloseResult{}, err
	}

	var records []domain.PayoutRecord
	alreadyClosed := false
	err = s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		exists, err := tx.Payouts().Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			alreadyClosed = true
			records, err = tx.Payouts().List(ctx)
			return err
		}
		if err := s.resolveOpenMicronotes(ctx, tx, now); err != nil {
			return err
		}
		if err := s.reconcileDeposits(ctx, batch, tx, deposits, now); err != nil {
			return err
		}

		sources, err := tx.FundingSources().List(ctx)
		if err != nil {
			return err
		}
		earnings, err := tx.Earnings().TotalsByAddress(ctx)
		if err != nil {
			return err
		}
		counts, err := tx.Micronotes().Counts(ctx)
		if err != nil {
			return err
		}
		input := domain.CloseInput{
			FundingSources:         sources,
			Earnings:               earnings,
			FinalizedNotes:         counts.Finalized,
			SettlementFeeMicrogons: s.cfg.SettlementFeeMicrogons,
			BurnPercent:            s.cfg.BurnPercent,
			SettlementFeeAddress:   s.cfg.SettlementFeeAddress,
			BurnAddress:            s.cfg.BurnAddress,
			GuaranteeBlockHeight:   block.Height,
		}
		if err := domain.VerifyAllocation(input); err != nil {
			return err
		}
		plan := domain.PlanPayouts(input)
		records = plan.Records
		for i := range records {
			// Distinct timestamps keep note hashes unique for equal transfers.
			records[i].CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
			note := records[i].ToNote(batch.Address)
			signature, err := s.signer.Sign(privateKey, []byte(note.Hash))
			if err != nil {
				return fmt.Errorf("sign payout record: %w", err)
			}
			records[i].NoteHash = note.Hash
			records[i].Signature = signature
		}
		return tx.Payouts().CreateAll(ctx, records)
	})
	if err != nil {
		s.logOperation(ctx, "close_batch", "failure", "batch_slug", slug, "error", err.Error())
		return CloseResult{}, err
	}

	if err := s.shared.Transact(ctx, func(tx ports.SharedTx) error {
		if err := tx.Batches().MarkClosed(ctx, slug, now); err != nil {
			return err
		}
		return s.enqueueBatchClosed(ctx, tx, batch, records, block.Height, now)
	}); err != nil {
		return CloseResult{}, err
	}
	batch.ClosedAt = &now
	s.registry.Upsert(batch)
	s.metrics.ObserveBatchClosed(len(records))
	s.logOperation(ctx, "close_batch", "success", "batch_slug", slug, "payout_records", len(records), "recovered", alreadyClosed)
	return CloseResult{BatchSlug: slug, AlreadyClosed: alreadyClosed, Payouts: records}, nil
}

// resolveOpenMicronotes cancels notes that never settled anything and
// finalizes locked notes that did, so every allocated microgon is accounted
// for before the payout plan is built.
func (s *Service) resolveOpenMicronotes(ctx context.Context, tx ports.BatchTx, now time.Time) error {
	notes, err := tx.Micronotes().ListUnresolved(ctx)
	if err != nil {
		return err
	}
	for _, note := range notes {
		if note.IsLocked() && note.HasSettlements {
			if _, _, err := s.finalizeNote(ctx, tx, note, now); err != nil {
				return err
			}
			continue
		}
		if err := tx.Micronotes().MarkCanceled(ctx, note.ID, now); err != nil {
			return err
		}
		if err := tx.FundingSources().Release(ctx, note.FundingSourceID, note.OwnerAddress, note.AllocatedMicrogons); err != nil {
			return err
		}
	}
	return nil
}

// reconcileDeposits creates funding sources for deposit notes the ledger
// recorded but the batch store never saw. Local deposits the ledger does not
// back abort the close.
func (s *Service) reconcileDeposits(ctx context.Context, batch domain.Batch, tx ports.BatchTx, deposits []domain.Note, now time.Time) error {
	sources, err := tx.FundingSources().List(ctx)
	if err != nil {
		return err
	}
	var onLedger, local int64
	for _, note := range deposits {
		onLedger += note.Centagons * domain.MicrogonsPerCentagon
	}
	known := make(map[string]bool, len(sources))
	for _, source := range sources {
		if source.Origin != domain.FundingOriginDeposit {
			continue
		}
		local += source.DepositedMicrogons
		known[source.OriginHash] = true
	}
	if onLedger == local {
		return nil
	}
	if local > onLedger {
		return domain.Conflict("funding_exceeds_ledger", "batch funding sources exceed the deposits recorded on the ledger").
			WithValues(onLedger, local)
	}
	for _, note := range deposits {
		if known[note.Hash] {
			continue
		}
		if _, err := tx.FundingSources().Create(ctx, domain.FundingSource{
			OwnerAddress:         note.FromAddress,
			BatchAddress:         batch.Address,
			DepositedMicrogons:   note.Centagons * domain.MicrogonsPerCentagon,
			Origin:               domain.FundingOriginDeposit,
			OriginHash:           note.Hash,
			GuaranteeBlockHeight: note.GuaranteeBlockHeight,
			CreatedAt:            now,
		}); err != nil {
			return err
		}
		s.logOperation(ctx, "reconcile_deposit", "recovered", "batch_slug", batch.Slug, "note_hash", note.Hash)
	}
	return nil
}

func (s *Service) payouts(ctx context.Context, slug string) ([]domain.PayoutRecord, error) {
	var records []domain.PayoutRecord
	err := s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		var err error
		records, err = tx.Payouts().List(ctx)
		return err
	})
	return records, err
}
