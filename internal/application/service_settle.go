package application

import (
	"context"
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

// SettleBatch writes a closed batch's payout records to the main ledger as
// transfer notes and stores the batch summary. A negative batch balance
// aborts the whole settlement.
func (s *Service) SettleBatch(ctx context.Context, slug string) (domain.BatchOutput, error) {
	var out domain.BatchOutput
	ran, err := s.withJobLock(ctx, settleJobKey(slug), func(ctx context.Context) error {
		var err error
		out, err = s.settleBatch(ctx, slug)
		return err
	})
	if err != nil {
		return domain.BatchOutput{}, err
	}
	if !ran {
		return domain.BatchOutput{}, domain.Conflict("batch_settle_in_progress", "another worker is settling this batch")
	}
	return out, nil
}

func (s *Service) settleBatch(ctx context.Context, slug string) (domain.BatchOutput, error) {
	batch, err := s.shared.Batches().GetBySlug(ctx, slug)
	if err != nil {
		return domain.BatchOutput{}, err
	}
	if batch.SettledAt != nil {
		return domain.BatchOutput{}, domain.Conflict("batch_already_settled", "batch has already been settled")
	}
	if !batch.ShouldSettle() {
		return domain.BatchOutput{}, domain.InvalidParameter("batch_not_closed", "batchSlug", "batch must be closed before it settles")
	}

	var (
		records  []domain.PayoutRecord
		sources  []domain.FundingSource
		earnings []domain.AddressEarnings
		counts   ports.MicronoteCounts
	)
	err = s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		var err error
		if records, err = tx.Payouts().List(ctx); err != nil {
			return err
		}
		if sources, err = tx.FundingSources().List(ctx); err != nil {
			return err
		}
		if earnings, err = tx.Earnings().TotalsByAddress(ctx); err != nil {
			return err
		}
		counts, err = tx.Micronotes().Counts(ctx)
		return err
	})
	if err != nil {
		return domain.BatchOutput{}, err
	}

	now := s.nowFn()
	output := summarize(batch, records, sources, earnings, counts, now)
	err = s.shared.Transact(ctx, func(tx ports.SharedTx) error {
		locked, err := tx.Batches().GetBySlugForUpdate(ctx, slug)
		if err != nil {
			return err
		}
		if locked.SettledAt != nil {
			return domain.Conflict("batch_already_settled", "batch has already been settled")
		}
		if _, err := tx.Ledger().LockBalance(ctx, batch.Address); err != nil {
			return err
		}
		var total int64
		for _, record := range records {
			if err := tx.Ledger().InsertNote(ctx, record.ToNote(batch.Address)); err != nil {
				return err
			}
			if _, err := tx.Ledger().AdjustBalance(ctx, record.ToAddress, record.Centagons); err != nil {
				return err
			}
			total += record.Centagons
		}
		balance, err := tx.Ledger().AdjustBalance(ctx, batch.Address, -total)
		if err != nil {
			return err
		}
		if balance < 0 {
			return domain.InsufficientFunds("batch_balance_negative", "payouts exceed the batch's ledger balance").
				WithValues(total, balance+total)
		}
		if err := tx.Outputs().Create(ctx, output); err != nil {
			return err
		}
		if err := tx.Batches().MarkSettled(ctx, slug, now); err != nil {
			return err
		}
		return s.enqueueBatchSettled(ctx, tx, output, now)
	})
	if err != nil {
		s.logOperation(ctx, "settle_batch", "failure", "batch_slug", slug, "error", err.Error())
		return domain.BatchOutput{}, err
	}
	batch.SettledAt = &now
	s.registry.Upsert(batch)
	s.metrics.ObserveBatchSettled()
	s.logOperation(ctx, "settle_batch", "success", "batch_slug", slug, "settled_centagons", output.SettledCentagons)
	return output, nil
}

func summarize(batch domain.Batch, records []domain.PayoutRecord, sources []domain.FundingSource, earnings []domain.AddressEarnings, counts ports.MicronoteCounts, now time.Time) domain.BatchOutput {
	output := domain.BatchOutput{
		BatchSlug:               batch.Slug,
		BatchAddress:            batch.Address,
		MicronotesCount:         counts.Total,
		ClaimedMicronotesCount:  counts.Finalized,
		CanceledMicronotesCount: counts.Canceled,
		CreatedAt:               now,
	}
	for i, source := range sources {
		output.FundingMicrogons += source.DepositedMicrogons
		output.AllocatedMicrogons += source.AllocatedMicrogons
		if i == 0 || source.GuaranteeBlockHeight < output.StartBlockHeight {
			output.StartBlockHeight = source.GuaranteeBlockHeight
		}
	}
	for _, earning := range earnings {
		output.RevenueMicrogons += earning.Microgons
	}
	for _, record := range records {
		output.SettledCentagons += record.Centagons
		switch record.Type {
		case domain.NoteTypeMicronoteBatchRefund:
			output.RefundCentagons += record.Centagons
		case domain.NoteTypeSettlementFees:
			output.SettlementFeeCentagons += record.Centagons
		case domain.NoteTypeBurn:
			output.BurnedCentagons += record.Centagons
		}
		if record.GuaranteeBlockHeight > output.EndBlockHeight {
			output.EndBlockHeight = record.GuaranteeBlockHeight
		}
	}
	return output
}

// BatchSummary returns the summary stored when the batch settled.
func (s *Service) BatchSummary(ctx context.Context, slug string) (domain.BatchOutput, error) {
	return s.shared.Outputs().Get(ctx, slug)
}
