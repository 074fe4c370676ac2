package application

import (
	"context"
	"errors"
	"strings"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

// Fund records a signed micronoteFunds transfer on the main ledger and, in
// the same main-ledger transaction, opens a funding source in the batch.
func (s *Service) Fund(ctx context.Context, caller Caller, slug string, note domain.Note) (FundResult, error) {
	batch, err := s.batch(ctx, slug)
	if err != nil {
		return FundResult{}, err
	}
	if batch.Type != domain.BatchTypeMicronote {
		return FundResult{}, domain.InvalidParameter("batch_not_fundable", "batchSlug", "only micronote batches accept transfer funding")
	}
	if !batch.IsAllowingNewNotes(s.nowFn()) {
		return FundResult{}, domain.InvalidParameter("batch_not_open", "batchSlug", "batch is no longer accepting funding")
	}
	if caller.Address != "" && note.FromAddress != caller.Address {
		return FundResult{}, domain.InvalidParameter("note_source_mismatch", "note.fromAddress", "funding note must be sent from the caller's address").
			WithValues(caller.Address, note.FromAddress)
	}
	if note.Hash == "" {
		note.Hash = note.ComputeHash()
	}
	if err := domain.ValidateDeposit(note, batch.Address, s.cfg.MinimumFundingCentagons); err != nil {
		return FundResult{}, err
	}
	block, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return FundResult{}, err
	}

	var source domain.FundingSource
	_, err = s.saveNote(ctx, note, func(ctx context.Context, _ ports.SharedTx, saved domain.Note) error {
		return s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
			var err error
			source, err = tx.FundingSources().Create(ctx, domain.FundingSource{
				OwnerAddress:         saved.FromAddress,
				BatchAddress:         batch.Address,
				DepositedMicrogons:   saved.Centagons * domain.MicrogonsPerCentagon,
				Origin:               domain.FundingOriginDeposit,
				OriginHash:           saved.Hash,
				GuaranteeBlockHeight: block.Height,
				CreatedAt:            s.nowFn(),
			})
			return err
		})
	})
	if err != nil {
		return FundResult{}, err
	}
	s.logOperation(ctx, "fund_batch", "success", "batch_slug", slug, "funds_id", source.ID, "request_id", caller.RequestID)
	return FundResult{
		FundsID:              source.ID,
		BatchSlug:            slug,
		DepositedMicrogons:   source.DepositedMicrogons,
		GuaranteeBlockHeight: source.GuaranteeBlockHeight,
		NoteHash:             note.Hash,
	}, nil
}

// FindFund locates a funding source of the caller with enough capacity. The
// lookup is advisory: allocation re-checks capacity atomically.
func (s *Service) FindFund(ctx context.Context, caller Caller, slug string, microgons int64) (FindFundResult, error) {
	if microgons <= 0 {
		return FindFundResult{}, domain.InvalidParameter("microgons_invalid", "microgons", "microgons must be positive")
	}
	if _, err := s.batch(ctx, slug); err != nil {
		return FindFundResult{}, err
	}
	out := FindFundResult{BatchSlug: slug}
	err := s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		source, found, err := tx.FundingSources().FindAvailable(ctx, caller.Address, microgons)
		if err != nil || !found {
			return err
		}
		out.Found = true
		out.FundsID = source.ID
		out.MicrogonsRemaining = source.RemainingMicrogons()
		return nil
	})
	return out, err
}

func (s *Service) ActiveFunds(ctx context.Context, caller Caller, slug string) ([]domain.FundingSource, error) {
	if _, err := s.batch(ctx, slug); err != nil {
		return nil, err
	}
	var out []domain.FundingSource
	err := s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		var err error
		out, err = tx.FundingSources().ListByOwner(ctx, caller.Address)
		return err
	})
	return out, err
}

// GetFundSettlement reports how the caller's funding sources were paid out.
// Until the batch closes nothing is settled or refunded.
func (s *Service) GetFundSettlement(ctx context.Context, caller Caller, slug string, fundIDs []int64) (domain.FundSettlementReport, error) {
	if len(fundIDs) == 0 {
		return domain.FundSettlementReport{}, domain.InvalidParameter("funds_ids_missing", "fundsIds", "at least one funding source id is required")
	}
	batch, err := s.shared.Batches().GetBySlug(ctx, slug)
	if err != nil {
		return domain.FundSettlementReport{}, err
	}
	report := domain.FundSettlementReport{
		IsBatchSettled: batch.SettledAt != nil,
		SettledAt:      batch.SettledAt,
		Settlements:    []domain.FundSettlement{},
	}
	err = s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		sources, err := tx.FundingSources().ListByIDs(ctx, caller.Address, fundIDs)
		if err != nil {
			return err
		}
		refunds := map[int64]int64{}
		if batch.ClosedAt != nil {
			payouts, err := tx.Payouts().List(ctx)
			if err != nil {
				return err
			}
			for _, payout := range payouts {
				if payout.Type == domain.NoteTypeMicronoteBatchRefund && payout.FundingSourceID != nil {
					refunds[*payout.FundingSourceID] += payout.Centagons
				}
			}
		}
		for _, source := range sources {
			item := domain.FundSettlement{
				FundsID:         source.ID,
				FundedCentagons: domain.FloorCentagons(source.DepositedMicrogons),
			}
			if batch.ClosedAt != nil {
				item.RefundCentagons = refunds[source.ID]
				item.SettledCentagons = item.FundedCentagons - item.RefundCentagons
			}
			report.Settlements = append(report.Settlements, item)
		}
		return nil
	})
	if err != nil {
		return domain.FundSettlementReport{}, err
	}
	return report, nil
}

// CreateGiftCardFunding credits a redeemed gift card to the GiftCard batch.
func (s *Service) CreateGiftCardFunding(ctx context.Context, input AlternateFundingInput) (domain.FundingSource, error) {
	return s.createAlternateFunding(ctx, domain.BatchTypeGiftCard, domain.FundingOriginGiftCard, input)
}

// CreateCreditFunding credits an issued credit to the Credit batch.
func (s *Service) CreateCreditFunding(ctx context.Context, input AlternateFundingInput) (domain.FundingSource, error) {
	return s.createAlternateFunding(ctx, domain.BatchTypeCredit, domain.FundingOriginCredit, input)
}

func (s *Service) createAlternateFunding(ctx context.Context, batchType domain.BatchType, origin domain.FundingOrigin, input AlternateFundingInput) (domain.FundingSource, error) {
	input.Address = strings.TrimSpace(input.Address)
	input.ClaimID = strings.TrimSpace(input.ClaimID)
	if input.Address == "" {
		return domain.FundingSource{}, domain.InvalidParameter("address_missing", "address", "recipient address is required")
	}
	if input.ClaimID == "" {
		return domain.FundingSource{}, domain.InvalidParameter("claim_id_missing", "claimId", "claim id is required")
	}
	if input.Microgons <= 0 {
		return domain.FundingSource{}, domain.InvalidParameter("microgons_invalid", "microgons", "microgons must be positive")
	}
	batch, ok := s.registry.Permanent(batchType)
	if !ok {
		loaded, err := s.shared.Batches().GetPermanent(ctx, batchType)
		if err != nil {
			return domain.FundingSource{}, err
		}
		s.registry.Upsert(loaded)
		batch = loaded
	}
	block, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return domain.FundingSource{}, err
	}

	var source domain.FundingSource
	err = s.batches.Transact(ctx, batch.Slug, func(tx ports.BatchTx) error {
		var err error
		source, err = tx.FundingSources().Create(ctx, domain.FundingSource{
			OwnerAddress:         input.Address,
			BatchAddress:         batch.Address,
			DepositedMicrogons:   input.Microgons,
			Origin:               origin,
			OriginHash:           string(origin) + ":" + input.ClaimID,
			GuaranteeBlockHeight: block.Height,
			CreatedAt:            s.nowFn(),
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.FundingSource{}, domain.Conflict(string(origin)+"_already_claimed", "this "+string(origin)+" has already been claimed")
		}
		return domain.FundingSource{}, err
	}
	s.logOperation(ctx, "create_"+string(origin)+"_funding", "success", "batch_slug", batch.Slug, "funds_id", source.ID)
	return source, nil
}
