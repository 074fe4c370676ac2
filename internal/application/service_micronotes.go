package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

// CreateMicronote reserves microgons from one of the caller's funding sources
// and records a new note against it in the same batch transaction.
func (s *Service) CreateMicronote(ctx context.Context, caller Caller, slug string, input CreateMicronoteInput) (MicronoteResult, error) {
	if input.Microgons < s.cfg.MinimumNoteMicrogons {
		return MicronoteResult{}, domain.InvalidParameter("microgons_below_minimum", "microgons", "micronote is below the minimum allocation").
			WithValues(s.cfg.MinimumNoteMicrogons, input.Microgons)
	}
	if input.Microgons <= s.cfg.SettlementFeeMicrogons {
		return MicronoteResult{}, domain.InvalidParameter("microgons_below_fee", "microgons", "micronote does not cover the settlement fee").
			WithValues(s.cfg.SettlementFeeMicrogons+1, input.Microgons)
	}
	if input.FundsID <= 0 {
		return MicronoteResult{}, domain.InvalidParameter("funds_id_missing", "fundsId", "a funding source id is required")
	}
	batch, err := s.batch(ctx, slug)
	if err != nil {
		return MicronoteResult{}, err
	}
	now := s.nowFn()
	if !batch.IsAllowingNewNotes(now) {
		return MicronoteResult{}, domain.InvalidParameter("batch_not_open", "batchSlug", "batch is no longer accepting micronotes")
	}
	block, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return MicronoteResult{}, err
	}

	nonce := uuid.New()
	note := domain.Micronote{
		ID:                    domain.NewMicronoteID(block.Height, nonce[:], batch.Address, now),
		FundingSourceID:       input.FundsID,
		OwnerAddress:          caller.Address,
		AllocatedMicrogons:    input.Microgons,
		Nonce:                 nonce.String(),
		BlockHeight:           block.Height,
		IsAuditable:           input.IsAuditable,
		LockAuthorizationCode: uuid.NewString(),
		CreatedAt:             now,
	}
	var source domain.FundingSource
	err = s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		var err error
		source, err = tx.FundingSources().Allocate(ctx, input.FundsID, caller.Address, input.Microgons)
		if err != nil {
			return err
		}
		return tx.Micronotes().Create(ctx, note)
	})
	if err != nil {
		s.metrics.ObserveAllocation(allocationOutcome(err))
		return MicronoteResult{}, err
	}
	s.metrics.ObserveAllocation("success")
	s.logOperation(ctx, "create_micronote", "success",
		"batch_slug", slug, "micronote_id", note.ID, "funds_id", input.FundsID, "request_id", caller.RequestID)
	return MicronoteResult{
		ID:                      note.ID,
		FundsID:                 input.FundsID,
		BatchSlug:               slug,
		BlockHeight:             block.Height,
		AllocatedMicrogons:      input.Microgons,
		FundsMicrogonsRemaining: source.RemainingMicrogons(),
	}, nil
}

func allocationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrFundsNeeded):
		return "funds_needed"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Lock claims the note for the caller. The first identity wins and repeated
// locks by the same identity are no-ops.
func (s *Service) Lock(ctx context.Context, caller Caller, slug, micronoteID string) (LockResult, error) {
	var out LockResult
	err := s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		note, err := tx.Micronotes().GetForUpdate(ctx, micronoteID)
		if err != nil {
			return err
		}
		if err := requireUnresolved(note); err != nil {
			return err
		}
		switch {
		case !note.IsLocked():
			if err := tx.Micronotes().MarkLocked(ctx, note.ID, caller.Identity, s.nowFn()); err != nil {
				return err
			}
		case note.LockHolderIdentity != caller.Identity:
			return domain.Conflict("micronote_locked", "micronote is locked by another identity")
		}
		out = LockResult{
			MicronoteID:           note.ID,
			AllowedMicrogons:      note.AllowedMicrogons(s.cfg.SettlementFeeMicrogons),
			HoldAuthorizationCode: note.LockAuthorizationCode,
		}
		return nil
	})
	if err != nil {
		return LockResult{}, err
	}
	s.logOperation(ctx, "lock_micronote", "success", "batch_slug", slug, "micronote_id", micronoteID)
	return out, nil
}

// Hold reserves a slice of the note's allowed microgons. A hold that does not
// fit returns Accepted=false with the remaining balance.
func (s *Service) Hold(ctx context.Context, caller Caller, slug, micronoteID string, input HoldInput) (HoldResult, error) {
	if input.Microgons <= 0 {
		return HoldResult{}, domain.InvalidParameter("microgons_invalid", "microgons", "hold microgons must be positive")
	}
	var out HoldResult
	err := s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		note, err := tx.Micronotes().GetForUpdate(ctx, micronoteID)
		if err != nil {
			return err
		}
		if err := requireUnresolved(note); err != nil {
			return err
		}
		delegated := input.HoldAuthorizationCode != "" && input.HoldAuthorizationCode == note.LockAuthorizationCode
		if !delegated {
			if !note.IsLocked() {
				return domain.InvalidParameter("micronote_not_locked", "micronoteId", "micronote must be locked before holds are placed")
			}
			if note.LockHolderIdentity != caller.Identity {
				return domain.InvalidParameter("hold_not_authorized", "holdAuthorizationCode", "caller is not the lock holder and presented no valid authorization code")
			}
		}

		holds, err := tx.Holds().ListByMicronote(ctx, note.ID)
		if err != nil {
			return err
		}
		allowed := note.AllowedMicrogons(s.cfg.SettlementFeeMicrogons)
		committed := domain.CommittedMicrogons(holds, "")
		if committed+input.Microgons > allowed {
			out = HoldResult{Accepted: false, RemainingBalance: allowed - committed}
			return nil
		}
		hold := domain.MicronoteHold{
			MicronoteID:    note.ID,
			HoldID:         uuid.NewString(),
			HolderIdentity: caller.Identity,
			MicrogonsHeld:  input.Microgons,
			HeldAt:         s.nowFn(),
		}
		if err := tx.Holds().Create(ctx, hold); err != nil {
			return err
		}
		out = HoldResult{
			Accepted:         true,
			HoldID:           hold.HoldID,
			RemainingBalance: allowed - committed - input.Microgons,
		}
		if len(holds) == 0 {
			out.HoldAuthorizationCode = note.LockAuthorizationCode
		}
		return nil
	})
	if err != nil {
		return HoldResult{}, err
	}
	s.metrics.ObserveHold(out.Accepted)
	outcome := "accepted"
	if !out.Accepted {
		outcome = "rejected"
	}
	s.logOperation(ctx, "hold_micronote", outcome,
		"batch_slug", slug, "micronote_id", micronoteID, "hold_id", out.HoldID, "remaining_balance", out.RemainingBalance)
	return out, nil
}

// Settle records the recipients of one hold. The allocation guard covers the
// whole note: this allocation plus every other hold must fit in the allowed
// microgons.
func (s *Service) Settle(ctx context.Context, caller Caller, slug, micronoteID, holdID string, input SettleInput) (SettleResult, error) {
	total, err := input.RecipientAllocation.Validate()
	if err != nil {
		return SettleResult{}, err
	}
	out := SettleResult{MicronoteID: micronoteID, HoldID: holdID}
	err = s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		note, err := tx.Micronotes().GetForUpdate(ctx, micronoteID)
		if err != nil {
			return err
		}
		if err := requireUnresolved(note); err != nil {
			return err
		}
		holds, err := tx.Holds().ListByMicronote(ctx, note.ID)
		if err != nil {
			return err
		}
		hold, ok := findHold(holds, holdID)
		if !ok {
			return domain.NotFound("hold_not_found", "hold does not exist on this micronote")
		}
		if hold.IsSettled() {
			return domain.InvalidParameter("hold_already_settled", "holdId", "hold has already been settled")
		}
		if hold.HolderIdentity != caller.Identity {
			return domain.InvalidParameter("hold_holder_mismatch", "identity", "only the identity that placed the hold can settle it")
		}
		if input.IsFinal && note.LockHolderIdentity != caller.Identity {
			return domain.InvalidParameter("finalize_requires_lock_holder", "isFinal", "only the lock holder can finalize a micronote")
		}

		allowed := note.AllowedMicrogons(s.cfg.SettlementFeeMicrogons)
		others := domain.CommittedMicrogons(holds, holdID)
		if total+others > allowed {
			return domain.InvalidParameter("allocation_exceeds_allowed", "recipientAllocation", "settlement exceeds the micronote's allowed microgons").
				WithValues(allowed, total+others)
		}
		now := s.nowFn()
		if err := tx.Holds().MarkSettled(ctx, holdID, total, now); err != nil {
			return err
		}
		if err := s.recordEarnings(ctx, tx, note.ID, input.RecipientAllocation); err != nil {
			return err
		}
		if !input.IsFinal {
			return nil
		}
		out.Finalized = true
		out.FinalCost, out.ChangeReturned, err = s.finalizeNote(ctx, tx, note, now)
		return err
	})
	if err != nil {
		return SettleResult{}, err
	}
	s.metrics.ObserveSettlement(out.Finalized)
	s.logOperation(ctx, "settle_hold", "success",
		"batch_slug", slug, "micronote_id", micronoteID, "hold_id", holdID, "finalized", out.Finalized)
	return out, nil
}

// Claim settles and finalizes a note in one step for a single settling
// party. Notes with holds must settle through their holds.
func (s *Service) Claim(ctx context.Context, caller Caller, slug, micronoteID string, input ClaimInput) (ClaimResult, error) {
	total, err := input.RecipientAllocation.Validate()
	if err != nil {
		return ClaimResult{}, err
	}
	out := ClaimResult{MicronoteID: micronoteID}
	err = s.batches.Transact(ctx, slug, func(tx ports.BatchTx) error {
		note, err := tx.Micronotes().GetForUpdate(ctx, micronoteID)
		if err != nil {
			return err
		}
		if err := requireUnresolved(note); err != nil {
			return err
		}
		now := s.nowFn()
		switch {
		case !note.IsLocked():
			if err := tx.Micronotes().MarkLocked(ctx, note.ID, caller.Identity, now); err != nil {
				return err
			}
		case note.LockHolderIdentity != caller.Identity:
			return domain.Conflict("micronote_locked", "micronote is locked by another identity")
		}
		holds, err := tx.Holds().ListByMicronote(ctx, note.ID)
		if err != nil {
			return err
		}
		if len(holds) > 0 {
			return domain.InvalidParameter("micronote_has_holds", "micronoteId", "micronote with holds must be settled through its holds")
		}
		allowed := note.AllowedMicrogons(s.cfg.SettlementFeeMicrogons)
		if total > allowed {
			return domain.InvalidParameter("allocation_exceeds_allowed", "recipientAllocation", "claim exceeds the micronote's allowed microgons").
				WithValues(allowed, total)
		}
		if err := s.recordEarnings(ctx, tx, note.ID, input.RecipientAllocation); err != nil {
			return err
		}
		out.FinalCost, out.ChangeReturned, err = s.finalizeNote(ctx, tx, note, now)
		return err
	})
	if err != nil {
		return ClaimResult{}, err
	}
	s.metrics.ObserveSettlement(true)
	s.logOperation(ctx, "claim_micronote", "success", "batch_slug", slug, "micronote_id", micronoteID)
	return out, nil
}

func (s *Service) recordEarnings(ctx context.Context, tx ports.BatchTx, micronoteID string, allocation domain.Allocation) error {
	for _, address := range allocation.Addresses() {
		microgons := allocation[address]
		if microgons == 0 {
			continue
		}
		if err := tx.Earnings().Add(ctx, micronoteID, address, microgons); err != nil {
			return err
		}
	}
	return tx.Micronotes().MarkHasSettlements(ctx, micronoteID)
}

// finalizeNote marks the note finalized and returns the unearned part of its
// allowance to the funding source. The settlement fee stays allocated.
func (s *Service) finalizeNote(ctx context.Context, tx ports.BatchTx, note domain.Micronote, at time.Time) (finalCost, change int64, err error) {
	earnings, err := tx.Earnings().ListByMicronote(ctx, note.ID)
	if err != nil {
		return 0, 0, err
	}
	var earned int64
	for _, earning := range earnings {
		earned += earning.MicrogonsEarned
	}
	allowed := note.AllowedMicrogons(s.cfg.SettlementFeeMicrogons)
	if earned > allowed {
		return 0, 0, domain.Conflict("earnings_exceed_allowed", "recorded earnings exceed the micronote's allowed microgons")
	}
	if err := tx.Micronotes().MarkFinalized(ctx, note.ID, at); err != nil {
		return 0, 0, err
	}
	change = allowed - earned
	if change > 0 {
		if err := tx.FundingSources().Release(ctx, note.FundingSourceID, note.OwnerAddress, change); err != nil {
			return 0, 0, err
		}
	}
	return note.AllocatedMicrogons - change, change, nil
}

func requireUnresolved(note domain.Micronote) error {
	if note.IsFinalized() {
		return domain.InvalidParameter("micronote_finalized", "micronoteId", "micronote has already been finalized")
	}
	if note.IsCanceled() {
		return domain.InvalidParameter("micronote_canceled", "micronoteId", "micronote was canceled when its batch closed")
	}
	return nil
}

func findHold(holds []domain.MicronoteHold, holdID string) (domain.MicronoteHold, bool) {
	for _, hold := range holds {
		if hold.HoldID == holdID {
			return hold, true
		}
	}
	return domain.MicronoteHold{}, false
}
