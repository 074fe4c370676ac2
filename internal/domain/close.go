package domain

import "sort"

// CloseInput is the batch state the payout plan is computed from.
type CloseInput struct {
	FundingSources         []FundingSource
	Earnings               []AddressEarnings
	FinalizedNotes         int64
	SettlementFeeMicrogons int64
	BurnPercent            int64
	SettlementFeeAddress   string
	BurnAddress            string
	GuaranteeBlockHeight   int64
}

func (in CloseInput) totals() (deposited, allocated, earned int64) {
	for _, source := range in.FundingSources {
		deposited += source.DepositedMicrogons
		allocated += source.AllocatedMicrogons
	}
	for _, earning := range in.Earnings {
		earned += earning.Microgons
	}
	return deposited, allocated, earned
}

// VerifyAllocation is the batch-wide double-entry check: every allocated
// microgon is either earned by a recipient or charged as a settlement fee.
// A mismatch reports the allocated total as expected and the accounted
// total (earnings plus fees) as actual.
func VerifyAllocation(in CloseInput) error {
	_, allocated, earned := in.totals()
	accounted := earned + in.SettlementFeeMicrogons*in.FinalizedNotes
	if accounted != allocated {
		return Conflict("allocation_mismatch", "recipient earnings and fees do not match allocated funds").
			WithValues(allocated, accounted)
	}
	return nil
}

// ClosePlan is the set of payouts a batch emits at close, burn last.
type ClosePlan struct {
	Records                 []PayoutRecord
	TotalDepositedMicrogons int64
	TotalAllocatedMicrogons int64
	TotalRevenueMicrogons   int64
	DepositedCentagons      int64
	RevenueCentagons        int64
	RefundCentagons         int64
	SettlementFeeCentagons  int64
	BurnCentagons           int64
}

func (p ClosePlan) TotalCentagons() int64 {
	var total int64
	for _, record := range p.Records {
		total += record.Centagons
	}
	return total
}

// PlanPayouts converts batch activity into payout records. Per-record amounts
// floor to whole centagons; the burn record absorbs the residue so the plan
// sums to the round-half-even centagon value of everything deposited.
func PlanPayouts(in CloseInput) ClosePlan {
	deposited, allocated, earned := in.totals()
	plan := ClosePlan{
		TotalDepositedMicrogons: deposited,
		TotalAllocatedMicrogons: allocated,
		TotalRevenueMicrogons:   earned,
		DepositedCentagons:      BankersDivide(deposited, MicrogonsPerCentagon),
	}
	keep := int64(100) - in.BurnPercent

	earnings := append([]AddressEarnings(nil), in.Earnings...)
	sort.Slice(earnings, func(i, j int) bool { return earnings[i].Address < earnings[j].Address })
	for _, earning := range earnings {
		centagons := earning.Microgons * keep / (100 * MicrogonsPerCentagon)
		if centagons <= 0 {
			continue
		}
		plan.RevenueCentagons += centagons
		plan.Records = append(plan.Records, PayoutRecord{
			ToAddress:            earning.Address,
			Centagons:            centagons,
			Type:                 NoteTypeRevenue,
			GuaranteeBlockHeight: in.GuaranteeBlockHeight,
		})
	}

	sources := append([]FundingSource(nil), in.FundingSources...)
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	for _, source := range sources {
		centagons := FloorCentagons(source.RemainingMicrogons())
		if centagons <= 0 {
			continue
		}
		fundsID := source.ID
		plan.RefundCentagons += centagons
		plan.Records = append(plan.Records, PayoutRecord{
			ToAddress:            source.OwnerAddress,
			Centagons:            centagons,
			Type:                 NoteTypeMicronoteBatchRefund,
			FundingSourceID:      &fundsID,
			GuaranteeBlockHeight: in.GuaranteeBlockHeight,
		})
	}

	if fee := FloorCentagons(in.SettlementFeeMicrogons * in.FinalizedNotes); fee > 0 {
		plan.SettlementFeeCentagons = fee
		plan.Records = append(plan.Records, PayoutRecord{
			ToAddress:            in.SettlementFeeAddress,
			Centagons:            fee,
			Type:                 NoteTypeSettlementFees,
			GuaranteeBlockHeight: in.GuaranteeBlockHeight,
		})
	}

	burn := plan.DepositedCentagons - plan.TotalCentagons()
	if burn > 0 {
		plan.BurnCentagons = burn
		plan.Records = append(plan.Records, PayoutRecord{
			ToAddress:            in.BurnAddress,
			Centagons:            burn,
			Type:                 NoteTypeBurn,
			GuaranteeBlockHeight: in.GuaranteeBlockHeight,
		})
	}
	return plan
}
