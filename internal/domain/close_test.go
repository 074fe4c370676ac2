package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func twoDepositBatch() CloseInput {
	return CloseInput{
		FundingSources: []FundingSource{
			{ID: 1, OwnerAddress: "ar1alice", DepositedMicrogons: 10_000_000, AllocatedMicrogons: 8_010_000},
			{ID: 2, OwnerAddress: "ar1bob", DepositedMicrogons: 5_000_000, AllocatedMicrogons: 4_010_000},
		},
		Earnings:               []AddressEarnings{{Address: "ar1site", Microgons: 12_000_000}},
		FinalizedNotes:         2,
		SettlementFeeMicrogons: 10_000,
		BurnPercent:            20,
		SettlementFeeAddress:   "ar1fees",
		BurnAddress:            "ar1burn",
		GuaranteeBlockHeight:   42,
	}
}

func TestPlanPayoutsSweepsResidueIntoBurn(t *testing.T) {
	in := twoDepositBatch()
	require.NoError(t, VerifyAllocation(in))

	plan := PlanPayouts(in)
	byType := map[NoteType][]PayoutRecord{}
	for _, record := range plan.Records {
		byType[record.Type] = append(byType[record.Type], record)
		require.Equal(t, int64(42), record.GuaranteeBlockHeight)
	}

	require.Len(t, byType[NoteTypeRevenue], 1)
	require.Equal(t, int64(960), byType[NoteTypeRevenue][0].Centagons)
	require.Len(t, byType[NoteTypeSettlementFees], 1)
	require.Equal(t, int64(2), byType[NoteTypeSettlementFees][0].Centagons)

	refunds := byType[NoteTypeMicronoteBatchRefund]
	require.Len(t, refunds, 2)
	require.Equal(t, "ar1alice", refunds[0].ToAddress)
	require.Equal(t, int64(199), refunds[0].Centagons)
	require.Equal(t, int64(1), *refunds[0].FundingSourceID)
	require.Equal(t, int64(99), refunds[1].Centagons)

	require.Len(t, byType[NoteTypeBurn], 1)
	require.Equal(t, int64(240), byType[NoteTypeBurn][0].Centagons)
	require.Equal(t, NoteTypeBurn, plan.Records[len(plan.Records)-1].Type)
	require.Equal(t, int64(1500), plan.TotalCentagons())
}

func TestPlanPayoutsDropsDust(t *testing.T) {
	in := CloseInput{
		FundingSources: []FundingSource{
			{ID: 1, OwnerAddress: "ar1alice", DepositedMicrogons: 10_000, AllocatedMicrogons: 9_005},
		},
		Earnings:               []AddressEarnings{{Address: "ar1a", Microgons: 6_000}, {Address: "ar1b", Microgons: 3_000}},
		FinalizedNotes:         1,
		SettlementFeeMicrogons: 5,
		BurnPercent:            20,
		SettlementFeeAddress:   "ar1fees",
		BurnAddress:            "ar1burn",
	}
	require.NoError(t, VerifyAllocation(in))

	plan := PlanPayouts(in)
	require.Len(t, plan.Records, 1)
	require.Equal(t, NoteTypeBurn, plan.Records[0].Type)
	require.Equal(t, int64(1), plan.Records[0].Centagons)
}

func TestPlanPayoutsConservesDepositsAcrossRoundingBoundaries(t *testing.T) {
	for _, deposited := range []int64{14_999, 15_000, 25_000, 1_234_567, 99_995_000} {
		in := CloseInput{
			FundingSources: []FundingSource{{ID: 1, OwnerAddress: "ar1o", DepositedMicrogons: deposited}},
			BurnPercent:    20,
			BurnAddress:    "ar1burn",
		}
		plan := PlanPayouts(in)
		require.Equal(t, BankersDivide(deposited, MicrogonsPerCentagon), plan.TotalCentagons(), "deposited %d", deposited)
	}
}

func TestVerifyAllocationDetectsMismatch(t *testing.T) {
	in := twoDepositBatch()
	in.Earnings[0].Microgons--

	err := VerifyAllocation(in)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConflict))

	var ledgerErr *LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	require.Equal(t, int64(12_020_000), ledgerErr.Expected)
	require.Equal(t, int64(12_019_999), ledgerErr.Actual)
}
