package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/domain"
	"golang.org/x/sync/errgroup"
)

var (
	client  = application.Caller{Identity: "id1client", Address: "ar1client"}
	worker  = application.Caller{Identity: "id1worker", Address: "ar1worker"}
	helperA = application.Caller{Identity: "id1helpera", Address: "ar1helpera"}
	helperB = application.Caller{Identity: "id1helperb", Address: "ar1helperb"}
)

func TestMicronoteHoldSettleFinalize(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, application.Config{SettlementFeeMicrogons: 5})
	batch, err := h.svc.CreateBatch(ctx, domain.BatchTypeMicronote)
	require.NoError(t, err)
	fundsID := h.deposit(t, batch, client.Address, 100)

	note, err := h.svc.CreateMicronote(ctx, client, batch.Slug, application.CreateMicronoteInput{FundsID: fundsID, Microgons: 200_000})
	require.NoError(t, err)
	require.Equal(t, int64(800_000), note.FundsMicrogonsRemaining)
	require.Equal(t, int64(100), note.BlockHeight)

	lock, err := h.svc.Lock(ctx, worker, batch.Slug, note.ID)
	require.NoError(t, err)
	require.Equal(t, int64(199_995), lock.AllowedMicrogons)
	require.NotEmpty(t, lock.HoldAuthorizationCode)

	lead, err := h.svc.Hold(ctx, worker, batch.Slug, note.ID, application.HoldInput{Microgons: 10_000})
	require.NoError(t, err)
	require.True(t, lead.Accepted)
	require.Equal(t, lock.HoldAuthorizationCode, lead.HoldAuthorizationCode)

	holdA, err := h.svc.Hold(ctx, helperA, batch.Slug, note.ID, application.HoldInput{Microgons: 20_000, HoldAuthorizationCode: lead.HoldAuthorizationCode})
	require.NoError(t, err)
	require.True(t, holdA.Accepted)
	require.Empty(t, holdA.HoldAuthorizationCode)

	holdB, err := h.svc.Hold(ctx, helperB, batch.Slug, note.ID, application.HoldInput{Microgons: 30_000, HoldAuthorizationCode: lead.HoldAuthorizationCode})
	require.NoError(t, err)
	require.True(t, holdB.Accepted)
	require.Equal(t, int64(199_995-60_000), holdB.RemainingBalance)

	_, err = h.svc.Settle(ctx, helperA, batch.Slug, note.ID, holdA.HoldID, application.SettleInput{
		RecipientAllocation: domain.Allocation{"ar1siteb": 20_000},
	})
	require.NoError(t, err)
	_, err = h.svc.Settle(ctx, helperB, batch.Slug, note.ID, holdB.HoldID, application.SettleInput{
		RecipientAllocation: domain.Allocation{"ar1sitec": 30_000},
	})
	require.NoError(t, err)
	final, err := h.svc.Settle(ctx, worker, batch.Slug, note.ID, lead.HoldID, application.SettleInput{
		RecipientAllocation: domain.Allocation{"ar1sitea": 10_000},
		IsFinal:             true,
	})
	require.NoError(t, err)
	require.True(t, final.Finalized)
	require.Equal(t, int64(60_005), final.FinalCost)
	require.Equal(t, int64(139_995), final.ChangeReturned)
	require.Equal(t, int64(1_000_000-60_005), h.remaining(t, client, batch.Slug, fundsID))

	_, err = h.svc.Hold(ctx, worker, batch.Slug, note.ID, application.HoldInput{Microgons: 1})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestConcurrentHoldsNeverExceedAllowed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, application.Config{SettlementFeeMicrogons: 5})
	batch, err := h.svc.CreateBatch(ctx, domain.BatchTypeMicronote)
	require.NoError(t, err)
	fundsID := h.deposit(t, batch, client.Address, 1)

	note, err := h.svc.CreateMicronote(ctx, client, batch.Slug, application.CreateMicronoteInput{FundsID: fundsID, Microgons: 1_005})
	require.NoError(t, err)
	lock, err := h.svc.Lock(ctx, worker, batch.Slug, note.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), lock.AllowedMicrogons)

	var accepted, rejected atomic.Int64
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		caller := application.Caller{Identity: fmt.Sprintf("id1helper%d", i)}
		g.Go(func() error {
			result, err := h.svc.Hold(ctx, caller, batch.Slug, note.ID, application.HoldInput{
				Microgons:             100,
				HoldAuthorizationCode: lock.HoldAuthorizationCode,
			})
			if err != nil {
				return err
			}
			if result.Accepted {
				accepted.Add(1)
			} else {
				rejected.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int64(10), accepted.Load())
	require.Equal(t, int64(15), rejected.Load())

	result, err := h.svc.Hold(ctx, worker, batch.Slug, note.ID, application.HoldInput{Microgons: 1})
	require.NoError(t, err)
	require.False(t, result.Accepted)
	require.Zero(t, result.RemainingBalance)
}

func TestLockAndHoldAuthorization(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, application.Config{SettlementFeeMicrogons: 5})
	batch, err := h.svc.CreateBatch(ctx, domain.BatchTypeMicronote)
	require.NoError(t, err)
	fundsID := h.deposit(t, batch, client.Address, 10)
	note, err := h.svc.CreateMicronote(ctx, client, batch.Slug, application.CreateMicronoteInput{FundsID: fundsID, Microgons: 1_000})
	require.NoError(t, err)

	_, err = h.svc.Hold(ctx, worker, batch.Slug, note.ID, application.HoldInput{Microgons: 10})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))

	lock, err := h.svc.Lock(ctx, worker, batch.Slug, note.ID)
	require.NoError(t, err)
	_, err = h.svc.Lock(ctx, helperA, batch.Slug, note.ID)
	require.True(t, errors.Is(err, domain.ErrConflict))
	again, err := h.svc.Lock(ctx, worker, batch.Slug, note.ID)
	require.NoError(t, err)
	require.Equal(t, lock, again)

	_, err = h.svc.Hold(ctx, helperA, batch.Slug, note.ID, application.HoldInput{Microgons: 10, HoldAuthorizationCode: "wrong"})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))
	hold, err := h.svc.Hold(ctx, helperA, batch.Slug, note.ID, application.HoldInput{Microgons: 100, HoldAuthorizationCode: lock.HoldAuthorizationCode})
	require.NoError(t, err)
	require.True(t, hold.Accepted)

	_, err = h.svc.Settle(ctx, worker, batch.Slug, note.ID, hold.HoldID, application.SettleInput{RecipientAllocation: domain.Allocation{"ar1site": 10}})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))

	_, err = h.svc.Settle(ctx, helperA, batch.Slug, note.ID, hold.HoldID, application.SettleInput{RecipientAllocation: domain.Allocation{"ar1site": 996}})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))
	var ledgerErr *domain.LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	require.Equal(t, "allocation_exceeds_allowed", ledgerErr.Reason)

	_, err = h.svc.Settle(ctx, helperA, batch.Slug, note.ID, hold.HoldID, application.SettleInput{
		RecipientAllocation: domain.Allocation{"ar1site": 50},
		IsFinal:             true,
	})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))

	_, err = h.svc.Settle(ctx, helperA, batch.Slug, note.ID, hold.HoldID, application.SettleInput{RecipientAllocation: domain.Allocation{"ar1site": 50}})
	require.NoError(t, err)
	_, err = h.svc.Settle(ctx, helperA, batch.Slug, note.ID, hold.HoldID, application.SettleInput{RecipientAllocation: domain.Allocation{"ar1site": 50}})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))

	_, err = h.svc.Claim(ctx, worker, batch.Slug, note.ID, application.ClaimInput{RecipientAllocation: domain.Allocation{"ar1site": 10}})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestCreateMicronoteNeedsFunds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, application.Config{})
	batch, err := h.svc.CreateBatch(ctx, domain.BatchTypeMicronote)
	require.NoError(t, err)
	fundsID := h.deposit(t, batch, client.Address, 1)

	_, err = h.svc.CreateMicronote(ctx, client, batch.Slug, application.CreateMicronoteInput{FundsID: fundsID, Microgons: 10_001})
	require.True(t, errors.Is(err, domain.ErrFundsNeeded))
	var ledgerErr *domain.LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	require.Equal(t, int64(10_000), ledgerErr.MicrogonsRemaining)

	_, err = h.svc.CreateMicronote(ctx, worker, batch.Slug, application.CreateMicronoteInput{FundsID: fundsID, Microgons: 100})
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = h.svc.CreateMicronote(ctx, client, batch.Slug, application.CreateMicronoteInput{FundsID: fundsID, Microgons: 5})
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))

	found, err := h.svc.FindFund(ctx, client, batch.Slug, 10_000)
	require.NoError(t, err)
	require.True(t, found.Found)
	require.Equal(t, fundsID, found.FundsID)
}

func TestMicronotesMustCoverSettlementFee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, application.Config{SettlementFeeMicrogons: 5, MinimumNoteMicrogons: 1})
	require.Equal(t, int64(6), h.svc.Config().MinimumNoteMicrogons)
	batch, err := h.svc.CreateBatch(ctx, domain.BatchTypeMicronote)
	require.NoError(t, err)
	fundsID := h.deposit(t, batch, client.Address, 1)

	for _, microgons := range []int64{3, 5} {
		_, err = h.svc.CreateMicronote(ctx, client, batch.Slug, application.CreateMicronoteInput{FundsID: fundsID, Microgons: microgons})
		require.True(t, errors.Is(err, domain.ErrInvalidParameter), microgons)
	}

	note, err := h.svc.CreateMicronote(ctx, client, batch.Slug, application.CreateMicronoteInput{FundsID: fundsID, Microgons: 6})
	require.NoError(t, err)
	claim, err := h.svc.Claim(ctx, worker, batch.Slug, note.ID, application.ClaimInput{RecipientAllocation: domain.Allocation{}})
	require.NoError(t, err)
	require.Equal(t, int64(5), claim.FinalCost)

	h.clock.Advance(9 * time.Hour)
	closed, err := h.svc.CloseBatch(ctx, batch.Slug)
	require.NoError(t, err)
	var total int64
	for _, record := range closed.Payouts {
		total += record.Centagons
	}
	require.Equal(t, int64(1), total)
}

func TestGiftCardFundingClaims(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, application.Config{SettlementFeeMicrogons: 5})
	require.NoError(t, h.svc.EnsurePermanentBatches(ctx))

	source, err := h.svc.CreateGiftCardFunding(ctx, application.AlternateFundingInput{Address: client.Address, ClaimID: "gc-1", Microgons: 50_000})
	require.NoError(t, err)
	require.Equal(t, domain.FundingOriginGiftCard, source.Origin)
	_, err = h.svc.CreateGiftCardFunding(ctx, application.AlternateFundingInput{Address: client.Address, ClaimID: "gc-1", Microgons: 50_000})
	require.True(t, errors.Is(err, domain.ErrConflict))

	active, err := h.svc.ActiveBatches(ctx)
	require.True(t, errors.Is(err, domain.ErrNotFound))
	require.NotNil(t, active.GiftCard)

	note, err := h.svc.CreateMicronote(ctx, client, active.GiftCard.Slug, application.CreateMicronoteInput{FundsID: source.ID, Microgons: 1_005})
	require.NoError(t, err)
	claim, err := h.svc.Claim(ctx, worker, active.GiftCard.Slug, note.ID, application.ClaimInput{RecipientAllocation: domain.Allocation{"ar1site": 600}})
	require.NoError(t, err)
	require.Equal(t, int64(605), claim.FinalCost)
	require.Equal(t, int64(400), claim.ChangeReturned)
	require.Equal(t, int64(50_000-605), h.remaining(t, client, active.GiftCard.Slug, source.ID))

	_, err = h.svc.CloseBatch(ctx, active.GiftCard.Slug)
	require.True(t, errors.Is(err, domain.ErrInvalidParameter))
}
