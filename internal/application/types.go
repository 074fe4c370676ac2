package application

import (
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
)

type Config struct {
	ServiceName             string
	SettlementFeeMicrogons  int64
	BurnPercent             int64
	MinimumNoteMicrogons    int64
	MinimumFundingCentagons int64
	BatchOpenWindow         time.Duration
	StopNewNotesBefore      time.Duration
	MinimumOpenBatches      int
	OpenBatchSafetyMargin   time.Duration
	SettlementFeeAddress    string
	BurnAddress             string
	JobLockTTL              time.Duration
}

// Caller is the authenticated party behind a batch-scoped request.
type Caller struct {
	Identity  string
	Address   string
	RequestID string
}

type FundResult struct {
	FundsID              int64  `json:"funds_id"`
	BatchSlug            string `json:"batch_slug"`
	DepositedMicrogons   int64  `json:"deposited_microgons"`
	GuaranteeBlockHeight int64  `json:"guarantee_block_height"`
	NoteHash             string `json:"note_hash"`
}

type FindFundResult struct {
	Found              bool   `json:"found"`
	FundsID            int64  `json:"funds_id,omitempty"`
	MicrogonsRemaining int64  `json:"microgons_remaining,omitempty"`
	BatchSlug          string `json:"batch_slug"`
}

type CreateMicronoteInput struct {
	FundsID     int64 `json:"funds_id"`
	Microgons   int64 `json:"microgons"`
	IsAuditable bool  `json:"is_auditable"`
}

type MicronoteResult struct {
	ID                      string `json:"micronote_id"`
	FundsID                 int64  `json:"funds_id"`
	BatchSlug               string `json:"batch_slug"`
	BlockHeight             int64  `json:"block_height"`
	AllocatedMicrogons      int64  `json:"allocated_microgons"`
	FundsMicrogonsRemaining int64  `json:"funds_microgons_remaining"`
}

type LockResult struct {
	MicronoteID           string `json:"micronote_id"`
	AllowedMicrogons      int64  `json:"allowed_microgons"`
	HoldAuthorizationCode string `json:"hold_authorization_code"`
}

type HoldInput struct {
	Microgons             int64  `json:"microgons"`
	HoldAuthorizationCode string `json:"hold_authorization_code,omitempty"`
}

// HoldResult reports a hold that did not fit as Accepted=false rather than an
// error so callers can retry with a smaller request.
type HoldResult struct {
	Accepted              bool   `json:"accepted"`
	HoldID                string `json:"hold_id,omitempty"`
	HoldAuthorizationCode string `json:"hold_authorization_code,omitempty"`
	RemainingBalance      int64  `json:"remaining_balance"`
}

type SettleInput struct {
	RecipientAllocation domain.Allocation `json:"recipient_allocation"`
	IsFinal             bool              `json:"is_final"`
}

type SettleResult struct {
	MicronoteID    string `json:"micronote_id"`
	HoldID         string `json:"hold_id"`
	Finalized      bool   `json:"finalized"`
	FinalCost      int64  `json:"final_cost,omitempty"`
	ChangeReturned int64  `json:"change_returned,omitempty"`
}

type ClaimInput struct {
	RecipientAllocation domain.Allocation `json:"recipient_allocation"`
}

type ClaimResult struct {
	MicronoteID    string `json:"micronote_id"`
	FinalCost      int64  `json:"final_cost"`
	ChangeReturned int64  `json:"change_returned"`
}

type BatchView struct {
	Slug                    string           `json:"batch_slug"`
	Type                    domain.BatchType `json:"type"`
	Identity                string           `json:"micronote_batch_identity"`
	Address                 string           `json:"micronote_batch_address"`
	OpenedAt                time.Time        `json:"opened_at"`
	PlannedClosingAt        *time.Time       `json:"planned_closing_at,omitempty"`
	StopNewNotesAt          *time.Time       `json:"stop_new_notes_at,omitempty"`
	MinimumFundingCentagons int64            `json:"minimum_funding_centagons"`
	SettlementFeeMicrogons  int64            `json:"settlement_fee_microgons"`
}

type ActiveBatches struct {
	Micronote *BatchView `json:"micronote,omitempty"`
	GiftCard  *BatchView `json:"gift_card,omitempty"`
	Credit    *BatchView `json:"credit,omitempty"`
}

type CloseResult struct {
	BatchSlug     string                `json:"batch_slug"`
	AlreadyClosed bool                  `json:"already_closed"`
	Payouts       []domain.PayoutRecord `json:"payouts"`
}

type AlternateFundingInput struct {
	Address   string `json:"address"`
	ClaimID   string `json:"claim_id"`
	Microgons int64  `json:"microgons"`
}
