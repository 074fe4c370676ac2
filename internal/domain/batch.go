package domain

import "time"

type BatchType string

const (
	BatchTypeMicronote BatchType = "micronote"
	BatchTypeGiftCard  BatchType = "giftCard"
	BatchTypeCredit    BatchType = "credit"
)

func (t BatchType) Valid() bool {
	return t == BatchTypeMicronote || t == BatchTypeGiftCard || t == BatchTypeCredit
}

// IsPermanent reports whether the batch is a funding container that never closes.
func (t BatchType) IsPermanent() bool {
	return t == BatchTypeGiftCard || t == BatchTypeCredit
}

type BatchState string

const (
	BatchStateOpen             BatchState = "open"
	BatchStateStoppingNewNotes BatchState = "stoppingNewNotes"
	BatchStateClosed           BatchState = "closed"
	BatchStateSettled          BatchState = "settled"
)

type Batch struct {
	Slug                string     `json:"batch_slug"`
	Address             string     `json:"address"`
	Identity            string     `json:"identity"`
	Type                BatchType  `json:"type"`
	EncryptedPrivateKey []byte     `json:"-"`
	OpenedAt            time.Time  `json:"opened_at"`
	PlannedClosingAt    *time.Time `json:"planned_closing_at,omitempty"`
	StopNewNotesAt      *time.Time `json:"stop_new_notes_at,omitempty"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	SettledAt           *time.Time `json:"settled_at,omitempty"`
}

func (b Batch) State(now time.Time) BatchState {
	switch {
	case b.SettledAt != nil:
		return BatchStateSettled
	case b.ClosedAt != nil:
		return BatchStateClosed
	case b.StopNewNotesAt != nil && !now.Before(*b.StopNewNotesAt):
		return BatchStateStoppingNewNotes
	default:
		return BatchStateOpen
	}
}

func (b Batch) IsAllowingNewNotes(now time.Time) bool {
	return b.State(now) == BatchStateOpen
}

func (b Batch) ShouldClose(now time.Time) bool {
	if b.Type.IsPermanent() || b.ClosedAt != nil || b.PlannedClosingAt == nil {
		return false
	}
	return !now.Before(*b.PlannedClosingAt)
}

func (b Batch) ShouldSettle() bool {
	return !b.Type.IsPermanent() && b.ClosedAt != nil && b.SettledAt == nil
}

// RemainingOpen is the time left before the batch stops accepting notes.
// Permanent batches report the largest duration.
func (b Batch) RemainingOpen(now time.Time) time.Duration {
	if b.StopNewNotesAt == nil {
		return time.Duration(1<<63 - 1)
	}
	return b.StopNewNotesAt.Sub(now)
}

// BatchOutput is the externally reported summary written when a batch settles.
type BatchOutput struct {
	BatchSlug               string    `json:"batch_slug"`
	BatchAddress            string    `json:"batch_address"`
	FundingMicrogons        int64     `json:"funding_microgons"`
	AllocatedMicrogons      int64     `json:"allocated_microgons"`
	RevenueMicrogons        int64     `json:"revenue_microgons"`
	SettledCentagons        int64     `json:"settled_centagons"`
	RefundCentagons         int64     `json:"refund_centagons"`
	SettlementFeeCentagons  int64     `json:"settlement_fee_centagons"`
	BurnedCentagons         int64     `json:"burned_centagons"`
	MicronotesCount         int64     `json:"micronotes_count"`
	ClaimedMicronotesCount  int64     `json:"claimed_micronotes_count"`
	CanceledMicronotesCount int64     `json:"canceled_micronotes_count"`
	StartBlockHeight        int64     `json:"start_block_height"`
	EndBlockHeight          int64     `json:"end_block_height"`
	CreatedAt               time.Time `json:"created_at"`
}
