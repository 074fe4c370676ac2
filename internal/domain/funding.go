package domain

import (
	"strings"
	"time"
)

type FundingOrigin string

const (
	FundingOriginDeposit  FundingOrigin = "deposit"
	FundingOriginGiftCard FundingOrigin = "giftCard"
	FundingOriginCredit   FundingOrigin = "credit"
)

// FundingSource is one funding pool row. AllocatedMicrogons never exceeds
// DepositedMicrogons; the store enforces it with a conditional update.
type FundingSource struct {
	ID                   int64         `json:"funds_id"`
	OwnerAddress         string        `json:"owner_address"`
	BatchAddress         string        `json:"batch_address"`
	DepositedMicrogons   int64         `json:"deposited_microgons"`
	AllocatedMicrogons   int64         `json:"allocated_microgons"`
	Origin               FundingOrigin `json:"origin"`
	OriginHash           string        `json:"origin_hash"`
	GuaranteeBlockHeight int64         `json:"guarantee_block_height"`
	CreatedAt            time.Time     `json:"created_at"`
}

func (f FundingSource) RemainingMicrogons() int64 {
	return f.DepositedMicrogons - f.AllocatedMicrogons
}

// ValidateDeposit checks a main-ledger note that is meant to fund a batch.
func ValidateDeposit(note Note, batchAddress string, minimumCentagons int64) error {
	if strings.TrimSpace(note.Hash) == "" {
		return InvalidParameter("note_hash_missing", "note.hash", "funding note must carry a hash")
	}
	if note.ToAddress != batchAddress {
		return InvalidParameter("note_destination_mismatch", "note.toAddress", "funding note is not addressed to this batch").
			WithValues(batchAddress, note.ToAddress)
	}
	if note.Type != NoteTypeMicronoteFunds {
		return InvalidParameter("note_type_mismatch", "note.type", "funding note must be a micronote funds transfer").
			WithValues(NoteTypeMicronoteFunds, note.Type)
	}
	if note.Centagons < minimumCentagons {
		return InvalidParameter("note_below_minimum", "note.centagons", "funding note is below the batch minimum").
			WithValues(minimumCentagons, note.Centagons)
	}
	return nil
}
