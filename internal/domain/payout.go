package domain

import "time"

// PayoutRecord is one outbound transfer produced by closing a batch.
// Records are immutable; their presence marks the batch as closed.
type PayoutRecord struct {
	ID                   int64     `json:"id"`
	ToAddress            string    `json:"to_address"`
	Centagons            int64     `json:"centagons"`
	Type                 NoteType  `json:"type"`
	FundingSourceID      *int64    `json:"funds_id,omitempty"`
	GuaranteeBlockHeight int64     `json:"guarantee_block_height"`
	NoteHash             string    `json:"note_hash"`
	Signature            string    `json:"signature"`
	CreatedAt            time.Time `json:"created_at"`
}

// ToNote renders the record as the main-ledger note the batch sends.
func (p PayoutRecord) ToNote(batchAddress string) Note {
	note := Note{
		FromAddress:          batchAddress,
		ToAddress:            p.ToAddress,
		Centagons:            p.Centagons,
		Type:                 p.Type,
		GuaranteeBlockHeight: p.GuaranteeBlockHeight,
		Timestamp:            p.CreatedAt,
		Signature:            p.Signature,
	}
	note.Hash = note.ComputeHash()
	return note
}

type FundSettlement struct {
	FundsID          int64 `json:"funds_id"`
	FundedCentagons  int64 `json:"funded_centagons"`
	SettledCentagons int64 `json:"settled_centagons"`
	RefundCentagons  int64 `json:"refund_centagons"`
}

type FundSettlementReport struct {
	IsBatchSettled bool             `json:"is_batch_settled"`
	SettledAt      *time.Time       `json:"settled_at,omitempty"`
	Settlements    []FundSettlement `json:"settlements"`
}
