package domain

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

type NoteType string

const (
	NoteTypeTransferIn           NoteType = "transferIn"
	NoteTypeTransfer             NoteType = "transfer"
	NoteTypeMicronoteFunds       NoteType = "micronoteFunds"
	NoteTypeMicronoteBatchRefund NoteType = "micronoteBatchRefund"
	NoteTypeRevenue              NoteType = "revenue"
	NoteTypeSettlementFees       NoteType = "settlementFees"
	NoteTypeBurn                 NoteType = "burn"
)

func (t NoteType) Valid() bool {
	switch t {
	case NoteTypeTransferIn, NoteTypeTransfer, NoteTypeMicronoteFunds, NoteTypeMicronoteBatchRefund,
		NoteTypeRevenue, NoteTypeSettlementFees, NoteTypeBurn:
		return true
	default:
		return false
	}
}

// Note is a main-ledger transfer.
type Note struct {
	Hash                 string    `json:"hash"`
	FromAddress          string    `json:"from_address"`
	ToAddress            string    `json:"to_address"`
	Centagons            int64     `json:"centagons"`
	Type                 NoteType  `json:"type"`
	GuaranteeBlockHeight int64     `json:"guarantee_block_height"`
	Timestamp            time.Time `json:"timestamp"`
	Signature            string    `json:"signature"`
}

// ComputeHash hashes the canonical note fields; the signature is not part of the hash.
func (n Note) ComputeHash() string {
	canonical := fmt.Sprintf("%s|%s|%d|%s|%d|%d",
		n.FromAddress, n.ToAddress, n.Centagons, n.Type, n.GuaranteeBlockHeight, n.Timestamp.UTC().UnixMilli())
	sum := sha3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func (n Note) Validate() error {
	if !n.Type.Valid() {
		return InvalidParameter("note_type_invalid", "note.type", "unknown note type")
	}
	if n.Centagons <= 0 {
		return InvalidParameter("note_amount_invalid", "note.centagons", "note must move a positive amount")
	}
	if n.ToAddress == "" {
		return InvalidParameter("note_destination_missing", "note.toAddress", "note destination is required")
	}
	if n.Type != NoteTypeTransferIn && n.FromAddress == "" {
		return InvalidParameter("note_source_missing", "note.fromAddress", "note source is required")
	}
	if n.Timestamp.IsZero() {
		return InvalidParameter("note_timestamp_missing", "note.timestamp", "note timestamp is required")
	}
	if n.Hash != "" && n.Hash != n.ComputeHash() {
		return InvalidParameter("note_hash_mismatch", "note.hash", "note hash does not match its contents").
			WithValues(n.ComputeHash(), n.Hash)
	}
	return nil
}

// Block is the main-chain position consumed from the chain bridge.
type Block struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
}
