package domain

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// Micronote is the unit of payment: Created -> Locked -> (holds) -> Finalized,
// or Canceled during batch close.
type Micronote struct {
	ID                    string     `json:"micronote_id"`
	FundingSourceID       int64      `json:"funds_id"`
	OwnerAddress          string     `json:"owner_address"`
	AllocatedMicrogons    int64      `json:"allocated_microgons"`
	Nonce                 string     `json:"nonce"`
	BlockHeight           int64      `json:"block_height"`
	IsAuditable           bool       `json:"is_auditable"`
	LockHolderIdentity    string     `json:"lock_holder_identity,omitempty"`
	LockAuthorizationCode string     `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	LockedAt              *time.Time `json:"locked_at,omitempty"`
	FinalizedAt           *time.Time `json:"finalized_at,omitempty"`
	CanceledAt            *time.Time `json:"canceled_at,omitempty"`
	HasSettlements        bool       `json:"has_settlements"`
}

func (m Micronote) IsLocked() bool    { return m.LockHolderIdentity != "" }
func (m Micronote) IsFinalized() bool { return m.FinalizedAt != nil }
func (m Micronote) IsCanceled() bool  { return m.CanceledAt != nil }

// AllowedMicrogons is the ceiling all holds of the note share.
func (m Micronote) AllowedMicrogons(settlementFee int64) int64 {
	allowed := m.AllocatedMicrogons - settlementFee
	if allowed < 0 {
		return 0
	}
	return allowed
}

// NewMicronoteID derives the note id so that a replayed creation collides.
func NewMicronoteID(blockHeight int64, nonce []byte, batchAddress string, at time.Time) string {
	h := sha3.New256()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(blockHeight))
	h.Write(buf[:])
	h.Write(nonce)
	h.Write([]byte(batchAddress))
	binary.BigEndian.PutUint64(buf[:], uint64(at.UTC().UnixMilli()))
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))
}

type MicronoteHold struct {
	MicronoteID      string     `json:"micronote_id"`
	HoldID           string     `json:"hold_id"`
	HolderIdentity   string     `json:"holder_identity"`
	MicrogonsHeld    int64      `json:"microgons_held"`
	MicrogonsSettled *int64     `json:"microgons_settled,omitempty"`
	HeldAt           time.Time  `json:"held_at"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
}

func (h MicronoteHold) IsSettled() bool { return h.SettledAt != nil }

// CommittedMicrogons is the settled amount once settled, otherwise the held amount.
func (h MicronoteHold) CommittedMicrogons() int64 {
	if h.MicrogonsSettled != nil {
		return *h.MicrogonsSettled
	}
	return h.MicrogonsHeld
}

// CommittedMicrogons sums settled-or-held across holds, skipping the hold id given.
func CommittedMicrogons(holds []MicronoteHold, exceptHoldID string) int64 {
	var total int64
	for _, hold := range holds {
		if hold.HoldID == exceptHoldID {
			continue
		}
		total += hold.CommittedMicrogons()
	}
	return total
}

type RecipientEarning struct {
	MicronoteID     string `json:"micronote_id"`
	Address         string `json:"address"`
	MicrogonsEarned int64  `json:"microgons_earned"`
}

// AddressEarnings is the batch-wide total for one destination address.
type AddressEarnings struct {
	Address   string `json:"address"`
	Microgons int64  `json:"microgons"`
}

// Allocation maps a recipient address to the microgons it earns.
type Allocation map[string]int64

func (a Allocation) Validate() (int64, error) {
	var total int64
	for address, microgons := range a {
		if strings.TrimSpace(address) == "" {
			return 0, InvalidParameter("allocation_address_missing", "recipientAllocation", "recipient address is required")
		}
		if microgons < 0 {
			return 0, InvalidParameter("allocation_negative", "recipientAllocation."+address, "recipient amount cannot be negative").
				WithValues(">= 0", microgons)
		}
		total += microgons
	}
	return total, nil
}

// Addresses returns the recipients in a stable order.
func (a Allocation) Addresses() []string {
	out := make([]string, 0, len(a))
	for address := range a {
		out = append(out, address)
	}
	sort.Strings(out)
	return out
}
