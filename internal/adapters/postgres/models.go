package postgres

import (
	"time"

	"github.com/google/uuid"
)

func sharedModels() []any {
	return []any{&batchModel{}, &ledgerBalanceModel{}, &ledgerNoteModel{}, &batchOutputModel{}, &outboxModel{}}
}

func batchModels() []any {
	return []any{&fundingSourceModel{}, &micronoteModel{}, &holdModel{}, &earningModel{}, &payoutModel{}}
}

type batchModel struct {
	Slug                string     `gorm:"column:slug;size:32;primaryKey"`
	Address             string     `gorm:"column:address;uniqueIndex"`
	Identity            string     `gorm:"column:identity"`
	Type                string     `gorm:"column:type;index"`
	EncryptedPrivateKey []byte     `gorm:"column:encrypted_private_key"`
	OpenedAt            time.Time  `gorm:"column:opened_at"`
	PlannedClosingAt    *time.Time `gorm:"column:planned_closing_at"`
	StopNewNotesAt      *time.Time `gorm:"column:stop_new_notes_at"`
	ClosedAt            *time.Time `gorm:"column:closed_at"`
	SettledAt           *time.Time `gorm:"column:settled_at;index"`
}

func (batchModel) TableName() string { return "micronote_batches" }

type ledgerBalanceModel struct {
	Address   string    `gorm:"column:address;primaryKey"`
	Centagons int64     `gorm:"column:centagons"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (ledgerBalanceModel) TableName() string { return "wallet_balances" }

type ledgerNoteModel struct {
	Hash                 string    `gorm:"column:note_hash;size:64;primaryKey"`
	FromAddress          string    `gorm:"column:from_address;index"`
	ToAddress            string    `gorm:"column:to_address;index"`
	Centagons            int64     `gorm:"column:centagons"`
	Type                 string    `gorm:"column:type"`
	GuaranteeBlockHeight int64     `gorm:"column:guarantee_block_height"`
	Timestamp            time.Time `gorm:"column:note_timestamp"`
	Signature            string    `gorm:"column:signature"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

func (ledgerNoteModel) TableName() string { return "notes" }

type batchOutputModel struct {
	BatchSlug               string    `gorm:"column:batch_slug;size:32;primaryKey"`
	BatchAddress            string    `gorm:"column:batch_address"`
	FundingMicrogons        int64     `gorm:"column:funding_microgons"`
	AllocatedMicrogons      int64     `gorm:"column:allocated_microgons"`
	RevenueMicrogons        int64     `gorm:"column:revenue_microgons"`
	SettledCentagons        int64     `gorm:"column:settled_centagons"`
	RefundCentagons         int64     `gorm:"column:refund_centagons"`
	SettlementFeeCentagons  int64     `gorm:"column:settlement_fee_centagons"`
	BurnedCentagons         int64     `gorm:"column:burned_centagons"`
	MicronotesCount         int64     `gorm:"column:micronotes_count"`
	ClaimedMicronotesCount  int64     `gorm:"column:claimed_micronotes_count"`
	CanceledMicronotesCount int64     `gorm:"column:canceled_micronotes_count"`
	StartBlockHeight        int64     `gorm:"column:start_block_height"`
	EndBlockHeight          int64     `gorm:"column:end_block_height"`
	CreatedAt               time.Time `gorm:"column:created_at"`
}

func (batchOutputModel) TableName() string { return "micronote_batch_outputs" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at;index"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "micronote_outbox" }

type fundingSourceModel struct {
	ID                   int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerAddress         string    `gorm:"column:owner_address;index"`
	BatchAddress         string    `gorm:"column:batch_address"`
	DepositedMicrogons   int64     `gorm:"column:deposited_microgons"`
	AllocatedMicrogons   int64     `gorm:"column:allocated_microgons"`
	Origin               string    `gorm:"column:origin"`
	OriginHash           string    `gorm:"column:origin_hash;uniqueIndex"`
	GuaranteeBlockHeight int64     `gorm:"column:guarantee_block_height"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

func (fundingSourceModel) TableName() string { return "micronote_funds" }

type micronoteModel struct {
	ID                    string     `gorm:"column:id;size:64;primaryKey"`
	FundsID               int64      `gorm:"column:funds_id;index"`
	OwnerAddress          string     `gorm:"column:owner_address"`
	AllocatedMicrogons    int64      `gorm:"column:allocated_microgons"`
	Nonce                 string     `gorm:"column:nonce"`
	BlockHeight           int64      `gorm:"column:block_height"`
	IsAuditable           bool       `gorm:"column:is_auditable"`
	LockHolderIdentity    *string    `gorm:"column:lock_holder_identity"`
	LockAuthorizationCode string     `gorm:"column:lock_authorization_code"`
	HasSettlements        bool       `gorm:"column:has_settlements"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
	LockedAt              *time.Time `gorm:"column:locked_at"`
	FinalizedAt           *time.Time `gorm:"column:finalized_at"`
	CanceledAt            *time.Time `gorm:"column:canceled_at"`
}

func (micronoteModel) TableName() string { return "micronotes" }

type holdModel struct {
	HoldID           string     `gorm:"column:hold_id;size:36;primaryKey"`
	MicronoteID      string     `gorm:"column:micronote_id;index"`
	HolderIdentity   string     `gorm:"column:holder_identity"`
	MicrogonsHeld    int64      `gorm:"column:microgons_held"`
	MicrogonsSettled *int64     `gorm:"column:microgons_settled"`
	HeldAt           time.Time  `gorm:"column:held_at"`
	SettledAt        *time.Time `gorm:"column:settled_at"`
}

func (holdModel) TableName() string { return "micronote_holds" }

type earningModel struct {
	MicronoteID     string `gorm:"column:micronote_id;size:64;primaryKey"`
	Address         string `gorm:"column:address;primaryKey"`
	MicrogonsEarned int64  `gorm:"column:microgons_earned"`
}

func (earningModel) TableName() string { return "micronote_recipients" }

type payoutModel struct {
	ID                   int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ToAddress            string    `gorm:"column:to_address"`
	Centagons            int64     `gorm:"column:centagons"`
	Type                 string    `gorm:"column:type"`
	FundsID              *int64    `gorm:"column:funds_id"`
	GuaranteeBlockHeight int64     `gorm:"column:guarantee_block_height"`
	NoteHash             string    `gorm:"column:note_hash;uniqueIndex"`
	Signature            string    `gorm:"column:signature"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

func (payoutModel) TableName() string { return "note_outputs" }
