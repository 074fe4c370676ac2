package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type BatchOpenedPayload struct {
	BatchSlug        string     `json:"batch_slug"`
	BatchType        string     `json:"batch_type"`
	Address          string     `json:"address"`
	Identity         string     `json:"identity"`
	OpenedAt         string     `json:"opened_at"`
	PlannedClosingAt *time.Time `json:"planned_closing_at,omitempty"`
}

type BatchClosedPayload struct {
	BatchSlug            string `json:"batch_slug"`
	Address              string `json:"address"`
	PayoutRecords        int    `json:"payout_records"`
	DepositedCentagons   int64  `json:"deposited_centagons"`
	BurnCentagons        int64  `json:"burn_centagons"`
	GuaranteeBlockHeight int64  `json:"guarantee_block_height"`
	ClosedAt             string `json:"closed_at"`
}

type BatchSettledPayload struct {
	BatchSlug              string `json:"batch_slug"`
	Address                string `json:"address"`
	SettledCentagons       int64  `json:"settled_centagons"`
	RefundCentagons        int64  `json:"refund_centagons"`
	SettlementFeeCentagons int64  `json:"settlement_fee_centagons"`
	BurnedCentagons        int64  `json:"burned_centagons"`
	SettledAt              string `json:"settled_at"`
}
