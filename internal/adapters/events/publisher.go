package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ulixee/payments-sub000/internal/contracts"
	"github.com/ulixee/payments-sub000/internal/domain"
)

// LoggingPublisher stands in for the broker when none is configured. It
// still decodes each envelope so a malformed batch event is dead-lettered
// the same way a broker rejection would be.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode %s envelope: %w", eventType, err)
	}
	if envelope.EventType != eventType || envelope.PartitionKey != partitionKey {
		return fmt.Errorf("envelope %s does not match %s/%s", envelope.EventID, eventType, partitionKey)
	}
	fields := []any{
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"event_type", eventType,
		"event_id", envelope.EventID,
		"batch_slug", partitionKey,
	}
	fields = append(fields, batchEventFields(eventType, envelope.Data)...)
	p.logger.InfoContext(ctx, "batch event published", fields...)
	return nil
}

func batchEventFields(eventType string, data json.RawMessage) []any {
	switch eventType {
	case domain.EventBatchClosed:
		var closed contracts.BatchClosedPayload
		if json.Unmarshal(data, &closed) == nil {
			return []any{"payout_records", closed.PayoutRecords, "deposited_centagons", closed.DepositedCentagons, "burn_centagons", closed.BurnCentagons}
		}
	case domain.EventBatchSettled:
		var settled contracts.BatchSettledPayload
		if json.Unmarshal(data, &settled) == nil {
			return []any{"settled_centagons", settled.SettledCentagons, "burned_centagons", settled.BurnedCentagons}
		}
	case domain.EventBatchOpened:
		var opened contracts.BatchOpenedPayload
		if json.Unmarshal(data, &opened) == nil {
			return []any{"batch_type", opened.BatchType, "address", opened.Address}
		}
	}
	return nil
}
