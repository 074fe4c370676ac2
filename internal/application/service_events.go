package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ulixee/payments-sub000/internal/contracts"
	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

func (s *Service) enqueueEvent(ctx context.Context, tx ports.SharedTx, eventType, traceID, batchSlug string, data any, now time.Time) error {
	if !domain.IsCanonicalEmittedEvent(eventType) {
		return fmt.Errorf("unsupported event type %q", eventType)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if strings.TrimSpace(traceID) == "" {
		traceID = uuid.NewString()
	}
	eventID := uuid.New()
	envelope, err := json.Marshal(contracts.EventEnvelope{
		EventID:          eventID.String(),
		EventType:        eventType,
		OccurredAt:       now,
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     batchSlug,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceID,
		SchemaVersion:    "v1",
		Data:             raw,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	return tx.Outbox().Enqueue(ctx, ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: batchSlug,
		Payload:      envelope,
		OccurredAt:   now,
	})
}

func (s *Service) enqueueBatchOpened(ctx context.Context, tx ports.SharedTx, batch domain.Batch, now time.Time) error {
	return s.enqueueEvent(ctx, tx, domain.EventBatchOpened, "", batch.Slug, contracts.BatchOpenedPayload{
		BatchSlug:        batch.Slug,
		BatchType:        string(batch.Type),
		Address:          batch.Address,
		Identity:         batch.Identity,
		OpenedAt:         batch.OpenedAt.UTC().Format(time.RFC3339),
		PlannedClosingAt: batch.PlannedClosingAt,
	}, now)
}

func (s *Service) enqueueBatchClosed(ctx context.Context, tx ports.SharedTx, batch domain.Batch, records []domain.PayoutRecord, height int64, now time.Time) error {
	payload := contracts.BatchClosedPayload{
		BatchSlug:            batch.Slug,
		Address:              batch.Address,
		PayoutRecords:        len(records),
		GuaranteeBlockHeight: height,
		ClosedAt:             now.UTC().Format(time.RFC3339),
	}
	for _, record := range records {
		payload.DepositedCentagons += record.Centagons
		if record.Type == domain.NoteTypeBurn {
			payload.BurnCentagons += record.Centagons
		}
	}
	return s.enqueueEvent(ctx, tx, domain.EventBatchClosed, "", batch.Slug, payload, now)
}

func (s *Service) enqueueBatchSettled(ctx context.Context, tx ports.SharedTx, output domain.BatchOutput, now time.Time) error {
	return s.enqueueEvent(ctx, tx, domain.EventBatchSettled, "", output.BatchSlug, contracts.BatchSettledPayload{
		BatchSlug:              output.BatchSlug,
		Address:                output.BatchAddress,
		SettledCentagons:       output.SettledCentagons,
		RefundCentagons:        output.RefundCentagons,
		SettlementFeeCentagons: output.SettlementFeeCentagons,
		BurnedCentagons:        output.BurnedCentagons,
		SettledAt:              now.UTC().Format(time.RFC3339),
	}, now)
}
