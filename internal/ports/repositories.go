package ports

import (
	"context"
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
)

// BatchStores owns the isolated per-batch stores. Every batch-scoped
// operation runs inside exactly one transaction against one batch store.
type BatchStores interface {
	Provision(ctx context.Context, slug string) error
	Transact(ctx context.Context, slug string, fn func(tx BatchTx) error) error
}

type BatchTx interface {
	FundingSources() FundingSourceRepository
	Micronotes() MicronoteRepository
	Holds() HoldRepository
	Earnings() EarningRepository
	Payouts() PayoutRepository
}

type FundingSourceRepository interface {
	Create(ctx context.Context, source domain.FundingSource) (domain.FundingSource, error)
	Get(ctx context.Context, id int64) (domain.FundingSource, error)
	// Allocate admits microgons only if the row belongs to owner and still has
	// enough unallocated capacity; otherwise it fails with FundsNeeded or NotFound.
	Allocate(ctx context.Context, id int64, owner string, microgons int64) (domain.FundingSource, error)
	Release(ctx context.Context, id int64, owner string, microgons int64) error
	FindAvailable(ctx context.Context, owner string, microgons int64) (domain.FundingSource, bool, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.FundingSource, error)
	ListByIDs(ctx context.Context, owner string, ids []int64) ([]domain.FundingSource, error)
	List(ctx context.Context) ([]domain.FundingSource, error)
}

type MicronoteRepository interface {
	Create(ctx context.Context, note domain.Micronote) error
	Get(ctx context.Context, id string) (domain.Micronote, error)
	GetForUpdate(ctx context.Context, id string) (domain.Micronote, error)
	MarkLocked(ctx context.Context, id, identity string, at time.Time) error
	MarkHasSettlements(ctx context.Context, id string) error
	MarkFinalized(ctx context.Context, id string, at time.Time) error
	MarkCanceled(ctx context.Context, id string, at time.Time) error
	ListUnresolved(ctx context.Context) ([]domain.Micronote, error)
	Counts(ctx context.Context) (MicronoteCounts, error)
}

type MicronoteCounts struct {
	Total     int64
	Finalized int64
	Canceled  int64
}

type HoldRepository interface {
	Create(ctx context.Context, hold domain.MicronoteHold) error
	ListByMicronote(ctx context.Context, micronoteID string) ([]domain.MicronoteHold, error)
	MarkSettled(ctx context.Context, holdID string, microgons int64, at time.Time) error
}

type EarningRepository interface {
	Add(ctx context.Context, micronoteID, address string, microgons int64) error
	ListByMicronote(ctx context.Context, micronoteID string) ([]domain.RecipientEarning, error)
	TotalsByAddress(ctx context.Context) ([]domain.AddressEarnings, error)
}

type PayoutRepository interface {
	Exists(ctx context.Context) (bool, error)
	CreateAll(ctx context.Context, records []domain.PayoutRecord) error
	List(ctx context.Context) ([]domain.PayoutRecord, error)
}

// SharedStore holds batches, main-ledger balances, batch summaries and the outbox.
// The embedded SharedTx reads outside of a transaction.
type SharedStore interface {
	SharedTx
	Transact(ctx context.Context, fn func(tx SharedTx) error) error
}

type SharedTx interface {
	Batches() BatchRepository
	Ledger() LedgerRepository
	Outputs() BatchOutputRepository
	Outbox() OutboxRepository
}

type BatchRepository interface {
	Create(ctx context.Context, batch domain.Batch) error
	GetBySlug(ctx context.Context, slug string) (domain.Batch, error)
	GetBySlugForUpdate(ctx context.Context, slug string) (domain.Batch, error)
	GetPermanent(ctx context.Context, batchType domain.BatchType) (domain.Batch, error)
	ListUnsettled(ctx context.Context) ([]domain.Batch, error)
	MarkClosed(ctx context.Context, slug string, at time.Time) error
	MarkSettled(ctx context.Context, slug string, at time.Time) error
}

type LedgerRepository interface {
	// LockBalance returns the address balance with its row locked, creating an
	// empty row on first use.
	LockBalance(ctx context.Context, address string) (int64, error)
	AdjustBalance(ctx context.Context, address string, deltaCentagons int64) (int64, error)
	Balance(ctx context.Context, address string) (int64, error)
	InsertNote(ctx context.Context, note domain.Note) error
	GetNote(ctx context.Context, hash string) (domain.Note, error)
	ListNotesTo(ctx context.Context, address string, noteType domain.NoteType) ([]domain.Note, error)
}

type BatchOutputRepository interface {
	Create(ctx context.Context, output domain.BatchOutput) error
	Get(ctx context.Context, slug string) (domain.BatchOutput, error)
}
