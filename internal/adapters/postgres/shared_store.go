package postgres

import (
	"context"
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SharedStore is the cross-batch store: batches, main-ledger balances and
// notes, batch summaries and the event outbox.
type SharedStore struct {
	sharedTx
}

func NewSharedStore(db *gorm.DB) *SharedStore {
	return &SharedStore{sharedTx{db: db}}
}

func (s *SharedStore) Transact(ctx context.Context, fn func(tx ports.SharedTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(sharedTx{db: tx})
	})
}

type sharedTx struct {
	db *gorm.DB
}

func (t sharedTx) Batches() ports.BatchRepository       { return &batchRepository{db: t.db} }
func (t sharedTx) Ledger() ports.LedgerRepository       { return &ledgerRepository{db: t.db} }
func (t sharedTx) Outputs() ports.BatchOutputRepository { return &batchOutputRepository{db: t.db} }
func (t sharedTx) Outbox() ports.OutboxRepository       { return &outboxRepository{db: t.db} }

type batchRepository struct {
	db *gorm.DB
}

func (r *batchRepository) Create(ctx context.Context, batch domain.Batch) error {
	rec := batchModel{
		Slug:                batch.Slug,
		Address:             batch.Address,
		Identity:            batch.Identity,
		Type:                string(batch.Type),
		EncryptedPrivateKey: batch.EncryptedPrivateKey,
		OpenedAt:            batch.OpenedAt,
		PlannedClosingAt:    batch.PlannedClosingAt,
		StopNewNotesAt:      batch.StopNewNotesAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("batch_duplicate", "batch already exists")
		}
		return err
	}
	return nil
}

func (r *batchRepository) GetBySlug(ctx context.Context, slug string) (domain.Batch, error) {
	return r.get(r.db.WithContext(ctx), slug)
}

func (r *batchRepository) GetBySlugForUpdate(ctx context.Context, slug string) (domain.Batch, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), slug)
}

func (r *batchRepository) get(db *gorm.DB, slug string) (domain.Batch, error) {
	var rec batchModel
	if err := db.Where("slug = ?", slug).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return domain.Batch{}, domain.NotFound("batch_not_found", "micronote batch not found")
		}
		return domain.Batch{}, err
	}
	return toDomainBatch(rec), nil
}

func (r *batchRepository) GetPermanent(ctx context.Context, batchType domain.BatchType) (domain.Batch, error) {
	var rows []batchModel
	if err := r.db.WithContext(ctx).
		Where("type = ?", string(batchType)).
		Order("opened_at ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return domain.Batch{}, err
	}
	if len(rows) == 0 {
		return domain.Batch{}, domain.NotFound("batch_not_found", "no "+string(batchType)+" batch has been created")
	}
	return toDomainBatch(rows[0]), nil
}

func (r *batchRepository) ListUnsettled(ctx context.Context) ([]domain.Batch, error) {
	var rows []batchModel
	if err := r.db.WithContext(ctx).
		Where("settled_at IS NULL").
		Order("opened_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Batch, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainBatch(row))
	}
	return out, nil
}

func (r *batchRepository) MarkClosed(ctx context.Context, slug string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&batchModel{}).
		Where("slug = ? AND closed_at IS NULL", slug).
		Update("closed_at", at).Error
}

func (r *batchRepository) MarkSettled(ctx context.Context, slug string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&batchModel{}).
		Where("slug = ? AND closed_at IS NOT NULL AND settled_at IS NULL", slug).
		Update("settled_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.Conflict("batch_not_settleable", "batch is not closed or was already settled")
	}
	return nil
}

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) LockBalance(ctx context.Context, address string) (int64, error) {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ledgerBalanceModel{Address: address, UpdatedAt: time.Now().UTC()}).Error; err != nil {
		return 0, err
	}
	var rec ledgerBalanceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		Take(&rec).Error; err != nil {
		return 0, err
	}
	return rec.Centagons, nil
}

func (r *ledgerRepository) AdjustBalance(ctx context.Context, address string, deltaCentagons int64) (int64, error) {
	if _, err := r.LockBalance(ctx, address); err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).
		Model(&ledgerBalanceModel{}).
		Where("address = ?", address).
		Updates(map[string]any{
			"centagons":  gorm.Expr("centagons + ?", deltaCentagons),
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
		return 0, err
	}
	return r.Balance(ctx, address)
}

func (r *ledgerRepository) Balance(ctx context.Context, address string) (int64, error) {
	var rows []ledgerBalanceModel
	if err := r.db.WithContext(ctx).Where("address = ?", address).Limit(1).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Centagons, nil
}

func (r *ledgerRepository) InsertNote(ctx context.Context, note domain.Note) error {
	rec := ledgerNoteModel{
		Hash:                 note.Hash,
		FromAddress:          note.FromAddress,
		ToAddress:            note.ToAddress,
		Centagons:            note.Centagons,
		Type:                 string(note.Type),
		GuaranteeBlockHeight: note.GuaranteeBlockHeight,
		Timestamp:            note.Timestamp,
		Signature:            note.Signature,
		CreatedAt:            time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("note_duplicate", "a note with this hash has already been recorded")
		}
		return err
	}
	return nil
}

func (r *ledgerRepository) GetNote(ctx context.Context, hash string) (domain.Note, error) {
	var rec ledgerNoteModel
	if err := r.db.WithContext(ctx).Where("note_hash = ?", hash).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return domain.Note{}, domain.NotFound("note_not_found", "note not found")
		}
		return domain.Note{}, err
	}
	return toDomainNote(rec), nil
}

func (r *ledgerRepository) ListNotesTo(ctx context.Context, address string, noteType domain.NoteType) ([]domain.Note, error) {
	var rows []ledgerNoteModel
	if err := r.db.WithContext(ctx).
		Where("to_address = ? AND type = ?", address, string(noteType)).
		Order("note_timestamp ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Note, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainNote(row))
	}
	return out, nil
}

type batchOutputRepository struct {
	db *gorm.DB
}

func (r *batchOutputRepository) Create(ctx context.Context, output domain.BatchOutput) error {
	rec := batchOutputModel{
		BatchSlug:               output.BatchSlug,
		BatchAddress:            output.BatchAddress,
		FundingMicrogons:        output.FundingMicrogons,
		AllocatedMicrogons:      output.AllocatedMicrogons,
		RevenueMicrogons:        output.RevenueMicrogons,
		SettledCentagons:        output.SettledCentagons,
		RefundCentagons:         output.RefundCentagons,
		SettlementFeeCentagons:  output.SettlementFeeCentagons,
		BurnedCentagons:         output.BurnedCentagons,
		MicronotesCount:         output.MicronotesCount,
		ClaimedMicronotesCount:  output.ClaimedMicronotesCount,
		CanceledMicronotesCount: output.CanceledMicronotesCount,
		StartBlockHeight:        output.StartBlockHeight,
		EndBlockHeight:          output.EndBlockHeight,
		CreatedAt:               output.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("batch_output_duplicate", "batch summary already recorded")
		}
		return err
	}
	return nil
}

func (r *batchOutputRepository) Get(ctx context.Context, slug string) (domain.BatchOutput, error) {
	var rec batchOutputModel
	if err := r.db.WithContext(ctx).Where("batch_slug = ?", slug).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return domain.BatchOutput{}, domain.NotFound("batch_output_not_found", "batch has not been settled")
		}
		return domain.BatchOutput{}, err
	}
	return toDomainBatchOutput(rec), nil
}
