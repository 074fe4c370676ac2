package postgres

import (
	"context"
	"time"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type micronoteRepository struct {
	db *gorm.DB
}

func (r *micronoteRepository) Create(ctx context.Context, note domain.Micronote) error {
	rec := micronoteModel{
		ID:                    note.ID,
		FundsID:               note.FundingSourceID,
		OwnerAddress:          note.OwnerAddress,
		AllocatedMicrogons:    note.AllocatedMicrogons,
		Nonce:                 note.Nonce,
		BlockHeight:           note.BlockHeight,
		IsAuditable:           note.IsAuditable,
		LockAuthorizationCode: note.LockAuthorizationCode,
		CreatedAt:             note.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("micronote_duplicate", "a micronote with this id already exists")
		}
		return err
	}
	return nil
}

func (r *micronoteRepository) Get(ctx context.Context, id string) (domain.Micronote, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *micronoteRepository) GetForUpdate(ctx context.Context, id string) (domain.Micronote, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *micronoteRepository) get(db *gorm.DB, id string) (domain.Micronote, error) {
	var rec micronoteModel
	if err := db.Where("id = ?", id).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return domain.Micronote{}, domain.NotFound("micronote_not_found", "micronote not found")
		}
		return domain.Micronote{}, err
	}
	return toDomainMicronote(rec), nil
}

func (r *micronoteRepository) MarkLocked(ctx context.Context, id, identity string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&micronoteModel{}).
		Where("id = ? AND lock_holder_identity IS NULL", id).
		Updates(map[string]any{
			"lock_holder_identity": identity,
			"locked_at":            at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.Conflict("micronote_already_locked", "micronote is locked by another identity")
	}
	return nil
}

func (r *micronoteRepository) MarkHasSettlements(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&micronoteModel{}).
		Where("id = ?", id).
		Update("has_settlements", true).Error
}

func (r *micronoteRepository) MarkFinalized(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&micronoteModel{}).
		Where("id = ? AND finalized_at IS NULL AND canceled_at IS NULL", id).
		Update("finalized_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.Conflict("micronote_already_finalized", "micronote has already been finalized")
	}
	return nil
}

func (r *micronoteRepository) MarkCanceled(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&micronoteModel{}).
		Where("id = ? AND finalized_at IS NULL AND canceled_at IS NULL", id).
		Update("canceled_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.Conflict("micronote_not_cancelable", "micronote is already finalized or canceled")
	}
	return nil
}

func (r *micronoteRepository) ListUnresolved(ctx context.Context) ([]domain.Micronote, error) {
	var rows []micronoteModel
	if err := r.db.WithContext(ctx).
		Where("finalized_at IS NULL AND canceled_at IS NULL").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Micronote, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainMicronote(row))
	}
	return out, nil
}

func (r *micronoteRepository) Counts(ctx context.Context) (ports.MicronoteCounts, error) {
	var counts ports.MicronoteCounts
	if err := r.db.WithContext(ctx).Model(&micronoteModel{}).Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := r.db.WithContext(ctx).Model(&micronoteModel{}).Where("finalized_at IS NOT NULL").Count(&counts.Finalized).Error; err != nil {
		return counts, err
	}
	if err := r.db.WithContext(ctx).Model(&micronoteModel{}).Where("canceled_at IS NOT NULL").Count(&counts.Canceled).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

type holdRepository struct {
	db *gorm.DB
}

func (r *holdRepository) Create(ctx context.Context, hold domain.MicronoteHold) error {
	rec := holdModel{
		HoldID:         hold.HoldID,
		MicronoteID:    hold.MicronoteID,
		HolderIdentity: hold.HolderIdentity,
		MicrogonsHeld:  hold.MicrogonsHeld,
		HeldAt:         hold.HeldAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *holdRepository) ListByMicronote(ctx context.Context, micronoteID string) ([]domain.MicronoteHold, error) {
	var rows []holdModel
	if err := r.db.WithContext(ctx).
		Where("micronote_id = ?", micronoteID).
		Order("held_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.MicronoteHold, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainHold(row))
	}
	return out, nil
}

func (r *holdRepository) MarkSettled(ctx context.Context, holdID string, microgons int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&holdModel{}).
		Where("hold_id = ? AND settled_at IS NULL", holdID).
		Updates(map[string]any{
			"microgons_settled": microgons,
			"settled_at":        at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.InvalidParameter("hold_already_settled", "holdId", "hold has already been settled")
	}
	return nil
}

type earningRepository struct {
	db *gorm.DB
}

// Add accumulates earnings for one recipient of a note. Callers hold the note
// row lock, so update-then-insert cannot race.
func (r *earningRepository) Add(ctx context.Context, micronoteID, address string, microgons int64) error {
	res := r.db.WithContext(ctx).
		Model(&earningModel{}).
		Where("micronote_id = ? AND address = ?", micronoteID, address).
		Update("microgons_earned", gorm.Expr("microgons_earned + ?", microgons))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&earningModel{
		MicronoteID:     micronoteID,
		Address:         address,
		MicrogonsEarned: microgons,
	}).Error
}

func (r *earningRepository) ListByMicronote(ctx context.Context, micronoteID string) ([]domain.RecipientEarning, error) {
	var rows []earningModel
	if err := r.db.WithContext(ctx).
		Where("micronote_id = ?", micronoteID).
		Order("address ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RecipientEarning, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.RecipientEarning{
			MicronoteID:     row.MicronoteID,
			Address:         row.Address,
			MicrogonsEarned: row.MicrogonsEarned,
		})
	}
	return out, nil
}

func (r *earningRepository) TotalsByAddress(ctx context.Context) ([]domain.AddressEarnings, error) {
	type row struct {
		Address   string
		Microgons int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&earningModel{}).
		Select("address, SUM(microgons_earned) AS microgons").
		Group("address").
		Order("address ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AddressEarnings, 0, len(rows))
	for _, item := range rows {
		out = append(out, domain.AddressEarnings{Address: item.Address, Microgons: item.Microgons})
	}
	return out, nil
}

type payoutRepository struct {
	db *gorm.DB
}

func (r *payoutRepository) Exists(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&payoutModel{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *payoutRepository) CreateAll(ctx context.Context, records []domain.PayoutRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]payoutModel, 0, len(records))
	for _, record := range records {
		rows = append(rows, payoutModel{
			ToAddress:            record.ToAddress,
			Centagons:            record.Centagons,
			Type:                 string(record.Type),
			FundsID:              record.FundingSourceID,
			GuaranteeBlockHeight: record.GuaranteeBlockHeight,
			NoteHash:             record.NoteHash,
			Signature:            record.Signature,
			CreatedAt:            record.CreatedAt,
		})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("payouts_already_written", "batch payouts have already been written")
		}
		return err
	}
	return nil
}

func (r *payoutRepository) List(ctx context.Context) ([]domain.PayoutRecord, error) {
	var rows []payoutModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PayoutRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPayout(row))
	}
	return out, nil
}
