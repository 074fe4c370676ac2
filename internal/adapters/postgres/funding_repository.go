package postgres

import (
	"context"

	"github.com/ulixee/payments-sub000/internal/domain"
	"gorm.io/gorm"
)

type fundingSourceRepository struct {
	db *gorm.DB
}

func (r *fundingSourceRepository) Create(ctx context.Context, source domain.FundingSource) (domain.FundingSource, error) {
	rec := fundingSourceModel{
		OwnerAddress:         source.OwnerAddress,
		BatchAddress:         source.BatchAddress,
		DepositedMicrogons:   source.DepositedMicrogons,
		AllocatedMicrogons:   source.AllocatedMicrogons,
		Origin:               string(source.Origin),
		OriginHash:           source.OriginHash,
		GuaranteeBlockHeight: source.GuaranteeBlockHeight,
		CreatedAt:            source.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.FundingSource{}, domain.Conflict("funding_origin_duplicate", "funding origin has already been applied to this batch")
		}
		return domain.FundingSource{}, err
	}
	return toDomainFundingSource(rec), nil
}

func (r *fundingSourceRepository) Get(ctx context.Context, id int64) (domain.FundingSource, error) {
	var rec fundingSourceModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return domain.FundingSource{}, domain.NotFound("funds_not_found", "funding source not found")
		}
		return domain.FundingSource{}, err
	}
	return toDomainFundingSource(rec), nil
}

func (r *fundingSourceRepository) Allocate(ctx context.Context, id int64, owner string, microgons int64) (domain.FundingSource, error) {
	res := r.db.WithContext(ctx).
		Model(&fundingSourceModel{}).
		Where("id = ? AND owner_address = ?", id, owner).
		Where("deposited_microgons >= allocated_microgons + ?", microgons).
		Update("allocated_microgons", gorm.Expr("allocated_microgons + ?", microgons))
	if res.Error != nil {
		return domain.FundingSource{}, res.Error
	}
	source, err := r.Get(ctx, id)
	if err != nil {
		return domain.FundingSource{}, err
	}
	if res.RowsAffected != 1 {
		if source.OwnerAddress != owner {
			return domain.FundingSource{}, domain.NotFound("funds_not_found", "funding source not found for this address")
		}
		return domain.FundingSource{}, domain.FundsNeeded(microgons, source.RemainingMicrogons())
	}
	return source, nil
}

func (r *fundingSourceRepository) Release(ctx context.Context, id int64, owner string, microgons int64) error {
	if microgons == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&fundingSourceModel{}).
		Where("id = ? AND owner_address = ?", id, owner).
		Where("allocated_microgons >= ?", microgons).
		Update("allocated_microgons", gorm.Expr("allocated_microgons - ?", microgons))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.Conflict("funds_release_unmatched", "funding source could not be matched for release").
			WithValues(microgons, nil)
	}
	return nil
}

func (r *fundingSourceRepository) FindAvailable(ctx context.Context, owner string, microgons int64) (domain.FundingSource, bool, error) {
	var rows []fundingSourceModel
	if err := r.db.WithContext(ctx).
		Where("owner_address = ?", owner).
		Where("deposited_microgons - allocated_microgons >= ?", microgons).
		Order("id ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return domain.FundingSource{}, false, err
	}
	if len(rows) == 0 {
		return domain.FundingSource{}, false, nil
	}
	return toDomainFundingSource(rows[0]), true, nil
}

func (r *fundingSourceRepository) ListByOwner(ctx context.Context, owner string) ([]domain.FundingSource, error) {
	var rows []fundingSourceModel
	if err := r.db.WithContext(ctx).
		Where("owner_address = ?", owner).
		Where("deposited_microgons > allocated_microgons").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainFundingSources(rows), nil
}

func (r *fundingSourceRepository) ListByIDs(ctx context.Context, owner string, ids []int64) ([]domain.FundingSource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []fundingSourceModel
	if err := r.db.WithContext(ctx).
		Where("owner_address = ? AND id IN ?", owner, ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainFundingSources(rows), nil
}

func (r *fundingSourceRepository) List(ctx context.Context) ([]domain.FundingSource, error) {
	var rows []fundingSourceModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainFundingSources(rows), nil
}

func toDomainFundingSources(rows []fundingSourceModel) []domain.FundingSource {
	out := make([]domain.FundingSource, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainFundingSource(row))
	}
	return out
}
