package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	loanDomain "pricing-workbench/internal/domain/loan"
)

type FeeConfigRepository struct{ db *gorm.DB }

func NewFeeConfigRepository(db *gorm.DB) *FeeConfigRepository {
	return &FeeConfigRepository{db: db}
}

func (r *FeeConfigRepository) GetByConfigID(ctx context.Context, configID string) (*loanDomain.FeeConfig, error) {
	var out loanDomain.FeeConfig
	res := r.db.WithContext(ctx).Where("config_id = ?", configID).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, loanDomain.ErrFeeConfigNotFound
	}
	return &out, res.Error
}

func (r *FeeConfigRepository) ListAll(ctx context.Context) ([]*loanDomain.FeeConfig, error) {
	var out []*loanDomain.FeeConfig
	res := r.db.WithContext(ctx).Order("name ASC").Find(&out)
	return out, res.Error
}
