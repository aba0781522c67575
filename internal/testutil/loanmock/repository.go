package loanmock

import (
	"context"

	domain "pricing-workbench/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Fill in the function fields a test needs; unfilled ones are benign no-ops.
type Repo struct {
	GetByLoanIDFn     func(ctx context.Context, loanID string) (*domain.Loan, error)
	ListByPortfolioFn func(ctx context.Context, portfolioID string) ([]*domain.Loan, error)
	SaveFn            func(ctx context.Context, l *domain.Loan) error
	AddFeeFn          func(ctx context.Context, f *domain.Fee) error
	SaveFeeFn         func(ctx context.Context, f *domain.Fee) error
	DeleteFeeFn       func(ctx context.Context, feeID string) error
	MoveInvoiceFn     func(ctx context.Context, invoiceID string, toLoanRef uint64) error
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, domain.ErrNotFound
}

func (m *Repo) ListByPortfolio(ctx context.Context, portfolioID string) ([]*domain.Loan, error) {
	if m.ListByPortfolioFn != nil {
		return m.ListByPortfolioFn(ctx, portfolioID)
	}
	return nil, nil
}

func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) AddFee(ctx context.Context, f *domain.Fee) error {
	if m.AddFeeFn != nil {
		return m.AddFeeFn(ctx, f)
	}
	return nil
}

func (m *Repo) SaveFee(ctx context.Context, f *domain.Fee) error {
	if m.SaveFeeFn != nil {
		return m.SaveFeeFn(ctx, f)
	}
	return nil
}

func (m *Repo) DeleteFee(ctx context.Context, feeID string) error {
	if m.DeleteFeeFn != nil {
		return m.DeleteFeeFn(ctx, feeID)
	}
	return nil
}

func (m *Repo) MoveInvoice(ctx context.Context, invoiceID string, toLoanRef uint64) error {
	if m.MoveInvoiceFn != nil {
		return m.MoveInvoiceFn(ctx, invoiceID, toLoanRef)
	}
	return nil
}

var _ domain.FeeConfigRepository = (*ConfigRepo)(nil)

// ConfigRepo mocks the fee catalogue.
type ConfigRepo struct {
	GetByConfigIDFn func(ctx context.Context, configID string) (*domain.FeeConfig, error)
	ListAllFn       func(ctx context.Context) ([]*domain.FeeConfig, error)
}

func (m *ConfigRepo) GetByConfigID(ctx context.Context, configID string) (*domain.FeeConfig, error) {
	if m.GetByConfigIDFn != nil {
		return m.GetByConfigIDFn(ctx, configID)
	}
	return nil, domain.ErrFeeConfigNotFound
}

func (m *ConfigRepo) ListAll(ctx context.Context) ([]*domain.FeeConfig, error) {
	if m.ListAllFn != nil {
		return m.ListAllFn(ctx)
	}
	return nil, nil
}
