package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	loanDomain "pricing-workbench/internal/domain/loan"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Preload("Fees").Preload("Invoices").
		Where("loan_id = ?", loanID).
		First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, loanDomain.ErrNotFound
	}
	return &out, res.Error
}

func (r *LoanRepository) ListByPortfolio(ctx context.Context, portfolioID string) ([]*loanDomain.Loan, error) {
	var out []*loanDomain.Loan
	res := r.db.WithContext(ctx).
		Preload("Fees").Preload("Invoices").
		Where("portfolio_id = ?", portfolioID).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}

// Save persists only the loan row; fee and invoice rows have their own
// operations so the save pipeline controls exactly what changes.
func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).
		Omit("Fees", "Invoices").
		Save(l).Error
}

func (r *LoanRepository) AddFee(ctx context.Context, f *loanDomain.Fee) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *LoanRepository) SaveFee(ctx context.Context, f *loanDomain.Fee) error {
	if f.ID != 0 {
		return r.db.WithContext(ctx).Save(f).Error
	}
	return r.db.WithContext(ctx).
		Model(&loanDomain.Fee{}).
		Where("fee_id = ?", f.FeeID).
		Updates(map[string]any{
			"rate":        f.Rate,
			"flat_amount": f.FlatAmount,
			"amount":      f.Amount,
			"waived":      f.Waived,
			"paid":        f.Paid,
			"overridden":  f.Overridden,
		}).Error
}

func (r *LoanRepository) DeleteFee(ctx context.Context, feeID string) error {
	res := r.db.WithContext(ctx).Where("fee_id = ?", feeID).Delete(&loanDomain.Fee{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return loanDomain.ErrFeeNotFound
	}
	return nil
}

func (r *LoanRepository) MoveInvoice(ctx context.Context, invoiceID string, toLoanRef uint64) error {
	res := r.db.WithContext(ctx).
		Model(&loanDomain.Invoice{}).
		Where("invoice_id = ?", invoiceID).
		Update("loan_ref", toLoanRef)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
