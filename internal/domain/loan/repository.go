package loan

import "context"

type Repository interface {
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	ListByPortfolio(ctx context.Context, portfolioID string) ([]*Loan, error)
	Save(ctx context.Context, l *Loan) error
	AddFee(ctx context.Context, f *Fee) error
	SaveFee(ctx context.Context, f *Fee) error
	DeleteFee(ctx context.Context, feeID string) error
	MoveInvoice(ctx context.Context, invoiceID string, toLoanRef uint64) error
}

type FeeConfigRepository interface {
	GetByConfigID(ctx context.Context, configID string) (*FeeConfig, error)
	ListAll(ctx context.Context) ([]*FeeConfig, error)
}
