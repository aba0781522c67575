package uowmock

import (
	"context"

	"pricing-workbench/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

// UoW is a function-backed mock that satisfies uow.UnitOfWork. The zero value
// runs the callback against the Repos field with no transaction semantics,
// which is what most usecase tests want.
type UoW struct {
	Repos      uow.Repos
	WithinTxFn func(ctx context.Context, fn func(r uow.Repos) error) error

	Calls int
}

func New(r uow.Repos) *UoW { return &UoW{Repos: r} }

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	m.Calls++
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return fn(m.Repos)
}
