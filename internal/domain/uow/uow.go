package uow

import (
	"context"

	"pricing-workbench/internal/domain/loan"
	"pricing-workbench/internal/domain/snapshot"
)

type Repos struct {
	Loans     loan.Repository
	Snapshots snapshot.Repository
}

// UnitOfWork runs the save pipeline atomically: staged loan/fee writes and
// the snapshot insert either all land or none do.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
