package snapshot

import "context"

type Repository interface {
	Create(ctx context.Context, s *Snapshot) error
	GetBySnapshotID(ctx context.Context, snapshotID string) (*Snapshot, error)
	// ListByPortfolio returns snapshots oldest first.
	ListByPortfolio(ctx context.Context, portfolioID string) ([]*Snapshot, error)
	LatestByPortfolio(ctx context.Context, portfolioID string) (*Snapshot, error)
}
