package snapshotmock

import (
	"context"
	"sort"
	"sync"

	domain "pricing-workbench/internal/domain/snapshot"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is an in-memory snapshot store. Unlike the function-field mocks it
// keeps real state, because playback tests need an ordered history to walk.
type Repo struct {
	mu    sync.Mutex
	items []*domain.Snapshot

	CreateFn func(ctx context.Context, s *domain.Snapshot) error
}

func (m *Repo) Create(ctx context.Context, s *domain.Snapshot) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(ctx, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, s)
	return nil
}

func (m *Repo) GetBySnapshotID(ctx context.Context, snapshotID string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.items {
		if s.SnapshotID == snapshotID {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Repo) ListByPortfolio(ctx context.Context, portfolioID string) ([]*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Snapshot
	for _, s := range m.items {
		if s.PortfolioID == portfolioID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Repo) LatestByPortfolio(ctx context.Context, portfolioID string) (*domain.Snapshot, error) {
	list, err := m.ListByPortfolio(ctx, portfolioID)
	if err != nil || len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return list[len(list)-1], nil
}
