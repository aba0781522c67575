package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pricing-workbench/internal/domain/loan"
	"pricing-workbench/internal/domain/snapshot"
	"pricing-workbench/internal/domain/uow"
)

// Manager owns the per-portfolio sessions. A session is created on first
// access and torn down explicitly when the operator leaves the portfolio,
// which is what keeps the one-writer ledger lifecycle visible instead of
// hiding it in a package-level global.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Usecase

	loans   loan.Repository
	configs loan.FeeConfigRepository
	snaps   snapshot.Repository
	uow     uow.UnitOfWork
	log     *zap.Logger
	now     func() time.Time
}

func NewManager(
	loans loan.Repository,
	configs loan.FeeConfigRepository,
	snaps snapshot.Repository,
	tx uow.UnitOfWork,
	log *zap.Logger,
) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Usecase),
		loans:    loans,
		configs:  configs,
		snaps:    snaps,
		uow:      tx,
		log:      log,
	}
}

// Get returns the live session for a portfolio, loading the baseline loans
// and the fee catalogue concurrently on first access.
func (m *Manager) Get(ctx context.Context, portfolioID string) (*Usecase, error) {
	m.mu.Lock()
	if s, ok := m.sessions[portfolioID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	var (
		loans   []*loan.Loan
		configs []*loan.FeeConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		loans, err = m.loans.ListByPortfolio(gctx, portfolioID)
		return err
	})
	g.Go(func() error {
		var err error
		configs, err = m.configs.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, loan.ErrNotFound
	}

	s := NewUsecase(portfolioID, loans, configs, m.uow, m.snaps, m.log, m.now)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[portfolioID]; ok {
		// lost the race to another request; keep the first session
		return existing, nil
	}
	m.sessions[portfolioID] = s
	m.log.Info("editing session opened",
		zap.String("portfolio_id", portfolioID),
		zap.Int("loans", len(loans)),
	)
	return s, nil
}

// Close tears a session down, discarding any staged-but-unsaved edits.
func (m *Manager) Close(portfolioID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[portfolioID]; ok {
		delete(m.sessions, portfolioID)
		m.log.Info("editing session closed", zap.String("portfolio_id", portfolioID))
	}
}
