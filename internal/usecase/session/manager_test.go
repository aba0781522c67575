package session

import (
	"context"
	"errors"
	"testing"

	"pricing-workbench/internal/domain/loan"
	"pricing-workbench/internal/domain/uow"
	"pricing-workbench/internal/testutil/loanmock"
	"pricing-workbench/internal/testutil/snapshotmock"
	"pricing-workbench/internal/testutil/uowmock"
)

func newTestManager(t *testing.T) (*Manager, *loanmock.Repo) {
	t.Helper()
	loans := &loanmock.Repo{
		ListByPortfolioFn: func(ctx context.Context, portfolioID string) ([]*loan.Loan, error) {
			if portfolioID != "pf-1" {
				return nil, nil
			}
			return fixtureLoans(t), nil
		},
	}
	configs := &loanmock.ConfigRepo{
		ListAllFn: func(ctx context.Context) ([]*loan.FeeConfig, error) { return fixtureConfigs(t), nil },
	}
	snaps := &snapshotmock.Repo{}
	tx := uowmock.New(uow.Repos{Loans: loans, Snapshots: snaps})
	return NewManager(loans, configs, snaps, tx, nil), loans
}

func TestManagerGet_LoadsOnce(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s1, err := m.Get(ctx, "pf-1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got := len(s1.Loans()); got != 2 {
		t.Fatalf("loans = %d, want 2", got)
	}

	s2, err := m.Get(ctx, "pf-1")
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatal("second Get must return the same session")
	}
}

func TestManagerGet_EmptyPortfolio(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Get(context.Background(), "pf-empty"); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("got %v, want loan.ErrNotFound", err)
	}
}

func TestManagerGet_LoadFailurePropagates(t *testing.T) {
	m, loans := newTestManager(t)
	boom := errors.New("db gone")
	loans.ListByPortfolioFn = func(ctx context.Context, portfolioID string) ([]*loan.Loan, error) {
		return nil, boom
	}
	if _, err := m.Get(context.Background(), "pf-1"); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
}

func TestManagerClose_DiscardsStagedEdits(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Get(ctx, "pf-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.TrackField(TrackFieldInput{LoanID: "loan-1", Field: "base_rate", Value: "0.06"}); err != nil {
		t.Fatal(err)
	}

	m.Close("pf-1")
	m.Close("pf-1") // closing twice is harmless

	fresh, err := m.Get(ctx, "pf-1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh == s {
		t.Fatal("Close must drop the session")
	}
	if fresh.PendingChangeCount() != 0 {
		t.Fatal("staged edits leaked into the new session")
	}
}
