package snapshot

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pricing-workbench/internal/domain/loan"
	"pricing-workbench/internal/domain/pricing"
)

var (
	ErrNotFound = errors.New("snapshot not found")
)

// FeeState is a fee as captured at save time.
type FeeState struct {
	FeeID      string          `json:"fee_id"`
	ConfigID   string          `json:"config_id"`
	Name       string          `json:"name"`
	CalcType   string          `json:"calc_type"`
	Rate       decimal.Decimal `json:"rate"`
	FlatAmount decimal.Decimal `json:"flat_amount"`
	Amount     decimal.Decimal `json:"amount"`
	Waived     bool            `json:"waived"`
	Paid       bool            `json:"paid"`
	Overridden bool            `json:"overridden"`
}

// LoanState is a loan as captured at save time, including the derived
// figures, so later diffs and deltas never depend on the wall clock.
type LoanState struct {
	LoanID        string          `json:"loan_id"`
	Currency      string          `json:"currency"`
	Principal     decimal.Decimal `json:"principal"`
	BaseRate      decimal.Decimal `json:"base_rate"`
	Spread        decimal.Decimal `json:"spread"`
	Status        string          `json:"status"`
	PricingStatus string          `json:"pricing_status"`
	MaturityDate  time.Time       `json:"maturity_date"`
	Fees          []FeeState      `json:"fees"`
	InvoiceIDs    []string        `json:"invoice_ids"`

	EffectiveRate  decimal.Decimal `json:"effective_rate"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	NetProceeds    decimal.Decimal `json:"net_proceeds"`
}

// CaptureLoan freezes a loan into a snapshot state, computing the derived
// figures with the given formula as of the capture instant.
func CaptureLoan(l *loan.Loan, f pricing.Formula, asOf time.Time) LoanState {
	st := LoanState{
		LoanID:        l.LoanID,
		Currency:      l.Currency,
		Principal:     l.Principal,
		BaseRate:      l.BaseRate,
		Spread:        l.Spread,
		Status:        string(l.Status),
		PricingStatus: string(l.PricingStatus),
		MaturityDate:  l.MaturityDate,
	}
	for _, fe := range l.Fees {
		st.Fees = append(st.Fees, FeeState{
			FeeID:      fe.FeeID,
			ConfigID:   fe.ConfigID,
			Name:       fe.Name,
			CalcType:   string(fe.CalcType),
			Rate:       fe.Rate,
			FlatAmount: fe.FlatAmount,
			Amount:     fe.Amount,
			Waived:     fe.Waived,
			Paid:       fe.Paid,
			Overridden: fe.Overridden,
		})
	}
	for _, inv := range l.Invoices {
		st.InvoiceIDs = append(st.InvoiceIDs, inv.InvoiceID)
	}
	st.EffectiveRate = f.EffectiveRate(l.BaseRate, l.Spread)
	st.InterestAmount = f.Interest(l.Principal, st.EffectiveRate, l.MaturityDate, asOf)
	st.TotalFees = decimal.Zero
	for _, fe := range st.Fees {
		if fe.Waived {
			continue
		}
		st.TotalFees = st.TotalFees.Add(fe.Amount)
	}
	st.NetProceeds = f.NetProceeds(l.Principal, st.InterestAmount, st.TotalFees)
	return st
}

type FeeChangeKind string

const (
	FeeAdded    FeeChangeKind = "added"
	FeeDeleted  FeeChangeKind = "deleted"
	FeeModified FeeChangeKind = "modified"
)

type FeeChange struct {
	Kind   FeeChangeKind   `json:"kind"`
	LoanID string          `json:"loan_id"`
	FeeID  string          `json:"fee_id"`
	Name   string          `json:"name"`
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
}

type RateChange struct {
	LoanID string          `json:"loan_id"`
	Field  string          `json:"field"` // base_rate | spread
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
}

type StatusChange struct {
	LoanID string `json:"loan_id"`
	Field  string `json:"field"` // status | pricing_status
	Before string `json:"before"`
	After  string `json:"after"`
}

// InvoiceMove reports an invoice changing owner as a single event, never a
// delete/add pair.
type InvoiceMove struct {
	InvoiceID  string `json:"invoice_id"`
	FromLoanID string `json:"from_loan_id"`
	ToLoanID   string `json:"to_loan_id"`
}

// Changes is the structured change-set between two portfolio states. When it
// is recorded at save time it is the authoritative "what changed" list,
// distinct from any diff recomputed after the fact.
type Changes struct {
	Fees     []FeeChange    `json:"fees,omitempty"`
	Rates    []RateChange   `json:"rates,omitempty"`
	Statuses []StatusChange `json:"statuses,omitempty"`
	Invoices []InvoiceMove  `json:"invoices,omitempty"`
}

func (c Changes) Count() int {
	return len(c.Fees) + len(c.Rates) + len(c.Statuses) + len(c.Invoices)
}

func (c Changes) Empty() bool { return c.Count() == 0 }

// LoanIDs returns the sorted set of loans referenced anywhere in the
// change-set.
func (c Changes) LoanIDs() []string {
	seen := make(map[string]struct{})
	for _, fc := range c.Fees {
		seen[fc.LoanID] = struct{}{}
	}
	for _, rc := range c.Rates {
		seen[rc.LoanID] = struct{}{}
	}
	for _, sc := range c.Statuses {
		seen[sc.LoanID] = struct{}{}
	}
	for _, im := range c.Invoices {
		seen[im.FromLoanID] = struct{}{}
		seen[im.ToLoanID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CurrencySummary aggregates one snapshot's loans per currency.
type CurrencySummary struct {
	Currency       string          `json:"currency"`
	LoanCount      int             `json:"loan_count"`
	TotalPrincipal decimal.Decimal `json:"total_principal"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	NetProceeds    decimal.Decimal `json:"net_proceeds"`
	AverageRate    decimal.Decimal `json:"average_rate"`
}

// CurrencyDelta is the before/after/delta aggregate for the loans a
// change-set touched, grouped by currency.
type CurrencyDelta struct {
	Currency string `json:"currency"`

	NetProceedsBefore decimal.Decimal `json:"net_proceeds_before"`
	NetProceedsAfter  decimal.Decimal `json:"net_proceeds_after"`
	NetProceedsChange decimal.Decimal `json:"net_proceeds_change"`

	FeesBefore decimal.Decimal `json:"fees_before"`
	FeesAfter  decimal.Decimal `json:"fees_after"`
	FeesChange decimal.Decimal `json:"fees_change"`

	InterestBefore decimal.Decimal `json:"interest_before"`
	InterestAfter  decimal.Decimal `json:"interest_after"`
	InterestChange decimal.Decimal `json:"interest_change"`

	AverageRateChange decimal.Decimal `json:"average_rate_change"`
}

// Snapshot is an immutable, timestamped, user-attributed full capture of a
// portfolio at save time. Snapshots form a strictly time-ordered sequence per
// portfolio and are never mutated once created.
type Snapshot struct {
	SnapshotID  string            `json:"snapshot_id"`
	PortfolioID string            `json:"portfolio_id"`
	UserName    string            `json:"user_name"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ChangeCount int               `json:"change_count"`
	Loans       []LoanState       `json:"loans"`
	Changes     Changes           `json:"changes"`
	Summary     []CurrencySummary `json:"summary"`
	Delta       []CurrencyDelta   `json:"delta,omitempty"`
}

// LoanByID returns the captured state for a loan, if present.
func (s *Snapshot) LoanByID(loanID string) (LoanState, bool) {
	for _, l := range s.Loans {
		if l.LoanID == loanID {
			return l, true
		}
	}
	return LoanState{}, false
}

// Summarize aggregates captured loan states per currency, sorted by currency.
func Summarize(loans []LoanState) []CurrencySummary {
	byCcy := make(map[string]*CurrencySummary)
	for _, l := range loans {
		s, ok := byCcy[l.Currency]
		if !ok {
			s = &CurrencySummary{Currency: l.Currency}
			byCcy[l.Currency] = s
		}
		s.LoanCount++
		s.TotalPrincipal = s.TotalPrincipal.Add(l.Principal)
		s.TotalInterest = s.TotalInterest.Add(l.InterestAmount)
		s.TotalFees = s.TotalFees.Add(l.TotalFees)
		s.NetProceeds = s.NetProceeds.Add(l.NetProceeds)
		s.AverageRate = s.AverageRate.Add(l.EffectiveRate)
	}
	out := make([]CurrencySummary, 0, len(byCcy))
	for _, s := range byCcy {
		if s.LoanCount > 0 {
			s.AverageRate = s.AverageRate.Div(decimal.NewFromInt(int64(s.LoanCount)))
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
