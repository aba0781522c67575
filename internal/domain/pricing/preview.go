package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"pricing-workbench/internal/domain/loan"
)

// Preview is the per-loan "as if saved" projection. Original* fields hold the
// figures the projection is compared against; in live mode that is the
// persisted baseline. Previews are ephemeral and recomputed on every ledger
// mutation, never persisted.
type Preview struct {
	LoanID   string `json:"loan_id"`
	Currency string `json:"currency"`

	EffectiveRate  decimal.Decimal `json:"effective_rate"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	NetProceeds    decimal.Decimal `json:"net_proceeds"`

	OriginalEffectiveRate  decimal.Decimal `json:"original_effective_rate"`
	OriginalInterestAmount decimal.Decimal `json:"original_interest_amount"`
	OriginalTotalFees      decimal.Decimal `json:"original_total_fees"`
	OriginalNetProceeds    decimal.Decimal `json:"original_net_proceeds"`
}

// Calculator projects staged ledger state over baseline loans. It keeps a
// cache keyed by loan id; a missing entry means "no pending changes, use the
// baseline". The cache must be cleared whenever the ledger is cleared.
type Calculator struct {
	ledger   *Ledger
	formula  Formula
	now      func() time.Time
	previews map[string]Preview
}

func NewCalculator(lg *Ledger, f Formula, now func() time.Time) *Calculator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Calculator{
		ledger:   lg,
		formula:  f,
		now:      now,
		previews: make(map[string]Preview),
	}
}

// Calculate recomputes the projection for one loan from the union of staged
// rate inputs plus staged fee operations. The baseline loan is never mutated.
// A nil loan is a programmer error: the caller always supplies the baseline.
func (c *Calculator) Calculate(l *loan.Loan, in Inputs) Preview {
	if l == nil {
		panic("pricing: Calculate called without a baseline loan")
	}
	asOf := c.now()

	baseRate := l.BaseRate
	if in.BaseRate.Valid {
		baseRate = in.BaseRate.Decimal
	}
	spread := l.Spread
	if in.Spread.Valid {
		spread = in.Spread.Decimal
	}

	origRate := c.formula.EffectiveRate(l.BaseRate, l.Spread)
	origInterest := c.formula.Interest(l.Principal, origRate, l.MaturityDate, asOf)
	origFees := c.formula.TotalFees(l.Fees)

	rate := c.formula.EffectiveRate(baseRate, spread)
	interest := c.formula.Interest(l.Principal, rate, l.MaturityDate, asOf)
	fees := c.formula.TotalFees(c.effectiveFees(l))

	p := Preview{
		LoanID:   l.LoanID,
		Currency: l.Currency,

		EffectiveRate:  rate,
		InterestAmount: interest,
		TotalFees:      fees,
		NetProceeds:    c.formula.NetProceeds(l.Principal, interest, fees),

		OriginalEffectiveRate:  origRate,
		OriginalInterestAmount: origInterest,
		OriginalTotalFees:      origFees,
		OriginalNetProceeds:    c.formula.NetProceeds(l.Principal, origInterest, origFees),
	}
	c.previews[l.LoanID] = p
	return p
}

// RecalculateForFeeChanges re-runs the projection after a fee-only edit,
// reusing any staged rate values from the ledger.
func (c *Calculator) RecalculateForFeeChanges(l *loan.Loan) Preview {
	if l == nil {
		panic("pricing: RecalculateForFeeChanges called without a baseline loan")
	}
	return c.Calculate(l, c.ledger.RateInputs(l.LoanID))
}

func (c *Calculator) Get(loanID string) (Preview, bool) {
	p, ok := c.previews[loanID]
	return p, ok
}

// Previews returns a copy of the projection cache.
func (c *Calculator) Previews() map[string]Preview {
	out := make(map[string]Preview, len(c.previews))
	for k, v := range c.previews {
		out[k] = v
	}
	return out
}

// Drop removes one loan's cached projection; used when the last staged
// change for that loan is reverted, so "missing" again means "baseline".
func (c *Calculator) Drop(loanID string) {
	delete(c.previews, loanID)
}

// ClearAll empties the projection cache. Call whenever the ledger is cleared
// or previews would go stale.
func (c *Calculator) ClearAll() {
	c.previews = make(map[string]Preview)
}

// effectiveFees is the baseline fee list with staged deletes removed, staged
// updates applied (amounts repriced unless overridden) and staged adds priced
// from their catalogue config.
func (c *Calculator) effectiveFees(l *loan.Loan) []loan.Fee {
	out := make([]loan.Fee, 0, len(l.Fees))
	for _, fe := range l.Fees {
		if c.ledger.IsFeeDeleted(l.LoanID, fe.FeeID) {
			continue
		}
		if up, ok := c.ledger.FeeUpdates(l.LoanID, fe.FeeID); ok {
			fe = up.ApplyTo(fe)
			fe.Amount = c.formula.RecomputeFeeAmount(fe, l.Principal)
		}
		out = append(out, fe)
	}
	for _, add := range c.ledger.PendingFeeAdds(l.LoanID) {
		fe := loan.Fee{
			FeeID:      add.FeeID,
			ConfigID:   add.Config.ConfigID,
			Name:       add.Config.Name,
			CalcType:   add.Config.CalcType,
			Rate:       c.formula.ResolveRate(add.Config, l.Principal),
			FlatAmount: add.Config.FlatAmount,
			Amount:     c.formula.FeeAmount(add.Config, l.Principal),
		}
		fe = add.Updates.ApplyTo(fe)
		if !fe.Overridden {
			fe.Amount = c.formula.RecomputeFeeAmount(fe, l.Principal)
		}
		out = append(out, fe)
	}
	return out
}
