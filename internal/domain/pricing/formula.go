package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"pricing-workbench/internal/domain/loan"
)

// Inputs is the union of staged rate edits for one loan. Null means "not
// staged, use the baseline value".
type Inputs struct {
	BaseRate decimal.NullDecimal `json:"base_rate"`
	Spread   decimal.NullDecimal `json:"spread"`
}

// DayCountFn converts a maturity date and a valuation date into the accrual
// factor used for interest. It must be pure.
type DayCountFn func(maturity, asOf time.Time) decimal.Decimal

var (
	days360 = decimal.NewFromInt(360)
	hours24 = decimal.NewFromInt(24)
)

// Act360 is the default convention: actual days to maturity over 360.
// A matured or undated loan accrues nothing.
func Act360(maturity, asOf time.Time) decimal.Decimal {
	if maturity.IsZero() || !maturity.After(asOf) {
		return decimal.Zero
	}
	days := decimal.NewFromFloat(maturity.Sub(asOf).Hours()).Div(hours24).Floor()
	return days.Div(days360)
}

// Formula holds the pure pricing arithmetic. It has no state beyond the
// injected day-count convention.
type Formula struct {
	DayCount DayCountFn
}

func NewFormula(dc DayCountFn) Formula {
	if dc == nil {
		dc = Act360
	}
	return Formula{DayCount: dc}
}

// EffectiveRate is base rate plus spread.
func (Formula) EffectiveRate(baseRate, spread decimal.Decimal) decimal.Decimal {
	return baseRate.Add(spread)
}

// Interest is principal x effective rate x day-count factor.
func (f Formula) Interest(principal, effectiveRate decimal.Decimal, maturity, asOf time.Time) decimal.Decimal {
	return principal.Mul(effectiveRate).Mul(f.DayCount(maturity, asOf))
}

// ResolveRate picks the rate a config applies at a given principal. For
// tiered configs the highest tier at or below the principal wins; the config
// base rate covers principals below every tier.
func (Formula) ResolveRate(cfg loan.FeeConfig, principal decimal.Decimal) decimal.Decimal {
	if cfg.CalcType != loan.FeeTiered {
		return cfg.Rate
	}
	tiers, err := cfg.Tiers()
	if err != nil {
		return cfg.Rate
	}
	rate := cfg.Rate
	for _, t := range tiers {
		if principal.GreaterThanOrEqual(t.MinPrincipal) {
			rate = t.Rate
		}
	}
	return rate
}

// FeeAmount prices a fee configuration against a principal.
func (f Formula) FeeAmount(cfg loan.FeeConfig, principal decimal.Decimal) decimal.Decimal {
	switch cfg.CalcType {
	case loan.FeeFlat:
		return cfg.FlatAmount
	case loan.FeePercentage, loan.FeeTiered:
		return principal.Mul(f.ResolveRate(cfg, principal))
	}
	return decimal.Zero
}

// RecomputeFeeAmount reprices a fee after a staged rate/flat edit. Overridden
// and waived fees keep their manual amount.
func (f Formula) RecomputeFeeAmount(fee loan.Fee, principal decimal.Decimal) decimal.Decimal {
	if fee.Overridden {
		return fee.Amount
	}
	cfg := loan.FeeConfig{
		ConfigID:   fee.ConfigID,
		Name:       fee.Name,
		CalcType:   fee.CalcType,
		Rate:       fee.Rate,
		FlatAmount: fee.FlatAmount,
	}
	return f.FeeAmount(cfg, principal)
}

// TotalFees sums the computed amounts of all non-waived fees.
func (Formula) TotalFees(fees []loan.Fee) decimal.Decimal {
	total := decimal.Zero
	for _, fe := range fees {
		if fe.Waived {
			continue
		}
		total = total.Add(fe.Amount)
	}
	return total
}

// NetProceeds is principal minus interest minus total fees.
func (Formula) NetProceeds(principal, interest, totalFees decimal.Decimal) decimal.Decimal {
	return principal.Sub(interest).Sub(totalFees)
}
