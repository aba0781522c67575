package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-workbench/internal/domain/loan"
)

var (
	asOf     = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	maturity = asOf.AddDate(0, 0, 360) // day-count factor exactly 1
)

func TestAct360(t *testing.T) {
	t.Run("360 days out is factor 1", func(t *testing.T) {
		f := Act360(maturity, asOf)
		assert.True(t, f.Equal(decimal.NewFromInt(1)), "got %s", f)
	})
	t.Run("matured loan accrues nothing", func(t *testing.T) {
		assert.True(t, Act360(asOf.AddDate(0, 0, -1), asOf).IsZero())
	})
	t.Run("undated loan accrues nothing", func(t *testing.T) {
		assert.True(t, Act360(time.Time{}, asOf).IsZero())
	})
	t.Run("90 days is a quarter", func(t *testing.T) {
		f := Act360(asOf.AddDate(0, 0, 90), asOf)
		want := decimal.NewFromInt(90).Div(decimal.NewFromInt(360))
		assert.True(t, f.Equal(want), "got %s", f)
	})
}

func TestFormula_EffectiveRateAndInterest(t *testing.T) {
	f := NewFormula(nil)

	rate := f.EffectiveRate(dec(t, "0.05"), dec(t, "0.02"))
	assert.True(t, rate.Equal(dec(t, "0.07")))

	interest := f.Interest(dec(t, "100000"), rate, maturity, asOf)
	assert.True(t, interest.Equal(dec(t, "7000")), "got %s", interest)
}

func TestFormula_FeeAmount(t *testing.T) {
	f := NewFormula(nil)
	principal := dec(t, "100000")

	t.Run("flat", func(t *testing.T) {
		cfg := loan.FeeConfig{CalcType: loan.FeeFlat, FlatAmount: dec(t, "250")}
		assert.True(t, f.FeeAmount(cfg, principal).Equal(dec(t, "250")))
	})

	t.Run("percentage", func(t *testing.T) {
		cfg := loan.FeeConfig{CalcType: loan.FeePercentage, Rate: dec(t, "0.005")}
		assert.True(t, f.FeeAmount(cfg, principal).Equal(dec(t, "500")))
	})

	t.Run("tiered picks highest matching tier", func(t *testing.T) {
		cfg := loan.FeeConfig{
			CalcType:  loan.FeeTiered,
			Rate:      dec(t, "0.01"),
			TiersJSON: `[{"min_principal":"50000","rate":"0.008"},{"min_principal":"200000","rate":"0.005"}]`,
		}
		assert.True(t, f.FeeAmount(cfg, dec(t, "10000")).Equal(dec(t, "100")), "below all tiers uses base rate")
		assert.True(t, f.FeeAmount(cfg, dec(t, "100000")).Equal(dec(t, "800")))
		assert.True(t, f.FeeAmount(cfg, dec(t, "200000")).Equal(dec(t, "1000")), "boundary principal enters the tier")
	})
}

func TestFormula_RecomputeFeeAmount(t *testing.T) {
	f := NewFormula(nil)
	principal := dec(t, "100000")

	t.Run("repriced from config after rate edit", func(t *testing.T) {
		fee := loan.Fee{CalcType: loan.FeePercentage, Rate: dec(t, "0.01"), Amount: dec(t, "500")}
		got := f.RecomputeFeeAmount(fee, principal)
		assert.True(t, got.Equal(dec(t, "1000")))
	})

	t.Run("overridden keeps manual amount", func(t *testing.T) {
		fee := loan.Fee{CalcType: loan.FeePercentage, Rate: dec(t, "0.01"), Amount: dec(t, "42"), Overridden: true}
		got := f.RecomputeFeeAmount(fee, principal)
		assert.True(t, got.Equal(dec(t, "42")))
	})
}

func TestFormula_TotalFeesSkipsWaived(t *testing.T) {
	f := NewFormula(nil)
	fees := []loan.Fee{
		{Amount: dec(t, "500")},
		{Amount: dec(t, "300"), Waived: true},
		{Amount: dec(t, "100")},
	}
	assert.True(t, f.TotalFees(fees).Equal(dec(t, "600")))
}

func TestFormula_NetProceeds(t *testing.T) {
	f := NewFormula(nil)
	got := f.NetProceeds(dec(t, "100000"), dec(t, "7000"), dec(t, "600"))
	assert.True(t, got.Equal(dec(t, "92400")))
}

func TestNewFormula_DefaultsToAct360(t *testing.T) {
	f := NewFormula(nil)
	require.NotNil(t, f.DayCount)
	assert.True(t, f.DayCount(maturity, asOf).Equal(decimal.NewFromInt(1)))
}
