package snapshot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-workbench/internal/domain/loan"
	"pricing-workbench/internal/domain/pricing"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func snap(id string, loans ...LoanState) *Snapshot {
	return &Snapshot{
		SnapshotID:  id,
		PortfolioID: "pf-1",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Loans:       loans,
	}
}

func usdLoan(t *testing.T, loanID string) LoanState {
	t.Helper()
	return LoanState{
		LoanID:        loanID,
		Currency:      "USD",
		Principal:     dec(t, "100000"),
		BaseRate:      dec(t, "0.05"),
		Spread:        dec(t, "0.02"),
		Status:        "active",
		PricingStatus: "pending",
		EffectiveRate: dec(t, "0.07"),
	}
}

func TestDiff_RateAndStatusChanges(t *testing.T) {
	before := usdLoan(t, "loan-1")
	after := before
	after.BaseRate = dec(t, "0.06")
	after.Status = "closed"

	ch := Diff(snap("s1", before), snap("s2", after))

	require.Len(t, ch.Rates, 1)
	assert.Equal(t, "base_rate", ch.Rates[0].Field)
	assert.True(t, ch.Rates[0].Before.Equal(dec(t, "0.05")))
	assert.True(t, ch.Rates[0].After.Equal(dec(t, "0.06")))

	require.Len(t, ch.Statuses, 1)
	assert.Equal(t, "status", ch.Statuses[0].Field)
	assert.Equal(t, "active", ch.Statuses[0].Before)
	assert.Equal(t, "closed", ch.Statuses[0].After)
}

func TestDiff_IdenticalSnapshotsAreEmpty(t *testing.T) {
	a := usdLoan(t, "loan-1")
	ch := Diff(snap("s1", a), snap("s2", a))
	assert.True(t, ch.Empty())
	assert.Equal(t, 0, ch.Count())
}

func TestDiff_EquivalentDecimalsAreNotChanges(t *testing.T) {
	before := usdLoan(t, "loan-1")
	after := before
	after.BaseRate = dec(t, "0.050") // same value, different exponent
	ch := Diff(snap("s1", before), snap("s2", after))
	assert.Empty(t, ch.Rates, "decimal comparison is by value, not representation")
}

func TestDiff_FeeAddModifyDelete(t *testing.T) {
	before := usdLoan(t, "loan-1")
	before.Fees = []FeeState{
		{FeeID: "f1", Name: "Origination", Amount: dec(t, "500")},
		{FeeID: "f3", Name: "Admin", Amount: dec(t, "50")},
	}
	after := usdLoan(t, "loan-1")
	after.Fees = []FeeState{
		{FeeID: "f1", Name: "Origination", Amount: dec(t, "650")},
		{FeeID: "f2", Name: "Service", Amount: dec(t, "100")},
	}

	ch := Diff(snap("s1", before), snap("s2", after))
	require.Len(t, ch.Fees, 3)

	byKind := make(map[FeeChangeKind]FeeChange)
	for _, fc := range ch.Fees {
		byKind[fc.Kind] = fc
	}
	mod := byKind[FeeModified]
	assert.Equal(t, "f1", mod.FeeID)
	assert.True(t, mod.Before.Equal(dec(t, "500")))
	assert.True(t, mod.After.Equal(dec(t, "650")))

	added := byKind[FeeAdded]
	assert.Equal(t, "f2", added.FeeID)
	assert.True(t, added.After.Equal(dec(t, "100")))

	deleted := byKind[FeeDeleted]
	assert.Equal(t, "f3", deleted.FeeID)
	assert.True(t, deleted.Before.Equal(dec(t, "50")))
}

func TestDiff_OverrideChangesAmountOnly(t *testing.T) {
	before := usdLoan(t, "loan-1")
	before.Fees = []FeeState{{FeeID: "f1", Name: "Origination", Rate: dec(t, "0.005"), Amount: dec(t, "500")}}
	after := before
	after.Fees = []FeeState{{FeeID: "f1", Name: "Origination", Rate: dec(t, "0.005"), Amount: dec(t, "420"), Overridden: true}}

	ch := Diff(snap("s1", before), snap("s2", after))
	require.Len(t, ch.Fees, 1, "amount override is a modification even with identical config")
	assert.Equal(t, FeeModified, ch.Fees[0].Kind)
}

func TestDiff_InvoiceMoveIsSingleEvent(t *testing.T) {
	beforeA := usdLoan(t, "loan-a")
	beforeA.InvoiceIDs = []string{"inv-1", "inv-2"}
	beforeB := usdLoan(t, "loan-b")

	afterA := usdLoan(t, "loan-a")
	afterA.InvoiceIDs = []string{"inv-2"}
	afterB := usdLoan(t, "loan-b")
	afterB.InvoiceIDs = []string{"inv-1"}

	ch := Diff(snap("s1", beforeA, beforeB), snap("s2", afterA, afterB))

	require.Len(t, ch.Invoices, 1)
	assert.Equal(t, InvoiceMove{InvoiceID: "inv-1", FromLoanID: "loan-a", ToLoanID: "loan-b"}, ch.Invoices[0])
	assert.Empty(t, ch.Fees)
	assert.Empty(t, ch.Rates)
}

func TestDiff_DisjointLoanSetsYieldNothing(t *testing.T) {
	ch := Diff(snap("s1", usdLoan(t, "loan-1")), snap("s2", usdLoan(t, "loan-2")))
	assert.True(t, ch.Empty(), "only common loans are compared")
}

func TestChanges_LoanIDsSortedUnion(t *testing.T) {
	ch := Changes{
		Rates:    []RateChange{{LoanID: "loan-c"}},
		Fees:     []FeeChange{{LoanID: "loan-a"}},
		Statuses: []StatusChange{{LoanID: "loan-c"}},
		Invoices: []InvoiceMove{{FromLoanID: "loan-b", ToLoanID: "loan-a"}},
	}
	assert.Equal(t, []string{"loan-a", "loan-b", "loan-c"}, ch.LoanIDs())
}

func capture(t *testing.T, l *loan.Loan) LoanState {
	t.Helper()
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return CaptureLoan(l, pricing.NewFormula(nil), asOf)
}

func TestCaptureLoan_StoresDerivedFigures(t *testing.T) {
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &loan.Loan{
		LoanID:       "loan-1",
		Currency:     "USD",
		Principal:    dec(t, "100000"),
		BaseRate:     dec(t, "0.05"),
		Spread:       dec(t, "0.02"),
		Status:       loan.StatusActive,
		MaturityDate: asOf.AddDate(0, 0, 360),
		Fees: []loan.Fee{
			{FeeID: "f1", Amount: dec(t, "500")},
			{FeeID: "f2", Amount: dec(t, "300"), Waived: true},
		},
		Invoices: []loan.Invoice{{InvoiceID: "inv-1"}},
	}

	st := capture(t, l)
	assert.True(t, st.EffectiveRate.Equal(dec(t, "0.07")))
	assert.True(t, st.InterestAmount.Equal(dec(t, "7000")))
	assert.True(t, st.TotalFees.Equal(dec(t, "500")), "waived fee excluded")
	assert.True(t, st.NetProceeds.Equal(dec(t, "92500")))
	assert.Equal(t, []string{"inv-1"}, st.InvoiceIDs)
	assert.Len(t, st.Fees, 2, "waived fee still captured, just not totalled")
}

func TestDeltas_AggregatesOnlyChangedLoans(t *testing.T) {
	// loan-1: fees 500 -> 650 modified, plus a 100 fee added => fees delta +250
	before1 := usdLoan(t, "loan-1")
	before1.TotalFees = dec(t, "500")
	before1.NetProceeds = dec(t, "92500")
	before1.InterestAmount = dec(t, "7000")
	after1 := before1
	after1.TotalFees = dec(t, "750")
	after1.NetProceeds = dec(t, "92250")

	// loan-2 changed in the other direction
	before2 := usdLoan(t, "loan-2")
	before2.TotalFees = dec(t, "140")
	before2.NetProceeds = dec(t, "99860")
	after2 := before2
	after2.TotalFees = dec(t, "100")
	after2.NetProceeds = dec(t, "99900")

	// loan-3 untouched and absent from the change list; its figures must not leak in
	loan3 := usdLoan(t, "loan-3")
	loan3.TotalFees = dec(t, "9999")

	prev := snap("s1", before1, before2, loan3)
	cur := snap("s2", after1, after2, loan3)
	ch := Changes{Fees: []FeeChange{
		{Kind: FeeModified, LoanID: "loan-1", FeeID: "f1"},
		{Kind: FeeAdded, LoanID: "loan-1", FeeID: "f2"},
		{Kind: FeeModified, LoanID: "loan-2", FeeID: "f9"},
	}}

	deltas := Deltas(prev, cur, ch)
	require.Len(t, deltas, 1)
	d := deltas[0]
	assert.Equal(t, "USD", d.Currency)
	assert.True(t, d.FeesChange.Equal(dec(t, "210")), "+250 and -40 aggregate to +210, got %s", d.FeesChange)
	assert.True(t, d.NetProceedsChange.Equal(dec(t, "-210")))
	assert.True(t, d.FeesBefore.Equal(dec(t, "640")))
	assert.True(t, d.FeesAfter.Equal(dec(t, "850")))
}

func TestDeltas_AverageRateIsUnweightedMean(t *testing.T) {
	before1 := usdLoan(t, "loan-1")
	after1 := before1
	after1.EffectiveRate = dec(t, "0.09") // +0.02

	before2 := usdLoan(t, "loan-2")
	before2.Principal = dec(t, "1000000") // ten times the principal
	after2 := before2
	after2.EffectiveRate = dec(t, "0.08") // +0.01

	prev := snap("s1", before1, before2)
	cur := snap("s2", after1, after2)
	ch := Changes{Rates: []RateChange{{LoanID: "loan-1"}, {LoanID: "loan-2"}}}

	deltas := Deltas(prev, cur, ch)
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].AverageRateChange.Equal(dec(t, "0.015")),
		"straight mean ignores principal, got %s", deltas[0].AverageRateChange)

	weighted := WeightedAverageRateDelta(prev, cur, ch)
	// (100000*0.02 + 1000000*0.01) / 1100000 = 12000/1100000
	want := dec(t, "12000").Div(dec(t, "1100000"))
	assert.True(t, weighted["USD"].Equal(want), "got %s", weighted["USD"])
}

func TestSummarize_PerCurrency(t *testing.T) {
	usd1 := usdLoan(t, "loan-1")
	usd1.InterestAmount = dec(t, "7000")
	usd1.TotalFees = dec(t, "500")
	usd1.NetProceeds = dec(t, "92500")
	usd2 := usdLoan(t, "loan-2")
	usd2.EffectiveRate = dec(t, "0.09")
	usd2.InterestAmount = dec(t, "9000")
	usd2.NetProceeds = dec(t, "91000")
	eur := usdLoan(t, "loan-3")
	eur.Currency = "EUR"

	sums := Summarize([]LoanState{usd1, usd2, eur})
	require.Len(t, sums, 2)
	assert.Equal(t, "EUR", sums[0].Currency, "sorted by currency")

	usd := sums[1]
	assert.Equal(t, 2, usd.LoanCount)
	assert.True(t, usd.TotalPrincipal.Equal(dec(t, "200000")))
	assert.True(t, usd.TotalInterest.Equal(dec(t, "16000")))
	assert.True(t, usd.AverageRate.Equal(dec(t, "0.08")), "mean of 0.07 and 0.09")
}
