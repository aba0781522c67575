package snapshot

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Diff compares two full portfolio captures and produces a structured
// change-set. Only loans present in both snapshots are compared; loans that
// appear or disappear portfolio-wide are out of scope here, so disjoint loan
// sets simply yield zero changes.
//
// Fee modification is detected by exact inequality on the computed amount,
// not the configured rate: an override changes the amount without touching
// configuration, and that is still a change worth reporting.
func Diff(prev, cur *Snapshot) Changes {
	var out Changes

	prevByID := make(map[string]LoanState, len(prev.Loans))
	for _, l := range prev.Loans {
		prevByID[l.LoanID] = l
	}

	// invoice id -> owning loan id, restricted to common loans
	prevInvoices := make(map[string]string)
	curInvoices := make(map[string]string)

	for _, curLoan := range cur.Loans {
		prevLoan, ok := prevByID[curLoan.LoanID]
		if !ok {
			continue
		}

		if !prevLoan.BaseRate.Equal(curLoan.BaseRate) {
			out.Rates = append(out.Rates, RateChange{
				LoanID: curLoan.LoanID,
				Field:  "base_rate",
				Before: prevLoan.BaseRate,
				After:  curLoan.BaseRate,
			})
		}
		if !prevLoan.Spread.Equal(curLoan.Spread) {
			out.Rates = append(out.Rates, RateChange{
				LoanID: curLoan.LoanID,
				Field:  "spread",
				Before: prevLoan.Spread,
				After:  curLoan.Spread,
			})
		}

		if prevLoan.Status != curLoan.Status {
			out.Statuses = append(out.Statuses, StatusChange{
				LoanID: curLoan.LoanID,
				Field:  "status",
				Before: prevLoan.Status,
				After:  curLoan.Status,
			})
		}
		if prevLoan.PricingStatus != curLoan.PricingStatus {
			out.Statuses = append(out.Statuses, StatusChange{
				LoanID: curLoan.LoanID,
				Field:  "pricing_status",
				Before: prevLoan.PricingStatus,
				After:  curLoan.PricingStatus,
			})
		}

		out.Fees = append(out.Fees, diffFees(prevLoan, curLoan)...)

		for _, inv := range prevLoan.InvoiceIDs {
			prevInvoices[inv] = prevLoan.LoanID
		}
		for _, inv := range curLoan.InvoiceIDs {
			curInvoices[inv] = curLoan.LoanID
		}
	}

	// An invoice owned by different common loans on the two sides moved.
	moved := make([]InvoiceMove, 0)
	for inv, curOwner := range curInvoices {
		if prevOwner, ok := prevInvoices[inv]; ok && prevOwner != curOwner {
			moved = append(moved, InvoiceMove{InvoiceID: inv, FromLoanID: prevOwner, ToLoanID: curOwner})
		}
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].InvoiceID < moved[j].InvoiceID })
	out.Invoices = append(out.Invoices, moved...)

	return out
}

func diffFees(prevLoan, curLoan LoanState) []FeeChange {
	var out []FeeChange

	prevFees := make(map[string]FeeState, len(prevLoan.Fees))
	for _, f := range prevLoan.Fees {
		prevFees[f.FeeID] = f
	}

	for _, f := range curLoan.Fees {
		pf, ok := prevFees[f.FeeID]
		if !ok {
			out = append(out, FeeChange{
				Kind:   FeeAdded,
				LoanID: curLoan.LoanID,
				FeeID:  f.FeeID,
				Name:   f.Name,
				After:  f.Amount,
			})
			continue
		}
		if !pf.Amount.Equal(f.Amount) {
			out = append(out, FeeChange{
				Kind:   FeeModified,
				LoanID: curLoan.LoanID,
				FeeID:  f.FeeID,
				Name:   f.Name,
				Before: pf.Amount,
				After:  f.Amount,
			})
		}
		delete(prevFees, f.FeeID)
	}

	deleted := make([]FeeChange, 0, len(prevFees))
	for _, pf := range prevFees {
		deleted = append(deleted, FeeChange{
			Kind:   FeeDeleted,
			LoanID: curLoan.LoanID,
			FeeID:  pf.FeeID,
			Name:   pf.Name,
			Before: pf.Amount,
		})
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i].FeeID < deleted[j].FeeID })
	return append(out, deleted...)
}

// Deltas aggregates before/after figures per currency over only the loans a
// change-set touched. The average-rate delta is the straight mean of
// per-loan effective-rate differences; see WeightedAverageRateDelta for the
// principal-weighted reading.
func Deltas(prev, cur *Snapshot, ch Changes) []CurrencyDelta {
	type acc struct {
		CurrencyDelta
		count int64
	}
	byCcy := make(map[string]*acc)

	for _, loanID := range ch.LoanIDs() {
		before, okPrev := prev.LoanByID(loanID)
		after, okCur := cur.LoanByID(loanID)
		if !okPrev || !okCur {
			continue
		}
		a, ok := byCcy[after.Currency]
		if !ok {
			a = &acc{CurrencyDelta: CurrencyDelta{Currency: after.Currency}}
			byCcy[after.Currency] = a
		}
		a.count++
		a.NetProceedsBefore = a.NetProceedsBefore.Add(before.NetProceeds)
		a.NetProceedsAfter = a.NetProceedsAfter.Add(after.NetProceeds)
		a.FeesBefore = a.FeesBefore.Add(before.TotalFees)
		a.FeesAfter = a.FeesAfter.Add(after.TotalFees)
		a.InterestBefore = a.InterestBefore.Add(before.InterestAmount)
		a.InterestAfter = a.InterestAfter.Add(after.InterestAmount)
		a.AverageRateChange = a.AverageRateChange.Add(after.EffectiveRate.Sub(before.EffectiveRate))
	}

	out := make([]CurrencyDelta, 0, len(byCcy))
	for _, a := range byCcy {
		a.NetProceedsChange = a.NetProceedsAfter.Sub(a.NetProceedsBefore)
		a.FeesChange = a.FeesAfter.Sub(a.FeesBefore)
		a.InterestChange = a.InterestAfter.Sub(a.InterestBefore)
		if a.count > 0 {
			a.AverageRateChange = a.AverageRateChange.Div(decimal.NewFromInt(a.count))
		}
		out = append(out, a.CurrencyDelta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// WeightedAverageRateDelta is the principal-weighted alternative to the
// straight mean in Deltas, keyed by currency. Kept separate so switching the
// aggregate is a one-line change at the call site.
func WeightedAverageRateDelta(prev, cur *Snapshot, ch Changes) map[string]decimal.Decimal {
	num := make(map[string]decimal.Decimal)
	den := make(map[string]decimal.Decimal)

	for _, loanID := range ch.LoanIDs() {
		before, okPrev := prev.LoanByID(loanID)
		after, okCur := cur.LoanByID(loanID)
		if !okPrev || !okCur {
			continue
		}
		delta := after.EffectiveRate.Sub(before.EffectiveRate)
		num[after.Currency] = num[after.Currency].Add(after.Principal.Mul(delta))
		den[after.Currency] = den[after.Currency].Add(after.Principal)
	}

	out := make(map[string]decimal.Decimal, len(num))
	for ccy, n := range num {
		if den[ccy].IsZero() {
			out[ccy] = decimal.Zero
			continue
		}
		out[ccy] = n.Div(den[ccy])
	}
	return out
}
