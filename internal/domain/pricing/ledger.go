package pricing

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricing-workbench/internal/domain/loan"
	"pricing-workbench/pkg/id"
)

type fieldKey struct {
	loanID string
	field  Field
}

// Ledger is the in-memory store of staged, unsaved edits for one editing
// session. It is built per portfolio and torn down with the session; there is
// exactly one writer, so no internal locking. All operations are synchronous
// and cannot fail except for the documented staging conflicts.
type Ledger struct {
	fields map[fieldKey]PendingFieldChange
	fees   []PendingFeeChange
}

func NewLedger() *Ledger {
	return &Ledger{fields: make(map[fieldKey]PendingFieldChange)}
}

// TrackFieldChange upserts a staged field edit. A repeated edit to the same
// (loan, field) replaces the value but keeps the first-seen original, so the
// ledger can always restore the true baseline.
func (lg *Ledger) TrackFieldChange(loanID string, field Field, label, oldValue, newValue string) {
	k := fieldKey{loanID: loanID, field: field}
	if cur, ok := lg.fields[k]; ok {
		cur.Value = newValue
		cur.Label = label
		cur.TrackedAt = time.Now().UTC()
		lg.fields[k] = cur
		return
	}
	lg.fields[k] = PendingFieldChange{
		LoanID:    loanID,
		Field:     field,
		Label:     label,
		Original:  oldValue,
		Value:     newValue,
		TrackedAt: time.Now().UTC(),
	}
}

// TrackFeeAdd stages a new fee from a catalogue config. The returned entry
// carries the provisional fee id that becomes permanent at save.
func (lg *Ledger) TrackFeeAdd(loanID string, cfg loan.FeeConfig) PendingFeeChange {
	e := PendingFeeChange{
		ChangeID:    uuid.NewString(),
		LoanID:      loanID,
		Type:        FeeChangeAdd,
		FeeID:       id.NewID32(),
		FeeConfigID: cfg.ConfigID,
		FeeName:     cfg.Name,
		Config:      cfg,
		TrackedAt:   time.Now().UTC(),
	}
	lg.fees = append(lg.fees, e)
	return e
}

// TrackFeeUpdate stages an edit to an existing fee. Successive updates to the
// same fee merge last-write-wins per field while the original snapshot from
// the first edit is kept. Updating a fee staged for deletion is rejected;
// updating a staged add folds the edit into the add entry.
func (lg *Ledger) TrackFeeUpdate(loanID, feeID string, original loan.Fee, updates FeeUpdate) error {
	for i := range lg.fees {
		e := &lg.fees[i]
		if e.LoanID != loanID || e.FeeID != feeID {
			continue
		}
		switch e.Type {
		case FeeChangeDelete:
			return ErrFeeAlreadyDeleted
		case FeeChangeUpdate, FeeChangeAdd:
			e.Updates = e.Updates.merge(updates)
			e.TrackedAt = time.Now().UTC()
			return nil
		}
	}
	lg.fees = append(lg.fees, PendingFeeChange{
		ChangeID:    uuid.NewString(),
		LoanID:      loanID,
		Type:        FeeChangeUpdate,
		FeeID:       feeID,
		FeeConfigID: original.ConfigID,
		FeeName:     original.Name,
		OriginalFee: &original,
		Updates:     updates,
		TrackedAt:   time.Now().UTC(),
	})
	return nil
}

// TrackFeeDelete stages removal of a fee. Deleting a staged add cancels both
// entries (the fee never existed in persisted state); any staged update for
// the fee is superseded and dropped. Deleting wins over updating.
func (lg *Ledger) TrackFeeDelete(loanID, feeID string, original *loan.Fee) error {
	kept := lg.fees[:0]
	cancelled := false
	for _, e := range lg.fees {
		if e.LoanID == loanID && e.FeeID == feeID {
			switch e.Type {
			case FeeChangeAdd:
				cancelled = true
				continue
			case FeeChangeUpdate:
				continue
			case FeeChangeDelete:
				kept = append(kept, e)
				cancelled = true // already terminal, do not double-stage
				continue
			}
		}
		kept = append(kept, e)
	}
	lg.fees = kept
	if cancelled {
		return nil
	}
	if original == nil {
		return ErrMissingOriginalFee
	}
	lg.fees = append(lg.fees, PendingFeeChange{
		ChangeID:    uuid.NewString(),
		LoanID:      loanID,
		Type:        FeeChangeDelete,
		FeeID:       feeID,
		FeeConfigID: original.ConfigID,
		FeeName:     original.Name,
		OriginalFee: original,
		TrackedAt:   time.Now().UTC(),
	})
	return nil
}

// RevertFieldChange drops one staged field edit. No effect on other entries.
func (lg *Ledger) RevertFieldChange(loanID string, field Field) error {
	k := fieldKey{loanID: loanID, field: field}
	if _, ok := lg.fields[k]; !ok {
		return ErrChangeNotFound
	}
	delete(lg.fields, k)
	return nil
}

// RevertFeeChange drops one staged fee operation by change id.
func (lg *Ledger) RevertFeeChange(changeID string) error {
	for i, e := range lg.fees {
		if e.ChangeID == changeID {
			lg.fees = append(lg.fees[:i], lg.fees[i+1:]...)
			return nil
		}
	}
	return ErrChangeNotFound
}

func (lg *Ledger) RevertAllForLoan(loanID string) {
	for k := range lg.fields {
		if k.loanID == loanID {
			delete(lg.fields, k)
		}
	}
	kept := lg.fees[:0]
	for _, e := range lg.fees {
		if e.LoanID != loanID {
			kept = append(kept, e)
		}
	}
	lg.fees = kept
}

func (lg *Ledger) ClearAllChanges() {
	lg.fields = make(map[fieldKey]PendingFieldChange)
	lg.fees = nil
}

// ---- query surface (side-effect free) ----

func (lg *Ledger) HasChangesForLoan(loanID string) bool {
	for k := range lg.fields {
		if k.loanID == loanID {
			return true
		}
	}
	for _, e := range lg.fees {
		if e.LoanID == loanID {
			return true
		}
	}
	return false
}

func (lg *Ledger) IsFieldModified(loanID string, field Field) bool {
	_, ok := lg.fields[fieldKey{loanID: loanID, field: field}]
	return ok
}

func (lg *Ledger) OriginalValue(loanID string, field Field) (string, bool) {
	c, ok := lg.fields[fieldKey{loanID: loanID, field: field}]
	return c.Original, ok
}

func (lg *Ledger) NewValue(loanID string, field Field) (string, bool) {
	c, ok := lg.fields[fieldKey{loanID: loanID, field: field}]
	return c.Value, ok
}

func (lg *Ledger) PendingFeeAdds(loanID string) []PendingFeeChange {
	var out []PendingFeeChange
	for _, e := range lg.fees {
		if e.LoanID == loanID && e.Type == FeeChangeAdd {
			out = append(out, e)
		}
	}
	return out
}

func (lg *Ledger) IsFeeDeleted(loanID, feeID string) bool {
	for _, e := range lg.fees {
		if e.LoanID == loanID && e.FeeID == feeID && e.Type == FeeChangeDelete {
			return true
		}
	}
	return false
}

func (lg *Ledger) FeeUpdates(loanID, feeID string) (FeeUpdate, bool) {
	for _, e := range lg.fees {
		if e.LoanID == loanID && e.FeeID == feeID && e.Type == FeeChangeUpdate {
			return e.Updates, true
		}
	}
	return FeeUpdate{}, false
}

// RateInputs returns the union of currently staged rate edits for a loan.
// Editing one rate field must never regress the other's staged value, so the
// preview path always reads both from here.
func (lg *Ledger) RateInputs(loanID string) Inputs {
	var in Inputs
	if v, ok := lg.NewValue(loanID, FieldBaseRate); ok {
		d := decimal.RequireFromString(v)
		in.BaseRate = decimal.NewNullDecimal(d)
	}
	if v, ok := lg.NewValue(loanID, FieldSpread); ok {
		d := decimal.RequireFromString(v)
		in.Spread = decimal.NewNullDecimal(d)
	}
	return in
}

// FieldChanges returns staged field edits ordered by tracking time, then key,
// for deterministic iteration.
func (lg *Ledger) FieldChanges() []PendingFieldChange {
	out := make([]PendingFieldChange, 0, len(lg.fields))
	for _, c := range lg.fields {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TrackedAt.Equal(out[j].TrackedAt) {
			return out[i].TrackedAt.Before(out[j].TrackedAt)
		}
		if out[i].LoanID != out[j].LoanID {
			return out[i].LoanID < out[j].LoanID
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// FeeChanges returns staged fee operations in insertion order.
func (lg *Ledger) FeeChanges() []PendingFeeChange {
	out := make([]PendingFeeChange, len(lg.fees))
	copy(out, lg.fees)
	return out
}

func (lg *Ledger) ChangedLoanIDs() []string {
	seen := make(map[string]struct{})
	for k := range lg.fields {
		seen[k.loanID] = struct{}{}
	}
	for _, e := range lg.fees {
		seen[e.LoanID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (lg *Ledger) Len() int { return len(lg.fields) + len(lg.fees) }
