package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"pricing-workbench/internal/domain/loan"
)

var (
	ErrChangeNotFound     = errors.New("pending change not found")
	ErrPlaybackReadOnly   = errors.New("portfolio is in playback mode and read-only")
	ErrFeeAlreadyDeleted  = errors.New("fee already staged for deletion")
	ErrUnknownFeeChange   = errors.New("unknown fee change type")
	ErrMissingOriginalFee = errors.New("original fee snapshot required")
)

// PendingFieldChange is one staged field edit. Original is captured at first
// edit and survives any number of value replacements, so a revert always
// restores the true baseline.
type PendingFieldChange struct {
	LoanID    string    `json:"loan_id"`
	Field     Field     `json:"field"`
	Label     string    `json:"label"`
	Original  string    `json:"original"`
	Value     string    `json:"value"`
	TrackedAt time.Time `json:"tracked_at"`
}

type FeeChangeType string

const (
	FeeChangeAdd    FeeChangeType = "add"
	FeeChangeUpdate FeeChangeType = "update"
	FeeChangeDelete FeeChangeType = "delete"
)

// FeeUpdate carries the modified fields of a staged fee edit. Nil pointers
// mean "unchanged"; merges are last-write-wins per field.
type FeeUpdate struct {
	Rate       *decimal.Decimal `json:"rate,omitempty"`
	FlatAmount *decimal.Decimal `json:"flat_amount,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Waived     *bool            `json:"waived,omitempty"`
	Overridden *bool            `json:"overridden,omitempty"`
}

func (u FeeUpdate) merge(next FeeUpdate) FeeUpdate {
	if next.Rate != nil {
		u.Rate = next.Rate
	}
	if next.FlatAmount != nil {
		u.FlatAmount = next.FlatAmount
	}
	if next.Amount != nil {
		u.Amount = next.Amount
	}
	if next.Waived != nil {
		u.Waived = next.Waived
	}
	if next.Overridden != nil {
		u.Overridden = next.Overridden
	}
	return u
}

// ApplyTo returns a copy of f with the staged update applied. When Rate or
// FlatAmount change without an explicit Amount, Amount stays as computed by
// the caller (the calculator recomputes it from configuration).
func (u FeeUpdate) ApplyTo(f loan.Fee) loan.Fee {
	if u.Rate != nil {
		f.Rate = *u.Rate
	}
	if u.FlatAmount != nil {
		f.FlatAmount = *u.FlatAmount
	}
	if u.Amount != nil {
		f.Amount = *u.Amount
		f.Overridden = true
	}
	if u.Waived != nil {
		f.Waived = *u.Waived
	}
	if u.Overridden != nil {
		f.Overridden = *u.Overridden
	}
	return f
}

// PendingFeeChange is one staged fee operation. Adds carry the catalogue
// config snapshot so previews can price the new fee without another lookup.
// Updates and deletes carry the original fee snapshot for exact reversal.
type PendingFeeChange struct {
	ChangeID    string         `json:"change_id"`
	LoanID      string         `json:"loan_id"`
	Type        FeeChangeType  `json:"type"`
	FeeID       string         `json:"fee_id"`
	FeeConfigID string         `json:"fee_config_id,omitempty"`
	FeeName     string         `json:"fee_name"`
	Config      loan.FeeConfig `json:"-"`
	OriginalFee *loan.Fee      `json:"original_fee,omitempty"`
	Updates     FeeUpdate      `json:"updates,omitempty"`
	TrackedAt   time.Time      `json:"tracked_at"`
}
