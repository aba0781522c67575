package pricing

import (
	"errors"
	"fmt"
)

var ErrUnknownField = errors.New("unknown editable field")

// Field enumerates the loan fields the workbench can stage edits against.
// A closed set keeps ledger keys typo-proof and lets switches be exhaustive.
type Field int

const (
	FieldBaseRate Field = iota
	FieldSpread
	FieldStatus
	FieldPricingStatus
	FieldMaturityDate
)

// Kind partitions fields by value representation. Rate fields carry decimal
// text in a PendingFieldChange; text fields carry the raw string.
type Kind int

const (
	KindRate Kind = iota
	KindText
)

func (f Field) Kind() Kind {
	switch f {
	case FieldBaseRate, FieldSpread:
		return KindRate
	default:
		return KindText
	}
}

func (f Field) String() string {
	switch f {
	case FieldBaseRate:
		return "base_rate"
	case FieldSpread:
		return "spread"
	case FieldStatus:
		return "status"
	case FieldPricingStatus:
		return "pricing_status"
	case FieldMaturityDate:
		return "maturity_date"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// ParseField maps the wire name back to a Field.
func ParseField(s string) (Field, error) {
	switch s {
	case "base_rate":
		return FieldBaseRate, nil
	case "spread":
		return FieldSpread, nil
	case "status":
		return FieldStatus, nil
	case "pricing_status":
		return FieldPricingStatus, nil
	case "maturity_date":
		return FieldMaturityDate, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownField, s)
}
