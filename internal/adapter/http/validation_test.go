package http

import (
	"strings"
	"testing"
)

type validationProbe struct {
	LoanID   string `validate:"required,hex32"`
	Rate     string `validate:"omitempty,rate6"`
	Currency string `validate:"omitempty,ccy"`
}

func TestValidator_Hex32(t *testing.T) {
	cv := NewValidator()

	if err := cv.Validate(&validationProbe{LoanID: strings.Repeat("a", 32)}); err != nil {
		t.Fatalf("valid id rejected: %v", err)
	}
	for _, bad := range []string{"", "short", strings.Repeat("A", 32), strings.Repeat("z", 32)} {
		if err := cv.Validate(&validationProbe{LoanID: bad}); err == nil {
			t.Fatalf("accepted %q", bad)
		}
	}
}

func TestValidator_Rate6(t *testing.T) {
	cv := NewValidator()
	id := strings.Repeat("a", 32)

	for _, ok := range []string{"0.05", "0.123456", "-0.01", "1"} {
		if err := cv.Validate(&validationProbe{LoanID: id, Rate: ok}); err != nil {
			t.Fatalf("rejected %q: %v", ok, err)
		}
	}
	for _, bad := range []string{"0.1234567", "five"} {
		if err := cv.Validate(&validationProbe{LoanID: id, Rate: bad}); err == nil {
			t.Fatalf("accepted %q", bad)
		}
	}
}

func TestValidator_Currency(t *testing.T) {
	cv := NewValidator()
	id := strings.Repeat("a", 32)

	if err := cv.Validate(&validationProbe{LoanID: id, Currency: "USD"}); err != nil {
		t.Fatalf("rejected USD: %v", err)
	}
	for _, bad := range []string{"usd", "US", "USDX"} {
		if err := cv.Validate(&validationProbe{LoanID: id, Currency: bad}); err == nil {
			t.Fatalf("accepted %q", bad)
		}
	}
}

func TestToFieldErrors_Messages(t *testing.T) {
	cv := NewValidator()
	err := cv.Validate(&validationProbe{LoanID: "nope", Rate: "0.1234567", Currency: "usd"})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	details := ToFieldErrors(err)
	if !containsFieldMsg(details, "loanid", "hex") {
		t.Errorf("missing hex32 message: %+v", details)
	}
	if !containsFieldMsg(details, "rate", "decimal places") {
		t.Errorf("missing rate6 message: %+v", details)
	}
	if !containsFieldMsg(details, "currency", "currency code") {
		t.Errorf("missing ccy message: %+v", details)
	}
}
