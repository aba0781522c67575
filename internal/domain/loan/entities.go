package loan

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("loan not found")
	ErrFeeNotFound       = errors.New("fee not found")
	ErrFeeConfigNotFound = errors.New("fee config not found")
)

type Status string

const (
	StatusActive  Status = "active"
	StatusClosed  Status = "closed"
	StatusDefault Status = "default"
)

type PricingStatus string

const (
	PricingPending PricingStatus = "pending"
	PricingPriced  PricingStatus = "priced"
	PricingLocked  PricingStatus = "locked"
)

type FeeCalcType string

const (
	FeeFlat       FeeCalcType = "flat"
	FeePercentage FeeCalcType = "percentage"
	FeeTiered     FeeCalcType = "tiered"
)

// Loan is the persisted baseline record. The editing workspace never mutates
// it in place; staged edits live in the pricing ledger until save.
type Loan struct {
	ID            uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID        string          `gorm:"size:32;uniqueIndex:ux_loans_loan_id_active" json:"loan_id"`
	PortfolioID   string          `gorm:"size:32;index:idx_loans_portfolio_active" json:"portfolio_id"`
	Currency      string          `gorm:"size:3" json:"currency"`
	Principal     decimal.Decimal `gorm:"type:decimal(18,2)" json:"principal"`
	BaseRate      decimal.Decimal `gorm:"type:decimal(10,6)" json:"base_rate"`
	Spread        decimal.Decimal `gorm:"type:decimal(10,6)" json:"spread"`
	Status        Status          `gorm:"type:enum('active','closed','default');default:'active'" json:"status"`
	PricingStatus PricingStatus   `gorm:"type:enum('pending','priced','locked');default:'pending'" json:"pricing_status"`
	MaturityDate  time.Time       `gorm:"type:date" json:"maturity_date"`
	Fees          []Fee           `gorm:"foreignKey:LoanRef;references:ID" json:"fees"`
	Invoices      []Invoice       `gorm:"foreignKey:LoanRef;references:ID" json:"invoices"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Loan) TableName() string { return "loans" }

// EffectiveRate is base rate plus spread on the persisted values.
func (l *Loan) EffectiveRate() decimal.Decimal { return l.BaseRate.Add(l.Spread) }

// Fee belongs to exactly one loan. Amount is the computed currency amount;
// an overridden fee keeps its configuration but carries a manual Amount.
type Fee struct {
	ID         uint64          `gorm:"primaryKey;column:id" json:"-"`
	FeeID      string          `gorm:"size:32;uniqueIndex:ux_fees_fee_id" json:"fee_id"`
	LoanRef    uint64          `gorm:"column:loan_ref;index" json:"-"`
	ConfigID   string          `gorm:"size:32" json:"config_id"`
	Name       string          `gorm:"size:128" json:"name"`
	CalcType   FeeCalcType     `gorm:"type:enum('flat','percentage','tiered')" json:"calc_type"`
	Rate       decimal.Decimal `gorm:"type:decimal(10,6)" json:"rate"`
	FlatAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"flat_amount"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Waived     bool            `json:"waived"`
	Paid       bool            `json:"paid"`
	Overridden bool            `json:"overridden"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Fee) TableName() string { return "fees" }

// Invoice membership is what the snapshot differ tracks for "moved" events.
type Invoice struct {
	ID        uint64          `gorm:"primaryKey;column:id" json:"-"`
	InvoiceID string          `gorm:"size:32;uniqueIndex:ux_invoices_invoice_id" json:"invoice_id"`
	LoanRef   uint64          `gorm:"column:loan_ref;index" json:"-"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	DueDate   time.Time       `gorm:"type:date" json:"due_date"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }

// FeeTier applies a rate to principals at or above MinPrincipal. Tiers are
// stored ordered ascending; the highest matching tier wins.
type FeeTier struct {
	MinPrincipal decimal.Decimal `json:"min_principal"`
	Rate         decimal.Decimal `json:"rate"`
}

// FeeConfig is a catalogue entry describing how a fee is calculated when it
// is attached to a loan. The catalogue is read-only for the workbench.
type FeeConfig struct {
	ID         uint64          `gorm:"primaryKey;column:id" json:"-"`
	ConfigID   string          `gorm:"size:32;uniqueIndex:ux_fee_configs_config_id" json:"config_id"`
	Name       string          `gorm:"size:128" json:"name"`
	CalcType   FeeCalcType     `gorm:"type:enum('flat','percentage','tiered')" json:"calc_type"`
	Rate       decimal.Decimal `gorm:"type:decimal(10,6)" json:"rate"`
	FlatAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"flat_amount"`
	TiersJSON  string          `gorm:"column:tiers;type:json" json:"-"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (FeeConfig) TableName() string { return "fee_configs" }

// Tiers decodes the JSON tier column. An empty column means no tiers.
func (c *FeeConfig) Tiers() ([]FeeTier, error) {
	if c.TiersJSON == "" {
		return nil, nil
	}
	var out []FeeTier
	if err := json.Unmarshal([]byte(c.TiersJSON), &out); err != nil {
		return nil, err
	}
	return out, nil
}
