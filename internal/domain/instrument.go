package domain

import (
	"fmt"
	"time"
)

// PricingModel tells how an instrument's current value is obtained.
type PricingModel string

const (
	// PricingUnit instruments (stocks, ETFs) are valued as unit price × quantity.
	PricingUnit PricingModel = "unit_priced"

	// PricingStatement instruments (bonds held to maturity) have invested and
	// current value reported directly by a statement.
	PricingStatement PricingModel = "statement_valued"
)

// IsValid checks if the pricing model is known.
func (p PricingModel) IsValid() bool {
	return p == PricingUnit || p == PricingStatement
}

// Instrument is a tradable security identified by its symbol.
type Instrument struct {
	Symbol       string
	Name         string
	Currency     string
	PricingModel PricingModel
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the instrument definition.
func (i Instrument) Validate() error {
	if err := ValidateSymbol(i.Symbol); err != nil {
		return err
	}

	if err := ValidateCurrency(i.Currency); err != nil {
		return err
	}

	if !i.PricingModel.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPricing, i.PricingModel)
	}

	return nil
}

// StatementValue is a directly reported valuation for a statement-valued instrument.
type StatementValue struct {
	Symbol       string
	Invested     Money
	CurrentValue Money
	AsOf         time.Time
}
