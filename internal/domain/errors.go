package domain

import "errors"

var (
	// Invalid input
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidCostBasis  = errors.New("cost basis must be positive")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrSymbolMismatch    = errors.New("holdings belong to different instruments")
	ErrEmptyAggregation  = errors.New("cannot aggregate an empty holding list")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrDuplicateHolding  = errors.New("duplicate holding for account")
	ErrDuplicateSymbol   = errors.New("duplicate symbol in snapshot")
	ErrInvalidTolerance  = errors.New("tolerance must not be negative")
	ErrInvalidAccountID  = errors.New("invalid account id")
	ErrZeroInvested      = errors.New("invested amount is zero but current value is not")
	ErrInvalidPricing    = errors.New("invalid pricing model")
	ErrWrongPricingModel = errors.New("operation does not apply to this pricing model")
	ErrInvalidDate       = errors.New("invalid date")

	// Missing external data
	ErrDataUnavailable      = errors.New("data unavailable")
	ErrPriceUnavailable     = dataUnavailable("price unavailable")
	ErrStatementUnavailable = dataUnavailable("statement value unavailable")
	ErrNoTransactions       = dataUnavailable("no transaction history")

	// Lookups
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrPositionNotFound   = errors.New("position not found")
	ErrHoldingNotFound    = errors.New("holding not found")
	ErrRunNotFound        = errors.New("reconciliation run not found")
	ErrSnapshotNotFound   = errors.New("source snapshot not found")
)

// dataUnavailable builds an error that matches both itself and ErrDataUnavailable.
func dataUnavailable(msg string) error {
	return &categorized{msg: msg, category: ErrDataUnavailable}
}

type categorized struct {
	msg      string
	category error
}

func (e *categorized) Error() string { return e.msg }

func (e *categorized) Is(target error) bool { return target == e.category }
