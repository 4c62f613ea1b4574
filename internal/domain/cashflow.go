package domain

import (
	"fmt"
	"time"
)

// CashFlow is a dated signed amount. Negative amounts are money put into an
// investment, positive amounts are money taken out or the terminal value.
type CashFlow struct {
	Date   time.Time
	Amount Money
}

// Day truncates t to its calendar date at UTC midnight.
// Day-count arithmetic works in whole days of the date's own calendar.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// BuyFlow records a purchase of the given cost as an outflow on date.
func BuyFlow(date time.Time, cost Money) CashFlow {
	return CashFlow{Date: Day(date), Amount: cost.Abs().Neg()}
}

// TerminalFlow records the current value as an inflow on the valuation date.
func TerminalFlow(asOf time.Time, value Money) CashFlow {
	return CashFlow{Date: Day(asOf), Amount: value}
}

// Transaction is a recorded purchase of an instrument in one account.
type Transaction struct {
	ID        string
	Symbol    string
	AccountID string
	Date      time.Time
	Quantity  Quantity
	Price     Money
	CreatedAt time.Time
}

// Validate checks the transaction fields.
func (t Transaction) Validate() error {
	if err := ValidateSymbol(t.Symbol); err != nil {
		return err
	}

	if err := ValidateAccountID(t.AccountID); err != nil {
		return err
	}

	if t.Date.IsZero() {
		return fmt.Errorf("%w: transaction date is required", ErrInvalidDate)
	}

	if !t.Quantity.IsValid() {
		return ErrInvalidQuantity
	}

	if !t.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidAmount)
	}

	return nil
}

// Amount returns price × quantity.
func (t Transaction) Amount() Money {
	return t.Price.MulQuantity(t.Quantity)
}

// CashFlow returns the purchase as a negative flow on its date.
func (t Transaction) CashFlow() CashFlow {
	return BuyFlow(t.Date, t.Amount())
}

// PositionCashFlows builds the XIRR input of a single position: its purchases
// plus the current value as terminal inflow on asOf.
func PositionCashFlows(transactions []Transaction, currentValue Money, asOf time.Time) ([]CashFlow, error) {
	if len(transactions) == 0 {
		return nil, ErrNoTransactions
	}

	flows := make([]CashFlow, 0, len(transactions)+1)
	for _, tx := range transactions {
		flows = append(flows, tx.CashFlow())
	}

	return append(flows, TerminalFlow(asOf, currentValue)), nil
}

// PortfolioCashFlows is PositionCashFlows over the union of all positions'
// purchases, with the total current value as one combined terminal inflow.
func PortfolioCashFlows(byPosition map[string][]Transaction, totalValue Money, asOf time.Time) ([]CashFlow, error) {
	var all []Transaction
	for _, txs := range byPosition {
		all = append(all, txs...)
	}

	return PositionCashFlows(all, totalValue, asOf)
}
