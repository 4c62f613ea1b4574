package domain

import (
	"fmt"
	"time"
)

// Holding is one account's stake in one instrument.
// CostBasis is the per-unit average purchase price for that account.
type Holding struct {
	AccountID string
	Symbol    string
	Quantity  Quantity
	CostBasis Money
	UpdatedAt time.Time
}

// Validate checks if the holding is usable for aggregation.
func (h Holding) Validate() error {
	if err := ValidateAccountID(h.AccountID); err != nil {
		return err
	}

	if err := ValidateSymbol(h.Symbol); err != nil {
		return err
	}

	if !h.Quantity.IsValid() {
		return fmt.Errorf("%w: account %s", ErrInvalidQuantity, h.AccountID)
	}

	if h.CostBasis.Currency() == "" {
		return fmt.Errorf("%w: account %s has no cost currency", ErrInvalidCurrency, h.AccountID)
	}

	if !h.CostBasis.IsPositive() {
		return fmt.Errorf("%w: account %s", ErrInvalidCostBasis, h.AccountID)
	}

	return nil
}

// Invested returns quantity × cost basis for this holding alone.
func (h Holding) Invested() Money {
	return h.CostBasis.MulQuantity(h.Quantity)
}

// WithPurchase folds a purchase of qty units at price into the holding,
// returning a holding with the summed quantity and re-weighted cost basis.
func (h Holding) WithPurchase(qty Quantity, price Money, at time.Time) (Holding, error) {
	if !qty.IsValid() {
		return Holding{}, ErrInvalidQuantity
	}

	if !price.IsPositive() {
		return Holding{}, fmt.Errorf("%w: purchase price must be positive", ErrInvalidAmount)
	}

	if price.Currency() != h.CostBasis.Currency() {
		return Holding{}, fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, price.Currency(), h.CostBasis.Currency())
	}

	total := h.Quantity.Add(qty)
	cost := h.Quantity.Decimal().Mul(h.CostBasis.Amount()).Add(qty.Decimal().Mul(price.Amount()))

	basis, err := NewMoney(DivRoundBank(cost, total.Decimal(), MoneyScale), price.Currency())
	if err != nil {
		return Holding{}, err
	}

	return Holding{
		AccountID: h.AccountID,
		Symbol:    h.Symbol,
		Quantity:  total,
		CostBasis: basis,
		UpdatedAt: at,
	}, nil
}
