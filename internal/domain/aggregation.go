package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Aggregate is the combined state of all holdings of one instrument.
type Aggregate struct {
	TotalQuantity       Quantity
	WeightedAverageCost Money
}

// AggregateHoldings combines holdings of a single instrument into one total quantity
// and one quantity-weighted average cost.
//
// Products are summed exactly and divided once, rounding half-to-even to MoneyScale,
// so the result does not depend on holding order and never drifts across re-runs.
func AggregateHoldings(holdings []Holding) (Aggregate, error) {
	if len(holdings) == 0 {
		return Aggregate{}, ErrEmptyAggregation
	}

	first := holdings[0]
	if err := first.Validate(); err != nil {
		return Aggregate{}, err
	}

	currency := first.CostBasis.Currency()
	symbol := NormalizeSymbol(first.Symbol)

	totalQty := decimal.Zero
	totalCost := decimal.Zero
	seen := make(map[string]struct{}, len(holdings))

	for _, h := range holdings {
		if err := h.Validate(); err != nil {
			return Aggregate{}, err
		}

		if NormalizeSymbol(h.Symbol) != symbol {
			return Aggregate{}, fmt.Errorf("%w: %s and %s", ErrSymbolMismatch, symbol, h.Symbol)
		}

		if h.CostBasis.Currency() != currency {
			return Aggregate{}, fmt.Errorf("%w: account %s holds %s in %s, expected %s",
				ErrCurrencyMismatch, h.AccountID, symbol, h.CostBasis.Currency(), currency)
		}

		if _, dup := seen[h.AccountID]; dup {
			return Aggregate{}, fmt.Errorf("%w: %s", ErrDuplicateHolding, h.AccountID)
		}
		seen[h.AccountID] = struct{}{}

		qty := h.Quantity.Decimal()
		totalQty = totalQty.Add(qty)
		totalCost = totalCost.Add(qty.Mul(h.CostBasis.Amount()))
	}

	quantity, err := NewQuantity(totalQty)
	if err != nil {
		return Aggregate{}, err
	}

	avg, err := NewMoney(DivRoundBank(totalCost, totalQty, MoneyScale), currency)
	if err != nil {
		return Aggregate{}, err
	}

	return Aggregate{TotalQuantity: quantity, WeightedAverageCost: avg}, nil
}
