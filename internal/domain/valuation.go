package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PercentDisplayPlaces is the number of decimals shown for percentages.
const PercentDisplayPlaces int32 = 2

// Valuation holds the invested amount, current value and derived profit/loss.
// ProfitLossPercent keeps full precision; use DisplayPercent for presentation.
type Valuation struct {
	Invested          Money
	CurrentValue      Money
	ProfitLoss        Money
	ProfitLossPercent decimal.Decimal
}

// DisplayPercent rounds the profit/loss percentage half-to-even to two places.
func (v Valuation) DisplayPercent() decimal.Decimal {
	return v.ProfitLossPercent.RoundBank(PercentDisplayPlaces)
}

// ValueUnitPriced values a unit-priced position at the given current price.
func ValueUnitPriced(pos Position, price Money) (Valuation, error) {
	if !price.IsPositive() {
		return Valuation{}, fmt.Errorf("%w: %s has non-positive price %s", ErrPriceUnavailable, pos.Symbol(), price)
	}

	if price.Currency() != pos.Currency() {
		return Valuation{}, fmt.Errorf("%w: %s priced in %s, held in %s",
			ErrCurrencyMismatch, pos.Symbol(), price.Currency(), pos.Currency())
	}

	return valuate(pos.Invested(), price.MulQuantity(pos.TotalQuantity()))
}

// ValueStatement values an instrument whose invested and current amounts are reported directly.
func ValueStatement(invested, current Money) (Valuation, error) {
	if invested.IsNegative() || current.IsNegative() {
		return Valuation{}, fmt.Errorf("%w: statement amounts must not be negative", ErrInvalidAmount)
	}

	return valuate(invested, current)
}

func valuate(invested, current Money) (Valuation, error) {
	pl, err := current.Sub(invested)
	if err != nil {
		return Valuation{}, err
	}

	pct, err := ProfitLossPercent(invested, current)
	if err != nil {
		return Valuation{}, err
	}

	return Valuation{
		Invested:          invested,
		CurrentValue:      current,
		ProfitLoss:        pl,
		ProfitLossPercent: pct,
	}, nil
}

// ProfitLossPercent returns (current - invested) / invested × 100 at full precision.
// It is zero when both amounts are zero; any other zero-invested state is an error.
func ProfitLossPercent(invested, current Money) (decimal.Decimal, error) {
	diff, err := current.Sub(invested)
	if err != nil {
		return decimal.Zero, err
	}

	if invested.IsZero() {
		if current.IsZero() {
			return decimal.Zero, nil
		}
		return decimal.Zero, ErrZeroInvested
	}

	return DivRoundBank(diff.Amount().Mul(hundred), invested.Amount(), DivisionPrecision), nil
}

// SumValuations rolls valuations up additively. The percentage is recomputed from
// the summed amounts, never averaged.
func SumValuations(currency string, valuations []Valuation) (Valuation, error) {
	invested, err := ZeroMoney(currency)
	if err != nil {
		return Valuation{}, err
	}
	current := invested

	for _, v := range valuations {
		if invested, err = invested.Add(v.Invested); err != nil {
			return Valuation{}, err
		}
		if current, err = current.Add(v.CurrentValue); err != nil {
			return Valuation{}, err
		}
	}

	return valuate(invested, current)
}
