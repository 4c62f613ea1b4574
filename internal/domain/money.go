package domain

import (
	"encoding/json"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits every Money amount is stored with.
// It exceeds the two display digits of most currencies so intermediate results keep precision.
const MoneyScale int32 = 4

// DivisionPrecision is the number of fractional digits kept by intermediate divisions
// before the final rounding pass.
const DivisionPrecision int32 = 16

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Money is an exact decimal amount in a single currency. It is immutable.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney creates a Money rounded half-to-even to MoneyScale.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if err := ValidateCurrency(currency); err != nil {
		return Money{}, err
	}

	return Money{amount: amount.RoundBank(MoneyScale), currency: NormalizeCurrency(currency)}, nil
}

// NewMoneyFromString parses a decimal string into Money.
func NewMoneyFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, amount)
	}

	return NewMoney(d, currency)
}

// MustMoney is like NewMoneyFromString but panics on invalid input.
// It is meant for constants and tests.
func MustMoney(amount, currency string) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}

	return m
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency string) (Money, error) {
	return NewMoney(decimal.Zero, currency)
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }
func (m Money) IsNegative() bool        { return m.amount.IsNegative() }
func (m Money) Sign() int               { return m.amount.Sign() }
func (m Money) Neg() Money              { return Money{amount: m.amount.Neg(), currency: m.currency} }
func (m Money) Abs() Money              { return Money{amount: m.amount.Abs(), currency: m.currency} }

// Equal reports whether both amount and currency are equal.
func (m Money) Equal(n Money) bool {
	return m.currency == n.currency && m.amount.Equal(n.amount)
}

// SameCurrency reports whether n is expressed in the same currency as m.
func (m Money) SameCurrency(n Money) bool { return m.currency == n.currency }

// Cmp compares two amounts of the same currency.
func (m Money) Cmp(n Money) (int, error) {
	if err := m.assertSameCurrency(n); err != nil {
		return 0, err
	}

	return m.amount.Cmp(n.amount), nil
}

// Add returns m + n.
func (m Money) Add(n Money) (Money, error) {
	if err := m.assertSameCurrency(n); err != nil {
		return Money{}, err
	}

	return Money{amount: m.amount.Add(n.amount), currency: m.currency}, nil
}

// Sub returns m - n.
func (m Money) Sub(n Money) (Money, error) {
	if err := m.assertSameCurrency(n); err != nil {
		return Money{}, err
	}

	return Money{amount: m.amount.Sub(n.amount), currency: m.currency}, nil
}

// MulDecimal multiplies by a scalar, rounding half-to-even to MoneyScale.
func (m Money) MulDecimal(d decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(d).RoundBank(MoneyScale), currency: m.currency}
}

// MulQuantity returns the value of q units priced at m.
func (m Money) MulQuantity(q Quantity) Money {
	return m.MulDecimal(q.Decimal())
}

// DivDecimal divides by a scalar, rounding half-to-even to MoneyScale.
func (m Money) DivDecimal(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return Money{}, ErrDivisionByZero
	}

	return Money{amount: DivRoundBank(m.amount, d, MoneyScale), currency: m.currency}, nil
}

// DivQuantity returns the per-unit amount of m spread over q units.
func (m Money) DivQuantity(q Quantity) (Money, error) {
	return m.DivDecimal(q.Decimal())
}

// Round returns m rounded half-to-even to the given number of places, for display.
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.RoundBank(places), currency: m.currency}
}

// String returns the amount at full stored scale followed by the currency code.
func (m Money) String() string {
	return m.amount.StringFixed(MoneyScale) + " " + m.currency
}

// Format renders m with the currency's own symbol and fraction digits.
func (m Money) Format() string {
	cur := money.GetCurrency(m.currency)
	if cur == nil {
		return m.String()
	}

	minor := m.amount.Shift(int32(cur.Fraction)).RoundBank(0)

	return cur.Formatter().Format(minor.IntPart())
}

func (m Money) assertSameCurrency(n Money) error {
	if m.currency != n.currency {
		return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, m.currency, n.currency)
	}

	return nil
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// MarshalJSON encodes Money as {"amount":"…","currency":"…"} with the amount as a string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(MoneyScale),
		Currency: m.currency,
	})
}

// UnmarshalJSON decodes and validates Money.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := NewMoney(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// DivRoundBank divides d by d2 and rounds the quotient half-to-even to places digits.
// The rounding decision uses the exact remainder, so no double rounding occurs.
func DivRoundBank(d, d2 decimal.Decimal, places int32) decimal.Decimal {
	q, r := d.QuoRem(d2, places)
	if r.IsZero() {
		return q
	}

	unit := decimal.New(1, -places)
	half := d2.Abs().Mul(unit)

	cmp := r.Abs().Mul(two).Cmp(half)
	odd := q.Shift(places).BigInt().Bit(0) == 1

	if cmp > 0 || (cmp == 0 && odd) {
		if d.Sign()*d2.Sign() < 0 {
			return q.Sub(unit)
		}
		return q.Add(unit)
	}

	return q
}
