package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// QuantityScale is the number of fractional digits a Quantity keeps.
// Fractional-share brokers report up to 8 digits.
const QuantityScale int32 = 8

// Quantity is a strictly positive, exact count of units.
type Quantity struct {
	value decimal.Decimal
}

// NewQuantity validates and rounds a unit count.
func NewQuantity(value decimal.Decimal) (Quantity, error) {
	v := value.RoundBank(QuantityScale)
	if !v.IsPositive() {
		return Quantity{}, fmt.Errorf("%w: got %s", ErrInvalidQuantity, value.String())
	}

	return Quantity{value: v}, nil
}

// NewQuantityFromString parses a decimal string into a Quantity.
func NewQuantityFromString(value string) (Quantity, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: %q is not a decimal", ErrInvalidQuantity, value)
	}

	return NewQuantity(d)
}

// MustQuantity is like NewQuantityFromString but panics on invalid input.
func MustQuantity(value string) Quantity {
	q, err := NewQuantityFromString(value)
	if err != nil {
		panic(err)
	}

	return q
}

func (q Quantity) Decimal() decimal.Decimal { return q.value }
func (q Quantity) Equal(p Quantity) bool    { return q.value.Equal(p.value) }
func (q Quantity) Cmp(p Quantity) int       { return q.value.Cmp(p.value) }
func (q Quantity) String() string           { return q.value.String() }

// IsValid reports whether q was built through NewQuantity.
func (q Quantity) IsValid() bool { return q.value.IsPositive() }

// Add returns q + p. The sum of two positive quantities is always positive.
func (q Quantity) Add(p Quantity) Quantity {
	return Quantity{value: q.value.Add(p.value)}
}

// Sub returns q - p, failing when the result would not be positive.
func (q Quantity) Sub(p Quantity) (Quantity, error) {
	return NewQuantity(q.value.Sub(p.value))
}

// MarshalJSON encodes the quantity as a decimal string.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.value.String())
}

// UnmarshalJSON decodes and validates a quantity.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}

	parsed, err := NewQuantity(d)
	if err != nil {
		return err
	}

	*q = parsed

	return nil
}
