package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		currency    string
		expected    string
		expectError error
	}{
		{name: "plain amount", amount: "600", currency: "PLN", expected: "600.0000 PLN"},
		{name: "lower case currency", amount: "1.5", currency: "usd", expected: "1.5000 USD"},
		{name: "rounds half to even down", amount: "0.00005", currency: "EUR", expected: "0.0000 EUR"},
		{name: "rounds half to even up", amount: "0.00015", currency: "EUR", expected: "0.0002 EUR"},
		{name: "unknown currency", amount: "1", currency: "XYZ", expectError: ErrInvalidCurrency},
		{name: "empty currency", amount: "1", currency: "", expectError: ErrInvalidCurrency},
		{name: "not a number", amount: "abc", currency: "USD", expectError: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.amount, tt.currency)
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected error %v, got %v", tt.expectError, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if m.String() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, m.String())
			}
		})
	}
}

func TestMoney_AddSubRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"0", "0"},
		{"600", "620"},
		{"123.4567", "0.0001"},
		{"-50.5", "99999999.9999"},
	}

	for _, p := range pairs {
		a := MustMoney(p[0], "PLN")
		b := MustMoney(p[1], "PLN")

		sum, err := a.Add(b)
		require.NoError(t, err)

		back, err := sum.Sub(b)
		require.NoError(t, err)

		assert.True(t, back.Equal(a), "expected %s, got %s", a, back)
	}
}

func TestMoney_RejectsCurrencyMismatch(t *testing.T) {
	a := MustMoney("10", "PLN")
	b := MustMoney("10", "USD")

	if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch from Add, got %v", err)
	}

	if _, err := a.Sub(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch from Sub, got %v", err)
	}

	if _, err := a.Cmp(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch from Cmp, got %v", err)
	}
}

func TestMoney_Immutable(t *testing.T) {
	a := MustMoney("10", "PLN")
	_, _ = a.Add(MustMoney("5", "PLN"))
	_ = a.MulDecimal(decimal.NewFromInt(3))

	assert.Equal(t, "10.0000 PLN", a.String())
}

func TestMoney_DivDecimal(t *testing.T) {
	m := MustMoney("10", "PLN")

	got, err := m.DivDecimal(decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.Equal(t, "3.3333 PLN", got.String())

	_, err = m.DivDecimal(decimal.Zero)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestDivRoundBank(t *testing.T) {
	tests := []struct {
		d, d2    int64
		places   int32
		expected string
	}{
		{1, 8, 2, "0.12"},
		{3, 8, 2, "0.38"},
		{-1, 8, 2, "-0.12"},
		{-3, 8, 2, "-0.38"},
		{1, -8, 2, "-0.12"},
		{2, 3, 2, "0.67"},
		{-2, 3, 2, "-0.67"},
		{48600, 80, 4, "607.5"},
		{1, 3, 0, "0"},
	}

	for _, tt := range tests {
		got := DivRoundBank(decimal.NewFromInt(tt.d), decimal.NewFromInt(tt.d2), tt.places)
		want := decimal.RequireFromString(tt.expected)
		if !got.Equal(want) {
			t.Errorf("%d/%d at %d places: expected %s, got %s", tt.d, tt.d2, tt.places, want, got)
		}
	}
}

func TestMoney_Format(t *testing.T) {
	assert.Equal(t, "$1,234.57", MustMoney("1234.5678", "USD").Format())
}

func TestMoney_JSON(t *testing.T) {
	m := MustMoney("607.5", "PLN")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"607.5000","currency":"PLN"}`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equal(m))

	err = json.Unmarshal([]byte(`{"amount":"1","currency":"NOPE"}`), &decoded)
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}
