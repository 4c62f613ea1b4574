package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// UpsertInstrumentRequest defines or redefines an instrument.
type UpsertInstrumentRequest struct {
	Name         string `json:"name"`
	Currency     string `json:"currency"`
	PricingModel string `json:"pricing_model"`
}

// ToUseCaseInput converts to use case input.
func (r *UpsertInstrumentRequest) ToUseCaseInput(symbol string) usecase.UpsertInstrumentInput {
	return usecase.UpsertInstrumentInput{
		Symbol:       symbol,
		Name:         r.Name,
		Currency:     r.Currency,
		PricingModel: domain.PricingModel(r.PricingModel),
	}
}

// SetPriceRequest records a unit price.
type SetPriceRequest struct {
	Price string     `json:"price"`
	At    *time.Time `json:"at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SetPriceRequest) ToUseCaseInput(symbol string) (usecase.SetPriceInput, error) {
	price, err := parseDecimal("price", r.Price)
	if err != nil {
		return usecase.SetPriceInput{}, err
	}

	return usecase.SetPriceInput{Symbol: symbol, Price: price, At: r.At}, nil
}

// SetStatementRequest records a broker statement.
type SetStatementRequest struct {
	Invested     string     `json:"invested"`
	CurrentValue string     `json:"current_value"`
	AsOf         *time.Time `json:"as_of,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SetStatementRequest) ToUseCaseInput(symbol string) (usecase.SetStatementInput, error) {
	invested, err := parseDecimal("invested", r.Invested)
	if err != nil {
		return usecase.SetStatementInput{}, err
	}

	current, err := parseDecimal("current_value", r.CurrentValue)
	if err != nil {
		return usecase.SetStatementInput{}, err
	}

	return usecase.SetStatementInput{
		Symbol:       symbol,
		Invested:     invested,
		CurrentValue: current,
		AsOf:         r.AsOf,
	}, nil
}

// UpsertHoldingRequest replaces an account's holding.
type UpsertHoldingRequest struct {
	Quantity  string `json:"quantity"`
	CostBasis string `json:"cost_basis"`
}

// ToUseCaseInput converts to use case input.
func (r *UpsertHoldingRequest) ToUseCaseInput(symbol, accountID string) (usecase.UpsertHoldingInput, error) {
	qty, err := parseDecimal("quantity", r.Quantity)
	if err != nil {
		return usecase.UpsertHoldingInput{}, err
	}

	cost, err := parseDecimal("cost_basis", r.CostBasis)
	if err != nil {
		return usecase.UpsertHoldingInput{}, err
	}

	return usecase.UpsertHoldingInput{
		Symbol:    symbol,
		AccountID: accountID,
		Quantity:  qty,
		CostBasis: cost,
	}, nil
}

// RecordBuyRequest records a purchase. Date is a calendar date (YYYY-MM-DD).
type RecordBuyRequest struct {
	AccountID      string `json:"account_id"`
	Date           string `json:"date"`
	Quantity       string `json:"quantity"`
	Price          string `json:"price"`
	ApplyToHolding bool   `json:"apply_to_holding"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordBuyRequest) ToUseCaseInput(symbol string) (usecase.RecordBuyInput, error) {
	date, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return usecase.RecordBuyInput{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", domain.ErrInvalidDate, r.Date)
	}

	qty, err := parseDecimal("quantity", r.Quantity)
	if err != nil {
		return usecase.RecordBuyInput{}, err
	}

	price, err := parseDecimal("price", r.Price)
	if err != nil {
		return usecase.RecordBuyInput{}, err
	}

	return usecase.RecordBuyInput{
		Symbol:         symbol,
		AccountID:      r.AccountID,
		Date:           date,
		Quantity:       qty,
		Price:          price,
		ApplyToHolding: r.ApplyToHolding,
	}, nil
}

// SnapshotPositionRequest is one line of an imported broker snapshot.
type SnapshotPositionRequest struct {
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// ToleranceRequest overrides the configured reconciliation tolerance.
type ToleranceRequest struct {
	Quantity     string `json:"quantity"`
	ValuePercent string `json:"value_percent"`
}

// RunReconciliationRequest reconciles the system against a broker snapshot.
type RunReconciliationRequest struct {
	Source    string                    `json:"source"`
	Positions []SnapshotPositionRequest `json:"positions"`
	Tolerance *ToleranceRequest         `json:"tolerance,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RunReconciliationRequest) ToUseCaseInput() (usecase.RunInput, error) {
	positions := make([]domain.SnapshotPosition, 0, len(r.Positions))
	for i, p := range r.Positions {
		qty, err := parseDecimal(fmt.Sprintf("positions[%d].quantity", i), p.Quantity)
		if err != nil {
			return usecase.RunInput{}, err
		}

		if qty.IsNegative() {
			return usecase.RunInput{}, fmt.Errorf("%w: positions[%d].quantity is negative", domain.ErrInvalidQuantity, i)
		}

		value, err := domain.NewMoneyFromString(p.Value, p.Currency)
		if err != nil {
			return usecase.RunInput{}, fmt.Errorf("positions[%d].value: %w", i, err)
		}
		if value.IsNegative() {
			return usecase.RunInput{}, fmt.Errorf("%w: positions[%d].value is negative", domain.ErrInvalidAmount, i)
		}

		positions = append(positions, domain.SnapshotPosition{Symbol: p.Symbol, Quantity: qty, Value: value})
	}

	input := usecase.RunInput{Source: r.Source, Positions: positions}

	if r.Tolerance != nil {
		tol := domain.Tolerance{QuantityAbs: decimal.Zero, ValuePercent: decimal.Zero}

		if r.Tolerance.Quantity != "" {
			q, err := parseDecimal("tolerance.quantity", r.Tolerance.Quantity)
			if err != nil {
				return usecase.RunInput{}, err
			}
			tol.QuantityAbs = q
		}

		if r.Tolerance.ValuePercent != "" {
			v, err := parseDecimal("tolerance.value_percent", r.Tolerance.ValuePercent)
			if err != nil {
				return usecase.RunInput{}, err
			}
			tol.ValuePercent = v
		}

		input.Tolerance = &tol
	}

	return input, nil
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a decimal", domain.ErrInvalidAmount, field, value)
	}
	return d, nil
}
