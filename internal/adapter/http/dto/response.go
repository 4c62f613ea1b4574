package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// InstrumentResponse represents an instrument in API responses.
type InstrumentResponse struct {
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Currency     string    `json:"currency"`
	PricingModel string    `json:"pricing_model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InstrumentFromDomain converts a domain instrument to a response.
func InstrumentFromDomain(i *domain.Instrument) *InstrumentResponse {
	return &InstrumentResponse{
		Symbol:       i.Symbol,
		Name:         i.Name,
		Currency:     i.Currency,
		PricingModel: string(i.PricingModel),
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

// ListInstrumentsResponse is a page of instruments.
type ListInstrumentsResponse struct {
	Instruments []*InstrumentResponse `json:"instruments"`
	Total       int64                 `json:"total"`
}

// InstrumentsFromDomain converts domain instruments to responses.
func InstrumentsFromDomain(instruments []*domain.Instrument) []*InstrumentResponse {
	result := make([]*InstrumentResponse, len(instruments))
	for i, instrument := range instruments {
		result[i] = InstrumentFromDomain(instrument)
	}
	return result
}

// PriceResponse echoes a recorded price.
type PriceResponse struct {
	Symbol string       `json:"symbol"`
	Price  domain.Money `json:"price"`
}

// StatementResponse echoes a recorded statement.
type StatementResponse struct {
	Symbol       string       `json:"symbol"`
	Invested     domain.Money `json:"invested"`
	CurrentValue domain.Money `json:"current_value"`
	AsOf         time.Time    `json:"as_of"`
}

// StatementFromDomain converts a statement value to a response.
func StatementFromDomain(v *domain.StatementValue) *StatementResponse {
	return &StatementResponse{
		Symbol:       v.Symbol,
		Invested:     v.Invested,
		CurrentValue: v.CurrentValue,
		AsOf:         v.AsOf,
	}
}

// HoldingResponse represents one account's holding.
type HoldingResponse struct {
	AccountID string          `json:"account_id"`
	Symbol    string          `json:"symbol"`
	Quantity  domain.Quantity `json:"quantity"`
	CostBasis domain.Money    `json:"cost_basis"`
	Invested  domain.Money    `json:"invested"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// HoldingsFromDomain converts domain holdings to responses.
func HoldingsFromDomain(holdings []domain.Holding) []*HoldingResponse {
	result := make([]*HoldingResponse, len(holdings))
	for i, h := range holdings {
		result[i] = &HoldingResponse{
			AccountID: h.AccountID,
			Symbol:    h.Symbol,
			Quantity:  h.Quantity,
			CostBasis: h.CostBasis,
			Invested:  h.Invested(),
			UpdatedAt: h.UpdatedAt,
		}
	}
	return result
}

// AggregateResponse is the cross-account aggregate of one instrument.
type AggregateResponse struct {
	Symbol        string             `json:"symbol"`
	TotalQuantity domain.Quantity    `json:"total_quantity"`
	AverageCost   domain.Money       `json:"average_cost"`
	Invested      domain.Money       `json:"invested"`
	Holdings      []*HoldingResponse `json:"holdings"`
}

// AggregateFromDomain converts a position to its aggregate response.
func AggregateFromDomain(p domain.Position) *AggregateResponse {
	return &AggregateResponse{
		Symbol:        p.Symbol(),
		TotalQuantity: p.TotalQuantity(),
		AverageCost:   p.AverageCost(),
		Invested:      p.Invested(),
		Holdings:      HoldingsFromDomain(p.Holdings()),
	}
}

// ValuationResponse carries P&L. ProfitLossPercent is rounded for display;
// ProfitLossPercentExact keeps full precision.
type ValuationResponse struct {
	Invested               domain.Money    `json:"invested"`
	CurrentValue           domain.Money    `json:"current_value"`
	ProfitLoss             domain.Money    `json:"profit_loss"`
	ProfitLossPercent      decimal.Decimal `json:"profit_loss_percent"`
	ProfitLossPercentExact decimal.Decimal `json:"profit_loss_percent_exact"`
}

// ValuationFromDomain converts a valuation to a response.
func ValuationFromDomain(v *domain.Valuation) *ValuationResponse {
	if v == nil {
		return nil
	}
	return &ValuationResponse{
		Invested:               v.Invested,
		CurrentValue:           v.CurrentValue,
		ProfitLoss:             v.ProfitLoss,
		ProfitLossPercent:      v.DisplayPercent(),
		ProfitLossPercentExact: v.ProfitLossPercent,
	}
}

// XIRRResponse is an annualised rate of return.
type XIRRResponse struct {
	Rate       float64         `json:"rate"`
	Percent    decimal.Decimal `json:"percent"`
	Iterations int             `json:"iterations"`
}

// XIRRFromDomain converts a solver result to a response.
func XIRRFromDomain(r *domain.XIRRResult) *XIRRResponse {
	if r == nil {
		return nil
	}
	return &XIRRResponse{
		Rate:       r.Rate,
		Percent:    decimal.NewFromFloat(r.Rate * 100).RoundBank(domain.PercentDisplayPlaces),
		Iterations: r.Iterations,
	}
}

// PositionResponse reports one instrument. Valuation and XIRR are omitted
// when they cannot be computed, with the reason in the matching *_error field.
type PositionResponse struct {
	Instrument     *InstrumentResponse `json:"instrument"`
	Position       *AggregateResponse  `json:"position"`
	Valuation      *ValuationResponse  `json:"valuation,omitempty"`
	ValuationError string              `json:"valuation_error,omitempty"`
	XIRR           *XIRRResponse       `json:"xirr,omitempty"`
	XIRRError      string              `json:"xirr_error,omitempty"`
	AsOf           time.Time           `json:"as_of"`
}

// PositionFromReport converts a position report to a response.
func PositionFromReport(r *usecase.PositionReport) *PositionResponse {
	return &PositionResponse{
		Instrument:     InstrumentFromDomain(&r.Instrument),
		Position:       AggregateFromDomain(r.Position),
		Valuation:      ValuationFromDomain(r.Valuation),
		ValuationError: errorString(r.ValuationError),
		XIRR:           XIRRFromDomain(r.XIRR),
		XIRRError:      errorString(r.XIRRError),
		AsOf:           r.AsOf,
	}
}

// PortfolioResponse reports every open position and their total.
type PortfolioResponse struct {
	Currency   string              `json:"currency,omitempty"`
	Positions  []*PositionResponse `json:"positions"`
	Total      *ValuationResponse  `json:"total,omitempty"`
	TotalError string              `json:"total_error,omitempty"`
	XIRR       *XIRRResponse       `json:"xirr,omitempty"`
	XIRRError  string              `json:"xirr_error,omitempty"`
	AsOf       time.Time           `json:"as_of"`
}

// PortfolioFromReport converts a portfolio report to a response.
func PortfolioFromReport(r *usecase.PortfolioReport) *PortfolioResponse {
	positions := make([]*PositionResponse, len(r.Positions))
	for i, p := range r.Positions {
		positions[i] = PositionFromReport(p)
	}

	return &PortfolioResponse{
		Currency:   r.Currency,
		Positions:  positions,
		Total:      ValuationFromDomain(r.Total),
		TotalError: errorString(r.TotalError),
		XIRR:       XIRRFromDomain(r.XIRR),
		XIRRError:  errorString(r.XIRRError),
		AsOf:       r.AsOf,
	}
}

// TransactionResponse represents a recorded purchase.
type TransactionResponse struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	AccountID string          `json:"account_id"`
	Date      string          `json:"date"`
	Quantity  domain.Quantity `json:"quantity"`
	Price     domain.Money    `json:"price"`
	Amount    domain.Money    `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:        t.ID,
		Symbol:    t.Symbol,
		AccountID: t.AccountID,
		Date:      t.Date.Format(time.DateOnly),
		Quantity:  t.Quantity,
		Price:     t.Price,
		Amount:    t.Amount(),
		CreatedAt: t.CreatedAt,
	}
}

// SnapshotPositionResponse is one side of a reconciliation entry.
type SnapshotPositionResponse struct {
	Quantity decimal.Decimal `json:"quantity"`
	Value    domain.Money    `json:"value"`
}

func snapshotFromDomain(p *domain.SnapshotPosition) *SnapshotPositionResponse {
	if p == nil {
		return nil
	}
	return &SnapshotPositionResponse{Quantity: p.Quantity, Value: p.Value}
}

// ReconciliationEntryResponse is the outcome for one instrument.
type ReconciliationEntryResponse struct {
	Symbol             string                    `json:"symbol"`
	Status             string                    `json:"status"`
	System             *SnapshotPositionResponse `json:"system,omitempty"`
	Source             *SnapshotPositionResponse `json:"source,omitempty"`
	QuantityDiff       decimal.Decimal           `json:"quantity_diff"`
	DiscrepancyPercent decimal.Decimal           `json:"discrepancy_percent"`
}

// ReconciliationRunResponse represents a reconciliation run.
type ReconciliationRunResponse struct {
	ID         string                         `json:"id"`
	SnapshotID string                         `json:"snapshot_id"`
	Tolerance  ToleranceResponse              `json:"tolerance"`
	Reconciled bool                           `json:"reconciled"`
	Total      int                            `json:"total"`
	Counts     map[string]int                 `json:"counts"`
	Entries    []*ReconciliationEntryResponse `json:"entries,omitempty"`
	CreatedAt  time.Time                      `json:"created_at"`
}

// ToleranceResponse is the tolerance a run was evaluated with.
type ToleranceResponse struct {
	Quantity     decimal.Decimal `json:"quantity"`
	ValuePercent decimal.Decimal `json:"value_percent"`
}

// RunFromDomain converts a reconciliation run to a response.
func RunFromDomain(run *domain.ReconciliationRun) *ReconciliationRunResponse {
	counts := make(map[string]int, len(domain.Statuses))
	for _, s := range domain.Statuses {
		counts[string(s)] = run.Summary.Counts[s]
	}

	resp := &ReconciliationRunResponse{
		ID:         run.ID,
		SnapshotID: run.SnapshotID,
		Tolerance: ToleranceResponse{
			Quantity:     run.Tolerance.QuantityAbs,
			ValuePercent: run.Tolerance.ValuePercent,
		},
		Reconciled: run.Summary.Reconciled(),
		Total:      run.Summary.Total,
		Counts:     counts,
		CreatedAt:  run.CreatedAt,
	}

	if len(run.Entries) > 0 {
		resp.Entries = make([]*ReconciliationEntryResponse, len(run.Entries))
		for i, e := range run.Entries {
			resp.Entries[i] = &ReconciliationEntryResponse{
				Symbol:             e.Symbol,
				Status:             string(e.Status),
				System:             snapshotFromDomain(e.System),
				Source:             snapshotFromDomain(e.Source),
				QuantityDiff:       e.QuantityDiff,
				DiscrepancyPercent: e.DiscrepancyPercent.RoundBank(domain.PercentDisplayPlaces),
			}
		}
	}

	return resp
}

// ListRunsResponse is a page of run summaries.
type ListRunsResponse struct {
	Runs  []*ReconciliationRunResponse `json:"runs"`
	Total int64                        `json:"total"`
}

// RunsFromDomain converts runs to responses.
func RunsFromDomain(runs []*domain.ReconciliationRun) []*ReconciliationRunResponse {
	result := make([]*ReconciliationRunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}
	return result
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
