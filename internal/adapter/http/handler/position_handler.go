package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/goportfolio/internal/adapter/http/dto"
	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// PositionService defines the reporting behavior needed by PositionHandler.
type PositionService interface {
	GetPosition(ctx context.Context, symbol string) (*usecase.PositionReport, error)
	GetPortfolio(ctx context.Context, currency string) (*usecase.PortfolioReport, error)
}

// HoldingService defines the write behavior needed by PositionHandler.
type HoldingService interface {
	UpsertHolding(ctx context.Context, input usecase.UpsertHoldingInput) (*domain.Position, error)
	RemoveHolding(ctx context.Context, symbol, accountID string) error
	ListHoldings(ctx context.Context, symbol string) ([]domain.Holding, error)
	RecordBuy(ctx context.Context, input usecase.RecordBuyInput) (*domain.Transaction, error)
}

// PositionHandler handles position, holding and portfolio requests.
type PositionHandler struct {
	positionUC PositionService
	holdingUC  HoldingService
}

// NewPositionHandler creates a new PositionHandler.
func NewPositionHandler(positionUC PositionService, holdingUC HoldingService) *PositionHandler {
	return &PositionHandler{positionUC: positionUC, holdingUC: holdingUC}
}

// Get reports one position with its valuation and XIRR.
func (h *PositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.positionUC.GetPosition(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, "failed to get position", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PositionFromReport(report))
}

// Portfolio reports every open position.
func (h *PositionHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	report, err := h.positionUC.GetPortfolio(r.Context(), r.URL.Query().Get("currency"))
	if err != nil {
		writeDomainError(w, "failed to get portfolio", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PortfolioFromReport(report))
}

// ListHoldings lists the per-account holdings of an instrument.
func (h *PositionHandler) ListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.holdingUC.ListHoldings(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, "failed to list holdings", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.HoldingsFromDomain(holdings))
}

// UpsertHolding replaces an account's holding and returns the new aggregate.
func (h *PositionHandler) UpsertHolding(w http.ResponseWriter, r *http.Request) {
	var req dto.UpsertHoldingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "symbol"), chi.URLParam(r, "account"))
	if err != nil {
		writeDomainError(w, "invalid holding", err)
		return
	}

	position, err := h.holdingUC.UpsertHolding(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to save holding", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AggregateFromDomain(*position))
}

// RemoveHolding deletes an account's holding.
func (h *PositionHandler) RemoveHolding(w http.ResponseWriter, r *http.Request) {
	err := h.holdingUC.RemoveHolding(r.Context(), chi.URLParam(r, "symbol"), chi.URLParam(r, "account"))
	if err != nil {
		writeDomainError(w, "failed to remove holding", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecordBuy records a purchase.
func (h *PositionHandler) RecordBuy(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordBuyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, "invalid transaction", err)
		return
	}

	transaction, err := h.holdingUC.RecordBuy(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to record transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(transaction))
}
