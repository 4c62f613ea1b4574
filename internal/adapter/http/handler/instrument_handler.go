package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/goportfolio/internal/adapter/http/dto"
	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// InstrumentService defines the behavior needed by InstrumentHandler.
type InstrumentService interface {
	UpsertInstrument(ctx context.Context, input usecase.UpsertInstrumentInput) (*domain.Instrument, error)
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
	ListInstruments(ctx context.Context, limit, offset int) ([]*domain.Instrument, error)
	SetPrice(ctx context.Context, input usecase.SetPriceInput) (domain.Money, error)
	SetStatement(ctx context.Context, input usecase.SetStatementInput) (*domain.StatementValue, error)
}

// InstrumentHandler handles instrument and market data requests.
type InstrumentHandler struct {
	instrumentUC InstrumentService
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(instrumentUC InstrumentService) *InstrumentHandler {
	return &InstrumentHandler{instrumentUC: instrumentUC}
}

// Upsert creates or redefines the instrument named in the path.
func (h *InstrumentHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req dto.UpsertInstrumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	instrument, err := h.instrumentUC.UpsertInstrument(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "symbol")))
	if err != nil {
		writeDomainError(w, "failed to save instrument", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InstrumentFromDomain(instrument))
}

// Get retrieves an instrument.
func (h *InstrumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	instrument, err := h.instrumentUC.GetInstrument(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, "failed to get instrument", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InstrumentFromDomain(instrument))
}

// List lists instruments.
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	instruments, err := h.instrumentUC.ListInstruments(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list instruments", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListInstrumentsResponse{
		Instruments: dto.InstrumentsFromDomain(instruments),
		Total:       int64(len(instruments)),
	})
}

// SetPrice records a unit price.
func (h *InstrumentHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req dto.SetPriceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, "invalid price", err)
		return
	}

	price, err := h.instrumentUC.SetPrice(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to record price", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PriceResponse{Symbol: domain.NormalizeSymbol(input.Symbol), Price: price})
}

// SetStatement records a broker statement.
func (h *InstrumentHandler) SetStatement(w http.ResponseWriter, r *http.Request) {
	var req dto.SetStatementRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, "invalid statement", err)
		return
	}

	statement, err := h.instrumentUC.SetStatement(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to record statement", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatementFromDomain(statement))
}
