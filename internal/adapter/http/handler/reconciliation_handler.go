package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/goportfolio/internal/adapter/http/dto"
	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	Run(ctx context.Context, input usecase.RunInput) (*domain.ReconciliationRun, error)
	GetRun(ctx context.Context, id string) (*domain.ReconciliationRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.ReconciliationRun, error)
}

// ReconciliationHandler handles reconciliation requests.
type ReconciliationHandler struct {
	reconciliationUC ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciliationUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationUC: reconciliationUC}
}

// Run reconciles the system against the posted broker snapshot.
func (h *ReconciliationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req dto.RunReconciliationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid snapshot", err)
		return
	}

	run, err := h.reconciliationUC.Run(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to reconcile", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RunFromDomain(run))
}

// Get retrieves a run with its entries.
func (h *ReconciliationHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.reconciliationUC.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get reconciliation run", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RunFromDomain(run))
}

// List lists run summaries, newest first.
func (h *ReconciliationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	runs, err := h.reconciliationUC.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list reconciliation runs", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListRunsResponse{
		Runs:  dto.RunsFromDomain(runs),
		Total: int64(len(runs)),
	})
}
