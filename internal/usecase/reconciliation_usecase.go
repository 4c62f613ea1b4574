package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/infrastructure/metrics"
)

// PositionReporter produces valued positions for reconciliation.
type PositionReporter interface {
	Symbols(ctx context.Context) ([]string, error)
	GetPosition(ctx context.Context, symbol string) (*PositionReport, error)
}

// ReconciliationUseCase compares system positions with broker snapshots.
type ReconciliationUseCase struct {
	txManager        TransactionManager
	positions        PositionReporter
	snapshotRepo     SnapshotRepository
	reconRepo        ReconciliationRepository
	idGen            IDGenerator
	clock            Clock
	defaultTolerance domain.Tolerance
	metrics          *metrics.Metrics
	logger           zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case.
func NewReconciliationUseCase(
	txManager TransactionManager,
	positions PositionReporter,
	snapshotRepo SnapshotRepository,
	reconRepo ReconciliationRepository,
	idGen IDGenerator,
	clock Clock,
	defaultTolerance domain.Tolerance,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txManager:        txManager,
		positions:        positions,
		snapshotRepo:     snapshotRepo,
		reconRepo:        reconRepo,
		idGen:            idGen,
		clock:            clock,
		defaultTolerance: defaultTolerance,
		metrics:          metrics,
		logger:           logger,
	}
}

// RunInput represents a broker snapshot submitted for reconciliation.
type RunInput struct {
	Source    string
	Positions []domain.SnapshotPosition
	// Tolerance overrides the configured default when set.
	Tolerance *domain.Tolerance
}

// Run stores the snapshot and reconciles the current system positions against it.
func (uc *ReconciliationUseCase) Run(ctx context.Context, input RunInput) (*domain.ReconciliationRun, error) {
	tolerance := uc.defaultTolerance
	if input.Tolerance != nil {
		tolerance = *input.Tolerance
	}

	source := input.Source
	if source == "" {
		source = snapshotSourceAPI
	}

	snapshot := &domain.SourceSnapshot{
		ID:         uc.idGen.Generate(),
		Source:     source,
		Positions:  input.Positions,
		ImportedAt: uc.clock.Now(),
	}

	return uc.reconcile(ctx, snapshot, tolerance, true)
}

// RunAgainstLatestSnapshot reconciles against the most recently stored snapshot
// with the default tolerance. It backs the scheduled reconciliation job.
func (uc *ReconciliationUseCase) RunAgainstLatestSnapshot(ctx context.Context) (*domain.ReconciliationRun, error) {
	snapshot, err := uc.snapshotRepo.Latest(ctx)
	if err != nil {
		return nil, err
	}

	return uc.reconcile(ctx, snapshot, uc.defaultTolerance, false)
}

// GetRun retrieves a reconciliation run by ID.
func (uc *ReconciliationUseCase) GetRun(ctx context.Context, id string) (*domain.ReconciliationRun, error) {
	return uc.reconRepo.GetRun(ctx, id)
}

// ListRuns lists runs, newest first.
func (uc *ReconciliationUseCase) ListRuns(ctx context.Context, limit, offset int) ([]*domain.ReconciliationRun, error) {
	limit, offset = domain.ValidatePagination(limit, offset)

	return uc.reconRepo.ListRuns(ctx, limit, offset)
}

func (uc *ReconciliationUseCase) reconcile(
	ctx context.Context,
	snapshot *domain.SourceSnapshot,
	tolerance domain.Tolerance,
	saveSnapshot bool,
) (*domain.ReconciliationRun, error) {
	if err := tolerance.Validate(); err != nil {
		return nil, err
	}

	system, err := uc.systemSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := domain.Reconcile(system, snapshot.Positions, tolerance)
	if err != nil {
		return nil, err
	}

	run := &domain.ReconciliationRun{
		ID:         uc.idGen.Generate(),
		SnapshotID: snapshot.ID,
		Tolerance:  tolerance,
		Entries:    entries,
		Summary:    domain.Summarize(entries),
		CreatedAt:  uc.clock.Now(),
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if saveSnapshot {
		if err := uc.snapshotRepo.Save(txCtx, tx, snapshot); err != nil {
			return nil, err
		}
	}

	if err := uc.reconRepo.SaveRun(txCtx, tx, run); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	uc.record(run)

	return run, nil
}

// systemSnapshot values every open position. A position without a current
// value makes the comparison meaningless, so it fails the run.
func (uc *ReconciliationUseCase) systemSnapshot(ctx context.Context) ([]domain.SnapshotPosition, error) {
	symbols, err := uc.positions.Symbols(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make([]domain.SnapshotPosition, 0, len(symbols))
	for _, symbol := range symbols {
		report, err := uc.positions.GetPosition(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}

		if report.Valuation == nil {
			return nil, fmt.Errorf("%s: %w", symbol, report.ValuationError)
		}

		snapshot = append(snapshot, domain.SnapshotPosition{
			Symbol:   report.Position.Symbol(),
			Quantity: report.Position.TotalQuantity().Decimal(),
			Value:    report.Valuation.CurrentValue,
		})
	}

	return snapshot, nil
}

func (uc *ReconciliationUseCase) record(run *domain.ReconciliationRun) {
	if uc.metrics != nil {
		uc.metrics.ReconciliationRuns.Inc()
		for status, n := range run.Summary.Counts {
			uc.metrics.ReconciliationEntries.WithLabelValues(string(status)).Add(float64(n))
		}
	}

	event := uc.logger.Info()
	if !run.Summary.Reconciled() {
		event = uc.logger.Warn()
	}

	event.
		Str("run_id", run.ID).
		Str("snapshot_id", run.SnapshotID).
		Int("entries", run.Summary.Total).
		Int("matched", run.Summary.Counts[domain.StatusMatched]).
		Bool("reconciled", run.Summary.Reconciled()).
		Msg("reconciliation completed")
}
