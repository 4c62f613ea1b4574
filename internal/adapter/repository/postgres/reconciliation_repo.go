package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// ReconciliationRepository implements usecase.ReconciliationRepository.
// Runs and entries are only ever inserted.
type ReconciliationRepository struct {
	db Querier
}

// NewReconciliationRepository creates a new ReconciliationRepository.
func NewReconciliationRepository(db Querier) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

const runColumns = `id, snapshot_id, quantity_tolerance::text, value_tolerance_percent::text,
	total, matched, quantity_mismatch, value_mismatch, missing_in_system, missing_in_source, created_at`

const runColumnsPlain = `id, snapshot_id, quantity_tolerance, value_tolerance_percent,
	total, matched, quantity_mismatch, value_mismatch, missing_in_system, missing_in_source, created_at`

// SaveRun stores a run together with its entries.
func (r *ReconciliationRepository) SaveRun(ctx context.Context, tx usecase.Transaction, run *domain.ReconciliationRun) error {
	db := inTx(tx, r.db)
	counts := run.Summary.Counts

	_, err := db.Exec(ctx, `
		INSERT INTO reconciliation_runs (`+runColumnsPlain+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		run.ID,
		run.SnapshotID,
		decimalToNumeric(run.Tolerance.QuantityAbs),
		decimalToNumeric(run.Tolerance.ValuePercent),
		run.Summary.Total,
		counts[domain.StatusMatched],
		counts[domain.StatusQuantityMismatch],
		counts[domain.StatusValueMismatch],
		counts[domain.StatusMissingInSystem],
		counts[domain.StatusMissingInSource],
		timeToPgTimestamptz(run.CreatedAt),
	)
	if err != nil {
		return err
	}

	for _, e := range run.Entries {
		sysQty, sysValue := snapshotColumns(e.System)
		srcQty, srcValue := snapshotColumns(e.Source)

		_, err := db.Exec(ctx, `
			INSERT INTO reconciliation_entries (
				run_id, symbol, status,
				system_quantity, system_value, source_quantity, source_value,
				currency, quantity_diff, discrepancy_percent
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			run.ID,
			e.Symbol,
			string(e.Status),
			sysQty, sysValue, srcQty, srcValue,
			entryCurrency(e),
			decimalToNumeric(e.QuantityDiff),
			decimalToNumeric(e.DiscrepancyPercent),
		)
		if err != nil {
			return fmt.Errorf("reconciliation entry %s: %w", e.Symbol, err)
		}
	}

	return nil
}

// GetRun retrieves a run with its entries.
func (r *ReconciliationRepository) GetRun(ctx context.Context, id string) (*domain.ReconciliationRun, error) {
	run, err := scanRun(r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM reconciliation_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT symbol, status,
		       system_quantity::text, system_value::text,
		       source_quantity::text, source_value::text,
		       currency, quantity_diff::text, discrepancy_percent::text
		FROM reconciliation_entries
		WHERE run_id = $1
		ORDER BY symbol
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Entries = make([]domain.ReconciliationEntry, 0, run.Summary.Total)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		run.Entries = append(run.Entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns lists run summaries, newest first. Entries are not loaded.
func (r *ReconciliationRepository) ListRuns(ctx context.Context, limit, offset int) ([]*domain.ReconciliationRun, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+runColumns+` FROM reconciliation_runs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.ReconciliationRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*domain.ReconciliationRun, error) {
	var (
		run                  domain.ReconciliationRun
		qtyTol, valueTol     string
		total, matched       int
		qtyMismatch, valMism int
		missSystem, missSrc  int
	)

	err := row.Scan(
		&run.ID, &run.SnapshotID, &qtyTol, &valueTol,
		&total, &matched, &qtyMismatch, &valMism, &missSystem, &missSrc,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if run.Tolerance.QuantityAbs, err = parseDecimal("quantity_tolerance", qtyTol); err != nil {
		return nil, err
	}

	if run.Tolerance.ValuePercent, err = parseDecimal("value_tolerance_percent", valueTol); err != nil {
		return nil, err
	}

	run.Summary = domain.ReconciliationSummary{
		Total: total,
		Counts: map[domain.ReconciliationStatus]int{
			domain.StatusMatched:          matched,
			domain.StatusQuantityMismatch: qtyMismatch,
			domain.StatusValueMismatch:    valMism,
			domain.StatusMissingInSystem:  missSystem,
			domain.StatusMissingInSource:  missSrc,
		},
	}

	return &run, nil
}

func scanEntry(row pgx.Row) (domain.ReconciliationEntry, error) {
	var (
		e                       domain.ReconciliationEntry
		status, currency        string
		sysQty, sysValue        *string
		srcQty, srcValue        *string
		qtyDiff, discrepancyPct string
	)

	err := row.Scan(&e.Symbol, &status, &sysQty, &sysValue, &srcQty, &srcValue, &currency, &qtyDiff, &discrepancyPct)
	if err != nil {
		return domain.ReconciliationEntry{}, err
	}

	e.Status = domain.ReconciliationStatus(status)

	if e.System, err = snapshotFromColumns(e.Symbol, sysQty, sysValue, currency); err != nil {
		return domain.ReconciliationEntry{}, err
	}

	if e.Source, err = snapshotFromColumns(e.Symbol, srcQty, srcValue, currency); err != nil {
		return domain.ReconciliationEntry{}, err
	}

	if e.QuantityDiff, err = parseDecimal("quantity_diff", qtyDiff); err != nil {
		return domain.ReconciliationEntry{}, err
	}

	if e.DiscrepancyPercent, err = parseDecimal("discrepancy_percent", discrepancyPct); err != nil {
		return domain.ReconciliationEntry{}, err
	}

	return e, nil
}

// snapshotColumns maps a missing side to NULL columns.
func snapshotColumns(p *domain.SnapshotPosition) (qty, value pgtype.Numeric) {
	if p == nil {
		return pgtype.Numeric{}, pgtype.Numeric{}
	}
	return decimalToNumeric(p.Quantity), decimalToNumeric(p.Value.Amount())
}

func snapshotFromColumns(symbol string, qty, value *string, currency string) (*domain.SnapshotPosition, error) {
	if qty == nil || value == nil {
		return nil, nil
	}

	q, err := parseDecimal("quantity", *qty)
	if err != nil {
		return nil, err
	}

	v, err := parseMoney("value", *value, currency)
	if err != nil {
		return nil, err
	}

	return &domain.SnapshotPosition{Symbol: symbol, Quantity: q, Value: v}, nil
}

func entryCurrency(e domain.ReconciliationEntry) string {
	if e.System != nil {
		return e.System.Value.Currency()
	}
	if e.Source != nil {
		return e.Source.Value.Currency()
	}
	return ""
}
