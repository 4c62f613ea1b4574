package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// SnapshotRepository implements usecase.SnapshotRepository.
type SnapshotRepository struct {
	db Querier
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db Querier) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save stores a snapshot and its positions.
func (r *SnapshotRepository) Save(ctx context.Context, tx usecase.Transaction, s *domain.SourceSnapshot) error {
	db := inTx(tx, r.db)

	_, err := db.Exec(ctx,
		`INSERT INTO source_snapshots (id, source, imported_at) VALUES ($1, $2, $3)`,
		s.ID, s.Source, timeToPgTimestamptz(s.ImportedAt),
	)
	if err != nil {
		return err
	}

	for _, p := range s.Positions {
		_, err := db.Exec(ctx, `
			INSERT INTO source_snapshot_positions (snapshot_id, symbol, quantity, value, currency)
			VALUES ($1, $2, $3, $4, $5)
		`,
			s.ID,
			p.Symbol,
			decimalToNumeric(p.Quantity),
			decimalToNumeric(p.Value.Amount()),
			p.Value.Currency(),
		)
		if err != nil {
			return fmt.Errorf("snapshot position %s: %w", p.Symbol, err)
		}
	}

	return nil
}

// Latest returns the most recently imported snapshot.
func (r *SnapshotRepository) Latest(ctx context.Context) (*domain.SourceSnapshot, error) {
	var s domain.SourceSnapshot

	err := r.db.QueryRow(ctx, `
		SELECT id, source, imported_at
		FROM source_snapshots
		ORDER BY imported_at DESC, id DESC
		LIMIT 1
	`).Scan(&s.ID, &s.Source, &s.ImportedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT symbol, quantity::text, value::text, currency
		FROM source_snapshot_positions
		WHERE snapshot_id = $1
		ORDER BY symbol
	`, s.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s.Positions = make([]domain.SnapshotPosition, 0)
	for rows.Next() {
		var (
			p                    domain.SnapshotPosition
			qty, value, currency string
		)

		if err := rows.Scan(&p.Symbol, &qty, &value, &currency); err != nil {
			return nil, err
		}

		if p.Quantity, err = parseDecimal("quantity", qty); err != nil {
			return nil, err
		}

		if p.Value, err = parseMoney("value", value, currency); err != nil {
			return nil, err
		}

		s.Positions = append(s.Positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &s, nil
}
