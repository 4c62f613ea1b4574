package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/goportfolio/internal/domain"
)

// InstrumentRepository implements usecase.InstrumentRepository.
type InstrumentRepository struct {
	db Querier
}

// NewInstrumentRepository creates a new InstrumentRepository.
func NewInstrumentRepository(db Querier) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

const instrumentColumns = `symbol, name, currency, pricing_model, created_at, updated_at`

// Get retrieves an instrument by symbol.
func (r *InstrumentRepository) Get(ctx context.Context, symbol string) (*domain.Instrument, error) {
	row := r.db.QueryRow(ctx, `SELECT `+instrumentColumns+` FROM instruments WHERE symbol = $1`, symbol)

	instrument, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, symbol)
		}
		return nil, err
	}

	return instrument, nil
}

// Upsert creates or redefines an instrument.
func (r *InstrumentRepository) Upsert(ctx context.Context, instrument *domain.Instrument) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO instruments (symbol, name, currency, pricing_model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE
		SET name = EXCLUDED.name,
		    pricing_model = EXCLUDED.pricing_model,
		    updated_at = EXCLUDED.updated_at
	`,
		instrument.Symbol,
		instrument.Name,
		instrument.Currency,
		string(instrument.PricingModel),
		timeToPgTimestamptz(instrument.CreatedAt),
		timeToPgTimestamptz(instrument.UpdatedAt),
	)

	return err
}

// List lists instruments ordered by symbol.
func (r *InstrumentRepository) List(ctx context.Context, limit, offset int) ([]*domain.Instrument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+instrumentColumns+` FROM instruments ORDER BY symbol LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	instruments := make([]*domain.Instrument, 0)
	for rows.Next() {
		instrument, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, instrument)
	}

	return instruments, rows.Err()
}

func scanInstrument(row pgx.Row) (*domain.Instrument, error) {
	var (
		i     domain.Instrument
		model string
	)

	if err := row.Scan(&i.Symbol, &i.Name, &i.Currency, &model, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}

	i.PricingModel = domain.PricingModel(model)

	return &i, nil
}
