package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/goportfolio/internal/domain"
)

// PriceRepository implements usecase.PriceRepository over the prices table.
type PriceRepository struct {
	db Querier
}

// NewPriceRepository creates a new PriceRepository.
func NewPriceRepository(db Querier) *PriceRepository {
	return &PriceRepository{db: db}
}

// LatestPrice returns the most recent observed price.
func (r *PriceRepository) LatestPrice(ctx context.Context, symbol string) (domain.Money, error) {
	var amount, currency string

	err := r.db.QueryRow(ctx, `
		SELECT price::text, currency
		FROM prices
		WHERE symbol = $1
		ORDER BY observed_at DESC
		LIMIT 1
	`, symbol).Scan(&amount, &currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, symbol)
		}
		return domain.Money{}, err
	}

	return parseMoney("price", amount, currency)
}

// SavePrice records a price observation. A second observation at the same instant replaces the first.
func (r *PriceRepository) SavePrice(ctx context.Context, symbol string, price domain.Money, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO prices (symbol, observed_at, price, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, observed_at) DO UPDATE
		SET price = EXCLUDED.price, currency = EXCLUDED.currency
	`,
		symbol,
		timeToPgTimestamptz(at),
		decimalToNumeric(price.Amount()),
		price.Currency(),
	)

	return err
}

// StatementRepository implements usecase.StatementRepository over the statement_values table.
type StatementRepository struct {
	db Querier
}

// NewStatementRepository creates a new StatementRepository.
func NewStatementRepository(db Querier) *StatementRepository {
	return &StatementRepository{db: db}
}

// LatestStatement returns the most recent statement of an instrument.
func (r *StatementRepository) LatestStatement(ctx context.Context, symbol string) (domain.StatementValue, error) {
	var (
		v                           domain.StatementValue
		invested, current, currency string
	)

	err := r.db.QueryRow(ctx, `
		SELECT symbol, invested::text, current_value::text, currency, as_of
		FROM statement_values
		WHERE symbol = $1
		ORDER BY as_of DESC
		LIMIT 1
	`, symbol).Scan(&v.Symbol, &invested, &current, &currency, &v.AsOf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StatementValue{}, fmt.Errorf("%w: %s", domain.ErrStatementUnavailable, symbol)
		}
		return domain.StatementValue{}, err
	}

	if v.Invested, err = parseMoney("invested", invested, currency); err != nil {
		return domain.StatementValue{}, err
	}

	if v.CurrentValue, err = parseMoney("current_value", current, currency); err != nil {
		return domain.StatementValue{}, err
	}

	return v, nil
}

// SaveStatement records a statement.
func (r *StatementRepository) SaveStatement(ctx context.Context, v domain.StatementValue) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO statement_values (symbol, as_of, invested, current_value, currency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, as_of) DO UPDATE
		SET invested = EXCLUDED.invested,
		    current_value = EXCLUDED.current_value,
		    currency = EXCLUDED.currency
	`,
		v.Symbol,
		timeToPgTimestamptz(v.AsOf),
		decimalToNumeric(v.Invested.Amount()),
		decimalToNumeric(v.CurrentValue.Amount()),
		v.CurrentValue.Currency(),
	)

	return err
}
