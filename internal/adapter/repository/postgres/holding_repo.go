package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// HoldingRepository implements usecase.HoldingRepository.
type HoldingRepository struct {
	db Querier
}

// NewHoldingRepository creates a new HoldingRepository.
func NewHoldingRepository(db Querier) *HoldingRepository {
	return &HoldingRepository{db: db}
}

const selectHoldings = `
	SELECT account_id, symbol, quantity::text, cost_basis::text, currency, updated_at
	FROM holdings
	WHERE symbol = $1
	ORDER BY account_id`

// ListBySymbol lists the holdings of one instrument.
func (r *HoldingRepository) ListBySymbol(ctx context.Context, symbol string) ([]domain.Holding, error) {
	return r.list(ctx, r.db, selectHoldings, symbol)
}

// ListBySymbolForUpdate locks the instrument row, then reads its holdings.
// Locking the instrument serializes writers even while the symbol has no holdings yet.
func (r *HoldingRepository) ListBySymbolForUpdate(ctx context.Context, tx usecase.Transaction, symbol string) ([]domain.Holding, error) {
	db := inTx(tx, r.db)

	var locked string
	err := db.QueryRow(ctx, `SELECT symbol FROM instruments WHERE symbol = $1 FOR UPDATE`, symbol).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, symbol)
		}
		return nil, err
	}

	return r.list(ctx, db, selectHoldings+` FOR UPDATE`, symbol)
}

// ListSymbols lists the instruments with at least one holding.
func (r *HoldingRepository) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT symbol FROM holdings ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	symbols := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

// Upsert stores the account's holding, replacing any previous one.
func (r *HoldingRepository) Upsert(ctx context.Context, tx usecase.Transaction, h domain.Holding) error {
	_, err := inTx(tx, r.db).Exec(ctx, `
		INSERT INTO holdings (symbol, account_id, quantity, cost_basis, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, account_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    cost_basis = EXCLUDED.cost_basis,
		    currency = EXCLUDED.currency,
		    updated_at = EXCLUDED.updated_at
	`,
		h.Symbol,
		h.AccountID,
		decimalToNumeric(h.Quantity.Decimal()),
		decimalToNumeric(h.CostBasis.Amount()),
		h.CostBasis.Currency(),
		timeToPgTimestamptz(h.UpdatedAt),
	)

	return err
}

// Delete removes the account's holding.
func (r *HoldingRepository) Delete(ctx context.Context, tx usecase.Transaction, symbol, accountID string) error {
	tag, err := inTx(tx, r.db).Exec(ctx,
		`DELETE FROM holdings WHERE symbol = $1 AND account_id = $2`,
		symbol, accountID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrHoldingNotFound, symbol, accountID)
	}

	return nil
}

func (r *HoldingRepository) list(ctx context.Context, db Querier, query, symbol string) ([]domain.Holding, error) {
	rows, err := db.Query(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holdings := make([]domain.Holding, 0)
	for rows.Next() {
		var (
			h                   domain.Holding
			qty, cost, currency string
		)

		if err := rows.Scan(&h.AccountID, &h.Symbol, &qty, &cost, &currency, &h.UpdatedAt); err != nil {
			return nil, err
		}

		if h.Quantity, err = parseQuantity("quantity", qty); err != nil {
			return nil, err
		}

		if h.CostBasis, err = parseMoney("cost_basis", cost, currency); err != nil {
			return nil, err
		}

		holdings = append(holdings, h)
	}

	return holdings, rows.Err()
}
