package postgres

import (
	"context"
	"time"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db Querier
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db Querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create records a purchase.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	_, err := inTx(tx, r.db).Exec(ctx, `
		INSERT INTO transactions (id, symbol, account_id, trade_date, quantity, price, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		t.ID,
		t.Symbol,
		t.AccountID,
		timeToPgDate(t.Date),
		decimalToNumeric(t.Quantity.Decimal()),
		decimalToNumeric(t.Price.Amount()),
		t.Price.Currency(),
		timeToPgTimestamptz(t.CreatedAt),
	)

	return err
}

// ListBySymbol lists an instrument's purchases in trade date order.
func (r *TransactionRepository) ListBySymbol(ctx context.Context, symbol string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, symbol, account_id, trade_date, quantity::text, price::text, currency, created_at
		FROM transactions
		WHERE symbol = $1
		ORDER BY trade_date, id
	`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		var (
			t                    domain.Transaction
			date                 time.Time
			qty, price, currency string
		)

		if err := rows.Scan(&t.ID, &t.Symbol, &t.AccountID, &date, &qty, &price, &currency, &t.CreatedAt); err != nil {
			return nil, err
		}

		t.Date = domain.Day(date)

		if t.Quantity, err = parseQuantity("quantity", qty); err != nil {
			return nil, err
		}

		if t.Price, err = parseMoney("price", price, currency); err != nil {
			return nil, err
		}

		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}
