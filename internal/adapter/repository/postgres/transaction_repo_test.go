package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goportfolio/internal/domain"
)

func TestTransactionRepositoryCreate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO transactions").
		WithArgs("tx-1", "CDR", "ike", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "PLN", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := NewTransactionRepository(pool).Create(context.Background(), tx, &domain.Transaction{
		ID:        "tx-1",
		Symbol:    "CDR",
		AccountID: "ike",
		Date:      repoNow,
		Quantity:  domain.MustQuantity("3"),
		Price:     domain.MustMoney("120.50", "PLN"),
		CreatedAt: repoNow,
	})
	require.NoError(t, err)
	assertExpectations(t, pool)
}

func TestTransactionRepositoryListBySymbol(t *testing.T) {
	pool := newMockPool(t)
	tradeDate := time.Date(2023, 5, 4, 0, 0, 0, 0, time.UTC)

	pool.ExpectQuery("FROM transactions").
		WithArgs("CDR").
		WillReturnRows(pool.NewRows([]string{"id", "symbol", "account_id", "trade_date", "quantity", "price", "currency", "created_at"}).
			AddRow("tx-1", "CDR", "ike", tradeDate, "3.00000000", "120.5000", "PLN", repoNow))

	transactions, err := NewTransactionRepository(pool).ListBySymbol(context.Background(), "CDR")
	require.NoError(t, err)

	require.Len(t, transactions, 1)
	assert.Equal(t, tradeDate, transactions[0].Date)
	assert.True(t, transactions[0].Quantity.Equal(domain.MustQuantity("3")))
	assert.True(t, transactions[0].Price.Equal(domain.MustMoney("120.5", "PLN")))
	assertExpectations(t, pool)
}
