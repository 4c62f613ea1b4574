package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
	"github.com/iho/goportfolio/internal/usecase/mocks"
)

func TestPositionUseCase_GetPositionValuesUnitPriced(t *testing.T) {
	f := newFixture(t, unitInstrument("CDR", "PLN"))
	f.holdings = mocks.NewInMemoryHoldingRepository(
		holding("ike", "CDR", "50", "600", "PLN"),
		holding("brokerage", "CDR", "30", "620", "PLN"),
	)
	require.NoError(t, f.prices.SavePrice(context.Background(), "CDR", domain.MustMoney("708.75", "PLN"), now))

	report, err := f.positionUseCase().GetPosition(context.Background(), "cdr")
	require.NoError(t, err)

	require.NotNil(t, report.Valuation)
	assert.Equal(t, "48600.0000 PLN", report.Valuation.Invested.String())
	assert.Equal(t, "56700.0000 PLN", report.Valuation.CurrentValue.String())
	assert.Equal(t, "8100.0000 PLN", report.Valuation.ProfitLoss.String())
	assert.Equal(t, "16.67", report.Valuation.DisplayPercent().StringFixed(2))

	assert.Nil(t, report.XIRR)
	assert.ErrorIs(t, report.XIRRError, domain.ErrNoTransactions)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Valuations.WithLabelValues("unit_priced", "ok")))
}

func TestPositionUseCase_GetPositionComputesXIRR(t *testing.T) {
	f := newFixture(t, unitInstrument("CDR", "PLN"))
	f.holdings = mocks.NewInMemoryHoldingRepository(holding("ike", "CDR", "80", "607.5", "PLN"))
	f.transactions = mocks.NewInMemoryTransactionRepository(
		buy("t1", "ike", "CDR", "2023-01-01", "80", "607.5", "PLN"),
	)
	// 80 × 668.25 = 53460 = 48600 × 1.1 after exactly 365 days
	require.NoError(t, f.prices.SavePrice(context.Background(), "CDR", domain.MustMoney("668.25", "PLN"), now))

	report, err := f.positionUseCase().GetPosition(context.Background(), "CDR")
	require.NoError(t, err)

	require.NoError(t, report.XIRRError)
	require.NotNil(t, report.XIRR)
	assert.InDelta(t, 0.10, report.XIRR.Rate, 1e-5)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.XIRRResults.WithLabelValues("position", "ok")))
}

func TestPositionUseCase_GetPositionReportsMissingPriceAsGap(t *testing.T) {
	f := newFixture(t, unitInstrument("CDR", "PLN"))
	f.holdings = mocks.NewInMemoryHoldingRepository(holding("ike", "CDR", "80", "607.5", "PLN"))

	report, err := f.positionUseCase().GetPosition(context.Background(), "CDR")
	require.NoError(t, err)

	assert.Nil(t, report.Valuation)
	assert.ErrorIs(t, report.ValuationError, domain.ErrPriceUnavailable)
	assert.ErrorIs(t, report.ValuationError, domain.ErrDataUnavailable)
	assert.ErrorIs(t, report.XIRRError, domain.ErrPriceUnavailable)
	assert.Equal(t, "80", report.Position.TotalQuantity().String())
}

func TestPositionUseCase_GetPositionStatementValued(t *testing.T) {
	f := newFixture(t, statementInstrument("EDO0134", "PLN"))
	f.holdings = mocks.NewInMemoryHoldingRepository(holding("ike", "EDO0134", "10", "100", "PLN"))
	require.NoError(t, f.statements.SaveStatement(context.Background(), domain.StatementValue{
		Symbol:       "EDO0134",
		Invested:     domain.MustMoney("1000", "PLN"),
		CurrentValue: domain.MustMoney("1100", "PLN"),
		AsOf:         now,
	}))

	report, err := f.positionUseCase().GetPosition(context.Background(), "EDO0134")
	require.NoError(t, err)

	require.NotNil(t, report.Valuation)
	assert.Equal(t, "100.0000 PLN", report.Valuation.ProfitLoss.String())
	assert.Equal(t, "10.00", report.Valuation.DisplayPercent().StringFixed(2))
}

func TestPositionUseCase_GetPositionStatementMissing(t *testing.T) {
	f := newFixture(t, statementInstrument("EDO0134", "PLN"))
	f.holdings = mocks.NewInMemoryHoldingRepository(holding("ike", "EDO0134", "10", "100", "PLN"))

	report, err := f.positionUseCase().GetPosition(context.Background(), "EDO0134")
	require.NoError(t, err)

	assert.ErrorIs(t, report.ValuationError, domain.ErrStatementUnavailable)
}

func TestPositionUseCase_GetPositionErrors(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		expectError error
	}{
		{name: "no holdings", symbol: "CDR", expectError: domain.ErrPositionNotFound},
		{name: "unknown instrument", symbol: "XYZ", expectError: domain.ErrInstrumentNotFound},
		{name: "invalid symbol", symbol: "a b", expectError: domain.ErrInvalidSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, unitInstrument("CDR", "PLN"))

			_, err := f.positionUseCase().GetPosition(context.Background(), tt.symbol)
			require.ErrorIs(t, err, tt.expectError)
		})
	}
}

func TestPositionUseCase_GetPositionPropagatesPriceSourceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	prices := mocks.NewMockPriceSource(ctrl)
	boom := errors.New("price feed timeout")

	prices.EXPECT().LatestPrice(gomock.Any(), "CDR").Return(domain.Money{}, boom)

	f := newFixture(t, unitInstrument("CDR", "PLN"))
	f.holdings = mocks.NewInMemoryHoldingRepository(holding("ike", "CDR", "1", "1", "PLN"))

	uc := usecase.NewPositionUseCase(f.instruments, f.holdings, f.transactions, prices, f.statements, f.clock,
		usecase.PositionUseCaseConfig{}, nil, zerolog.Nop())

	_, err := uc.GetPosition(context.Background(), "CDR")
	assert.ErrorIs(t, err, boom)
}

func TestPositionUseCase_GetPortfolio(t *testing.T) {
	f := newFixture(t, unitInstrument("CDR", "PLN"), unitInstrument("PKO", "PLN"))
	f.holdings = mocks.NewInMemoryHoldingRepository(
		holding("ike", "CDR", "10", "100", "PLN"),
		holding("ike", "PKO", "20", "50", "PLN"),
	)
	f.transactions = mocks.NewInMemoryTransactionRepository(
		buy("t1", "ike", "CDR", "2023-01-01", "10", "100", "PLN"),
		buy("t2", "ike", "PKO", "2023-01-01", "20", "50", "PLN"),
	)
	ctx := context.Background()
	require.NoError(t, f.prices.SavePrice(ctx, "CDR", domain.MustMoney("120", "PLN"), now))
	require.NoError(t, f.prices.SavePrice(ctx, "PKO", domain.MustMoney("40", "PLN"), now))

	portfolio, err := f.positionUseCase().GetPortfolio(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, "PLN", portfolio.Currency)
	require.Len(t, portfolio.Positions, 2)
	assert.Equal(t, "CDR", portfolio.Positions[0].Instrument.Symbol)
	assert.Equal(t, "PKO", portfolio.Positions[1].Instrument.Symbol)

	// 1000 + 1000 invested, 1200 + 800 current
	require.NoError(t, portfolio.TotalError)
	require.NotNil(t, portfolio.Total)
	assert.Equal(t, "2000.0000 PLN", portfolio.Total.Invested.String())
	assert.Equal(t, "2000.0000 PLN", portfolio.Total.CurrentValue.String())
	assert.True(t, portfolio.Total.ProfitLossPercent.IsZero())

	require.NoError(t, portfolio.XIRRError)
	assert.InDelta(t, 0.0, portfolio.XIRR.Rate, 1e-6)
}

func TestPositionUseCase_GetPortfolioGaps(t *testing.T) {
	f := newFixture(t, unitInstrument("CDR", "PLN"), unitInstrument("PKO", "PLN"))
	f.holdings = mocks.NewInMemoryHoldingRepository(
		holding("ike", "CDR", "10", "100", "PLN"),
		holding("ike", "PKO", "20", "50", "PLN"),
	)
	require.NoError(t, f.prices.SavePrice(context.Background(), "CDR", domain.MustMoney("120", "PLN"), now))

	portfolio, err := f.positionUseCase().GetPortfolio(context.Background(), "PLN")
	require.NoError(t, err)

	assert.Nil(t, portfolio.Total)
	assert.ErrorIs(t, portfolio.TotalError, domain.ErrPriceUnavailable)
	assert.ErrorIs(t, portfolio.XIRRError, domain.ErrPriceUnavailable)
	assert.NotNil(t, portfolio.Positions[0].Valuation)
}

func TestPositionUseCase_GetPortfolioCurrencyMismatch(t *testing.T) {
	f := newFixture(t, unitInstrument("CDR", "PLN"), unitInstrument("AAPL", "USD"))
	f.holdings = mocks.NewInMemoryHoldingRepository(
		holding("ike", "CDR", "10", "100", "PLN"),
		holding("ira", "AAPL", "1", "150", "USD"),
	)

	_, err := f.positionUseCase().GetPortfolio(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)

	_, err = f.positionUseCase().GetPortfolio(context.Background(), "EUR")
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)
}

func TestPositionUseCase_GetPortfolioEmpty(t *testing.T) {
	f := newFixture(t)

	portfolio, err := f.positionUseCase().GetPortfolio(context.Background(), "PLN")
	require.NoError(t, err)

	assert.Empty(t, portfolio.Positions)
	require.NotNil(t, portfolio.Total)
	assert.True(t, portfolio.Total.CurrentValue.IsZero())
	assert.ErrorIs(t, portfolio.XIRRError, domain.ErrNoTransactions)
}

func TestPositionUseCase_GetPortfolioPropagatesListFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	holdings := mocks.NewMockHoldingRepository(ctrl)
	boom := errors.New("relation does not exist")

	holdings.EXPECT().ListSymbols(gomock.Any()).Return(nil, boom)

	uc := usecase.NewPositionUseCase(nil, holdings, nil, nil, nil, mocks.FixedClock{At: now},
		usecase.PositionUseCaseConfig{}, nil, zerolog.Nop())

	_, err := uc.GetPortfolio(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}

func TestPositionUseCase_GetPortfolioUsesBaseCurrency(t *testing.T) {
	f := newFixture(t)

	uc := usecase.NewPositionUseCase(f.instruments, f.holdings, f.transactions, f.prices, f.statements, f.clock,
		usecase.PositionUseCaseConfig{BaseCurrency: "pln"}, nil, zerolog.Nop())

	portfolio, err := uc.GetPortfolio(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "PLN", portfolio.Currency)
	require.NotNil(t, portfolio.Total)

	portfolio, err = uc.GetPortfolio(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "EUR", portfolio.Currency)
}
