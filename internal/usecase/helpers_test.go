package usecase_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/infrastructure/metrics"
	"github.com/iho/goportfolio/internal/usecase"
	"github.com/iho/goportfolio/internal/usecase/mocks"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	instruments  *mocks.InMemoryInstrumentRepository
	holdings     *mocks.InMemoryHoldingRepository
	transactions *mocks.InMemoryTransactionRepository
	prices       *mocks.InMemoryPriceRepository
	statements   *mocks.InMemoryStatementRepository
	snapshots    *mocks.InMemorySnapshotRepository
	runs         *mocks.InMemoryReconciliationRepository
	txManager    *mocks.StubTransactionManager
	idGen        *mocks.SequentialIDGenerator
	clock        mocks.FixedClock
	metrics      *metrics.Metrics
}

func newFixture(t *testing.T, instruments ...domain.Instrument) *fixture {
	t.Helper()

	return &fixture{
		instruments:  mocks.NewInMemoryInstrumentRepository(instruments...),
		holdings:     mocks.NewInMemoryHoldingRepository(),
		transactions: mocks.NewInMemoryTransactionRepository(),
		prices:       mocks.NewInMemoryPriceRepository(),
		statements:   mocks.NewInMemoryStatementRepository(),
		snapshots:    mocks.NewInMemorySnapshotRepository(),
		runs:         mocks.NewInMemoryReconciliationRepository(),
		txManager:    mocks.NewStubTransactionManager(),
		idGen:        mocks.NewSequentialIDGenerator(),
		clock:        mocks.FixedClock{At: now},
		metrics:      metrics.New(prometheus.NewRegistry()),
	}
}

func (f *fixture) instrumentUseCase() *usecase.InstrumentUseCase {
	return usecase.NewInstrumentUseCase(f.instruments, f.prices, f.statements, f.clock, zerolog.Nop())
}

func (f *fixture) holdingUseCase() *usecase.HoldingUseCase {
	return usecase.NewHoldingUseCase(
		f.txManager, f.instruments, f.holdings, f.transactions,
		f.idGen, mocks.PassthroughRetrier{}, f.clock, f.metrics, zerolog.Nop(),
	)
}

func (f *fixture) positionUseCase() *usecase.PositionUseCase {
	return usecase.NewPositionUseCase(
		f.instruments, f.holdings, f.transactions, f.prices, f.statements, f.clock,
		usecase.PositionUseCaseConfig{XIRR: domain.DefaultXIRROptions(), Concurrency: 2},
		f.metrics, zerolog.Nop(),
	)
}

func (f *fixture) reconciliationUseCase(tol domain.Tolerance) *usecase.ReconciliationUseCase {
	return usecase.NewReconciliationUseCase(
		f.txManager, f.positionUseCase(), f.snapshots, f.runs, f.idGen, f.clock, tol, f.metrics, zerolog.Nop(),
	)
}

func unitInstrument(symbol, currency string) domain.Instrument {
	return domain.Instrument{Symbol: symbol, Name: symbol, Currency: currency, PricingModel: domain.PricingUnit}
}

func statementInstrument(symbol, currency string) domain.Instrument {
	return domain.Instrument{Symbol: symbol, Name: symbol, Currency: currency, PricingModel: domain.PricingStatement}
}

func holding(account, symbol, qty, cost, currency string) domain.Holding {
	return domain.Holding{
		AccountID: account,
		Symbol:    symbol,
		Quantity:  domain.MustQuantity(qty),
		CostBasis: domain.MustMoney(cost, currency),
	}
}

func buy(id, account, symbol, day, qty, price, currency string) domain.Transaction {
	date, err := time.Parse(time.DateOnly, day)
	if err != nil {
		panic(err)
	}

	return domain.Transaction{
		ID:        id,
		Symbol:    symbol,
		AccountID: account,
		Date:      date,
		Quantity:  domain.MustQuantity(qty),
		Price:     domain.MustMoney(price, currency),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
