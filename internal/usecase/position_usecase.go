package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/infrastructure/metrics"
)

// PositionReport is a position with its valuation and annualised return.
// A missing price or an unsolvable XIRR is reported in the matching error
// field instead of failing the whole report.
type PositionReport struct {
	Instrument     domain.Instrument
	Position       domain.Position
	Valuation      *domain.Valuation
	ValuationError error
	XIRR           *domain.XIRRResult
	XIRRError      error
	AsOf           time.Time

	transactions []domain.Transaction
}

// PortfolioReport rolls every open position up into one currency.
type PortfolioReport struct {
	Currency   string
	Positions  []*PositionReport
	Total      *domain.Valuation
	TotalError error
	XIRR       *domain.XIRRResult
	XIRRError  error
	AsOf       time.Time
}

// PositionUseCaseConfig tunes position reporting.
type PositionUseCaseConfig struct {
	XIRR        domain.XIRROptions
	Concurrency int
	// BaseCurrency is the portfolio currency used when a request names none.
	BaseCurrency string
}

// PositionUseCase values positions and computes their returns.
type PositionUseCase struct {
	instrumentRepo  InstrumentRepository
	holdingRepo     HoldingRepository
	transactionRepo TransactionRepository
	prices          PriceSource
	statements      StatementSource
	clock           Clock
	cfg             PositionUseCaseConfig
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewPositionUseCase creates a new PositionUseCase.
func NewPositionUseCase(
	instrumentRepo InstrumentRepository,
	holdingRepo HoldingRepository,
	transactionRepo TransactionRepository,
	prices PriceSource,
	statements StatementSource,
	clock Clock,
	cfg PositionUseCaseConfig,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *PositionUseCase {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultPortfolioConcurrency
	}

	return &PositionUseCase{
		instrumentRepo:  instrumentRepo,
		holdingRepo:     holdingRepo,
		transactionRepo: transactionRepo,
		prices:          prices,
		statements:      statements,
		clock:           clock,
		cfg:             cfg,
		metrics:         metrics,
		logger:          logger,
	}
}

// Symbols lists the instruments that currently have holdings.
func (uc *PositionUseCase) Symbols(ctx context.Context) ([]string, error) {
	return uc.holdingRepo.ListSymbols(ctx)
}

// GetPosition aggregates, values and computes the XIRR of one instrument.
func (uc *PositionUseCase) GetPosition(ctx context.Context, symbol string) (*PositionReport, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	return uc.report(ctx, domain.NormalizeSymbol(symbol), uc.clock.Now())
}

// GetPortfolio reports every open position and their total in currency.
// An empty currency falls back to the configured base currency, then to the
// currency of the positions themselves; positions
// quoted in different currencies cannot be summed.
func (uc *PositionUseCase) GetPortfolio(ctx context.Context, currency string) (*PortfolioReport, error) {
	if currency == "" {
		currency = uc.cfg.BaseCurrency
	}
	if currency != "" {
		if err := domain.ValidateCurrency(currency); err != nil {
			return nil, err
		}
		currency = domain.NormalizeCurrency(currency)
	}

	symbols, err := uc.holdingRepo.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}

	asOf := uc.clock.Now()
	reports := make([]*PositionReport, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Concurrency)

	for i, symbol := range symbols {
		g.Go(func() error {
			report, err := uc.report(gctx, symbol, asOf)
			if err != nil {
				return fmt.Errorf("%s: %w", symbol, err)
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range reports {
		if currency == "" {
			currency = r.Instrument.Currency
		}
		if r.Instrument.Currency != currency {
			return nil, fmt.Errorf("%w: %s is quoted in %s, portfolio in %s",
				domain.ErrCurrencyMismatch, r.Instrument.Symbol, r.Instrument.Currency, currency)
		}
	}

	portfolio := &PortfolioReport{
		Currency:  currency,
		Positions: reports,
		AsOf:      asOf,
	}

	if currency == "" {
		portfolio.TotalError = domain.ErrPositionNotFound
		portfolio.XIRRError = domain.ErrNoTransactions
		return portfolio, nil
	}

	valuations := make([]domain.Valuation, 0, len(reports))
	byPosition := make(map[string][]domain.Transaction, len(reports))

	for _, r := range reports {
		if r.Valuation == nil {
			portfolio.TotalError = fmt.Errorf("%s: %w", r.Instrument.Symbol, r.ValuationError)
			break
		}
		valuations = append(valuations, *r.Valuation)
		byPosition[r.Instrument.Symbol] = r.transactions
	}

	if portfolio.TotalError == nil {
		total, err := domain.SumValuations(currency, valuations)
		if err != nil {
			return nil, err
		}
		portfolio.Total = &total
	}

	if portfolio.Total == nil {
		portfolio.XIRRError = portfolio.TotalError
		return portfolio, nil
	}

	flows, err := domain.PortfolioCashFlows(byPosition, portfolio.Total.CurrentValue, asOf)
	if err != nil {
		portfolio.XIRRError = err
	} else {
		portfolio.XIRR, portfolio.XIRRError = uc.solve("portfolio", "", flows, asOf)
	}

	return portfolio, nil
}

func (uc *PositionUseCase) report(ctx context.Context, symbol string, asOf time.Time) (*PositionReport, error) {
	instrument, err := uc.instrumentRepo.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}

	holdings, err := uc.holdingRepo.ListBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrPositionNotFound, symbol)
	}

	position, err := domain.NewPosition(symbol, holdings)
	if err != nil {
		return nil, err
	}

	report := &PositionReport{
		Instrument: *instrument,
		Position:   position,
		AsOf:       asOf,
	}

	valuation, err := uc.value(ctx, instrument, position)
	switch {
	case err == nil:
		report.Valuation = &valuation
	case errors.Is(err, domain.ErrDataUnavailable):
		report.ValuationError = err
		report.XIRRError = err
		uc.logger.Warn().Err(err).Str("symbol", symbol).Msg("position cannot be valued")
		return report, nil
	default:
		return nil, err
	}

	report.transactions, err = uc.transactionRepo.ListBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	flows, err := domain.PositionCashFlows(report.transactions, valuation.CurrentValue, asOf)
	if err != nil {
		report.XIRRError = err
		return report, nil
	}

	report.XIRR, report.XIRRError = uc.solve("position", symbol, flows, asOf)

	return report, nil
}

func (uc *PositionUseCase) value(ctx context.Context, instrument *domain.Instrument, position domain.Position) (domain.Valuation, error) {
	start := time.Now()

	var (
		valuation domain.Valuation
		err       error
	)

	switch instrument.PricingModel {
	case domain.PricingStatement:
		valuation, err = uc.valueStatement(ctx, instrument)
	default:
		var price domain.Money
		if price, err = uc.prices.LatestPrice(ctx, instrument.Symbol); err == nil {
			valuation, err = domain.ValueUnitPriced(position, price)
		}
	}

	if uc.metrics != nil {
		result := "ok"
		if err != nil {
			result = "unavailable"
		}
		uc.metrics.Valuations.WithLabelValues(string(instrument.PricingModel), result).Inc()
		uc.metrics.ValuationDuration.Observe(time.Since(start).Seconds())
	}

	return valuation, err
}

func (uc *PositionUseCase) valueStatement(ctx context.Context, instrument *domain.Instrument) (domain.Valuation, error) {
	statement, err := uc.statements.LatestStatement(ctx, instrument.Symbol)
	if err != nil {
		return domain.Valuation{}, err
	}

	if statement.CurrentValue.Currency() != instrument.Currency {
		return domain.Valuation{}, fmt.Errorf("%w: statement for %s is in %s",
			domain.ErrCurrencyMismatch, instrument.Symbol, statement.CurrentValue.Currency())
	}

	return domain.ValueStatement(statement.Invested, statement.CurrentValue)
}

// solve runs the XIRR solver. Non-convergence is logged and returned as the
// report's XIRR error, never as a request failure.
func (uc *PositionUseCase) solve(scope, symbol string, flows []domain.CashFlow, asOf time.Time) (*domain.XIRRResult, error) {
	result, err := domain.SolveXIRR(flows, asOf, uc.cfg.XIRR)

	if uc.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "not_computable"
		}
		uc.metrics.XIRRResults.WithLabelValues(scope, outcome).Inc()
		if err == nil {
			uc.metrics.XIRRIterations.Observe(float64(result.Iterations))
		}
	}

	if err != nil {
		uc.logger.Warn().
			Err(err).
			Str("scope", scope).
			Str("symbol", symbol).
			Int("flows", len(flows)).
			Msg("xirr not computable")
		return nil, err
	}

	return &result, nil
}
