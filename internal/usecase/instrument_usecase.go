package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/goportfolio/internal/domain"
)

// InstrumentUseCase manages instrument definitions and their market data.
type InstrumentUseCase struct {
	instrumentRepo InstrumentRepository
	priceRepo      PriceRepository
	statementRepo  StatementRepository
	clock          Clock
	logger         zerolog.Logger
}

// NewInstrumentUseCase creates a new InstrumentUseCase.
func NewInstrumentUseCase(
	instrumentRepo InstrumentRepository,
	priceRepo PriceRepository,
	statementRepo StatementRepository,
	clock Clock,
	logger zerolog.Logger,
) *InstrumentUseCase {
	return &InstrumentUseCase{
		instrumentRepo: instrumentRepo,
		priceRepo:      priceRepo,
		statementRepo:  statementRepo,
		clock:          clock,
		logger:         logger,
	}
}

// UpsertInstrumentInput represents input for defining an instrument.
type UpsertInstrumentInput struct {
	Symbol       string
	Name         string
	Currency     string
	PricingModel domain.PricingModel
}

// UpsertInstrument creates or redefines an instrument.
func (uc *InstrumentUseCase) UpsertInstrument(ctx context.Context, input UpsertInstrumentInput) (*domain.Instrument, error) {
	now := uc.clock.Now()

	instrument := &domain.Instrument{
		Symbol:       domain.NormalizeSymbol(input.Symbol),
		Name:         input.Name,
		Currency:     domain.NormalizeCurrency(input.Currency),
		PricingModel: input.PricingModel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := instrument.Validate(); err != nil {
		return nil, err
	}

	existing, err := uc.instrumentRepo.Get(ctx, instrument.Symbol)
	switch {
	case err == nil:
		// Holdings and prices are stored in the instrument currency.
		if existing.Currency != instrument.Currency {
			return nil, fmt.Errorf("%w: %s is quoted in %s", domain.ErrCurrencyMismatch, existing.Symbol, existing.Currency)
		}
		instrument.CreatedAt = existing.CreatedAt
	case errors.Is(err, domain.ErrInstrumentNotFound):
	default:
		return nil, err
	}

	if err := uc.instrumentRepo.Upsert(ctx, instrument); err != nil {
		return nil, err
	}

	return instrument, nil
}

// GetInstrument retrieves an instrument by symbol.
func (uc *InstrumentUseCase) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	return uc.instrumentRepo.Get(ctx, domain.NormalizeSymbol(symbol))
}

// ListInstruments lists instruments ordered by symbol.
func (uc *InstrumentUseCase) ListInstruments(ctx context.Context, limit, offset int) ([]*domain.Instrument, error) {
	limit, offset = domain.ValidatePagination(limit, offset)

	return uc.instrumentRepo.List(ctx, limit, offset)
}

// SetPriceInput represents a price observation for a unit-priced instrument.
type SetPriceInput struct {
	Symbol string
	Price  decimal.Decimal
	At     *time.Time
}

// SetPrice records the latest unit price of a unit-priced instrument.
func (uc *InstrumentUseCase) SetPrice(ctx context.Context, input SetPriceInput) (domain.Money, error) {
	instrument, err := uc.GetInstrument(ctx, input.Symbol)
	if err != nil {
		return domain.Money{}, err
	}

	if instrument.PricingModel != domain.PricingUnit {
		return domain.Money{}, fmt.Errorf("%w: %s is %s", domain.ErrWrongPricingModel, instrument.Symbol, instrument.PricingModel)
	}

	price, err := domain.NewMoney(input.Price, instrument.Currency)
	if err != nil {
		return domain.Money{}, err
	}

	if !price.IsPositive() {
		return domain.Money{}, fmt.Errorf("%w: price must be positive", domain.ErrInvalidAmount)
	}

	at := uc.clock.Now()
	if input.At != nil {
		at = input.At.UTC()
	}

	if err := uc.priceRepo.SavePrice(ctx, instrument.Symbol, price, at); err != nil {
		return domain.Money{}, err
	}

	uc.logger.Debug().
		Str("symbol", instrument.Symbol).
		Str("price", price.String()).
		Msg("price recorded")

	return price, nil
}

// SetStatementInput represents a statement for a statement-valued instrument.
type SetStatementInput struct {
	Symbol       string
	Invested     decimal.Decimal
	CurrentValue decimal.Decimal
	AsOf         *time.Time
}

// SetStatement records the latest statement of a statement-valued instrument.
func (uc *InstrumentUseCase) SetStatement(ctx context.Context, input SetStatementInput) (*domain.StatementValue, error) {
	instrument, err := uc.GetInstrument(ctx, input.Symbol)
	if err != nil {
		return nil, err
	}

	if instrument.PricingModel != domain.PricingStatement {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrWrongPricingModel, instrument.Symbol, instrument.PricingModel)
	}

	invested, err := domain.NewMoney(input.Invested, instrument.Currency)
	if err != nil {
		return nil, err
	}

	current, err := domain.NewMoney(input.CurrentValue, instrument.Currency)
	if err != nil {
		return nil, err
	}

	// Rejects negative amounts the same way valuation would.
	if _, err := domain.ValueStatement(invested, current); err != nil {
		return nil, err
	}

	asOf := uc.clock.Now()
	if input.AsOf != nil {
		asOf = input.AsOf.UTC()
	}

	statement := domain.StatementValue{
		Symbol:       instrument.Symbol,
		Invested:     invested,
		CurrentValue: current,
		AsOf:         asOf,
	}

	if err := uc.statementRepo.SaveStatement(ctx, statement); err != nil {
		return nil, err
	}

	return &statement, nil
}
