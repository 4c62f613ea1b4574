package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/infrastructure/metrics"
)

// HoldingUseCase maintains per-account holdings and the purchase history.
type HoldingUseCase struct {
	txManager       TransactionManager
	instrumentRepo  InstrumentRepository
	holdingRepo     HoldingRepository
	transactionRepo TransactionRepository
	idGen           IDGenerator
	retrier         Retrier
	clock           Clock
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewHoldingUseCase creates a new HoldingUseCase.
func NewHoldingUseCase(
	txManager TransactionManager,
	instrumentRepo InstrumentRepository,
	holdingRepo HoldingRepository,
	transactionRepo TransactionRepository,
	idGen IDGenerator,
	retrier Retrier,
	clock Clock,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *HoldingUseCase {
	return &HoldingUseCase{
		txManager:       txManager,
		instrumentRepo:  instrumentRepo,
		holdingRepo:     holdingRepo,
		transactionRepo: transactionRepo,
		idGen:           idGen,
		retrier:         retrier,
		clock:           clock,
		metrics:         metrics,
		logger:          logger,
	}
}

// UpsertHoldingInput represents input for setting one account's holding.
type UpsertHoldingInput struct {
	Symbol    string
	AccountID string
	Quantity  decimal.Decimal
	CostBasis decimal.Decimal
}

// UpsertHolding replaces the account's holding in the instrument and returns
// the re-aggregated position.
func (uc *HoldingUseCase) UpsertHolding(ctx context.Context, input UpsertHoldingInput) (*domain.Position, error) {
	instrument, err := uc.instrument(ctx, input.Symbol)
	if err != nil {
		return nil, err
	}

	qty, err := domain.NewQuantity(input.Quantity)
	if err != nil {
		return nil, err
	}

	cost, err := domain.NewMoney(input.CostBasis, instrument.Currency)
	if err != nil {
		return nil, err
	}

	holding := domain.Holding{
		AccountID: input.AccountID,
		Symbol:    instrument.Symbol,
		Quantity:  qty,
		CostBasis: cost,
		UpdatedAt: uc.clock.Now(),
	}

	if err := holding.Validate(); err != nil {
		return nil, err
	}

	var position domain.Position

	err = uc.retrier.Retry(ctx, func() error {
		var err error
		position, err = uc.writeHolding(ctx, holding)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.recordWrite("upsert")

	return &position, nil
}

// RemoveHolding deletes one account's holding. Removing the last holding closes the position.
func (uc *HoldingUseCase) RemoveHolding(ctx context.Context, symbol, accountID string) error {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return err
	}

	if err := domain.ValidateAccountID(accountID); err != nil {
		return err
	}

	symbol = domain.NormalizeSymbol(symbol)

	err := uc.retrier.Retry(ctx, func() error {
		return uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
			holdings, err := uc.holdingRepo.ListBySymbolForUpdate(ctx, tx, symbol)
			if err != nil {
				return err
			}

			if len(holdings) == 0 {
				return fmt.Errorf("%w: %s", domain.ErrHoldingNotFound, accountID)
			}

			position, err := domain.NewPosition(symbol, holdings)
			if err != nil {
				return err
			}

			if _, _, err := position.WithoutHolding(accountID); err != nil {
				return err
			}

			return uc.holdingRepo.Delete(ctx, tx, symbol, accountID)
		})
	})
	if err != nil {
		return err
	}

	uc.recordWrite("delete")

	return nil
}

// ListHoldings lists the holdings of an instrument ordered by account.
func (uc *HoldingUseCase) ListHoldings(ctx context.Context, symbol string) ([]domain.Holding, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	return uc.holdingRepo.ListBySymbol(ctx, domain.NormalizeSymbol(symbol))
}

// RecordBuyInput represents a purchase of an instrument.
type RecordBuyInput struct {
	Symbol    string
	AccountID string
	Date      time.Time
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	// ApplyToHolding folds the purchase into the account's holding.
	ApplyToHolding bool
}

// RecordBuy stores a purchase in the transaction history used by XIRR.
func (uc *HoldingUseCase) RecordBuy(ctx context.Context, input RecordBuyInput) (*domain.Transaction, error) {
	instrument, err := uc.instrument(ctx, input.Symbol)
	if err != nil {
		return nil, err
	}

	qty, err := domain.NewQuantity(input.Quantity)
	if err != nil {
		return nil, err
	}

	price, err := domain.NewMoney(input.Price, instrument.Currency)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()

	transaction := &domain.Transaction{
		ID:        uc.idGen.Generate(),
		Symbol:    instrument.Symbol,
		AccountID: input.AccountID,
		Date:      domain.Day(input.Date),
		Quantity:  qty,
		Price:     price,
		CreatedAt: now,
	}

	if err := transaction.Validate(); err != nil {
		return nil, err
	}

	if transaction.Date.After(domain.Day(now)) {
		return nil, fmt.Errorf("%w: %s is in the future", domain.ErrInvalidDate, transaction.Date.Format(time.DateOnly))
	}

	err = uc.retrier.Retry(ctx, func() error {
		return uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
			if err := uc.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return err
			}

			if !input.ApplyToHolding {
				return nil
			}

			return uc.applyPurchase(ctx, tx, transaction, now)
		})
	})
	if err != nil {
		return nil, err
	}

	uc.recordWrite("buy")

	uc.logger.Info().
		Str("transaction_id", transaction.ID).
		Str("symbol", transaction.Symbol).
		Str("account_id", transaction.AccountID).
		Str("quantity", transaction.Quantity.String()).
		Bool("applied", input.ApplyToHolding).
		Msg("purchase recorded")

	return transaction, nil
}

func (uc *HoldingUseCase) applyPurchase(ctx context.Context, tx Transaction, t *domain.Transaction, now time.Time) error {
	holdings, err := uc.holdingRepo.ListBySymbolForUpdate(ctx, tx, t.Symbol)
	if err != nil {
		return err
	}

	updated := domain.Holding{
		AccountID: t.AccountID,
		Symbol:    t.Symbol,
		Quantity:  t.Quantity,
		CostBasis: t.Price,
		UpdatedAt: now,
	}

	if len(holdings) > 0 {
		position, err := domain.NewPosition(t.Symbol, holdings)
		if err != nil {
			return err
		}

		if current, ok := position.Holding(t.AccountID); ok {
			if updated, err = current.WithPurchase(t.Quantity, t.Price, now); err != nil {
				return err
			}
		}

		if _, err := position.WithHolding(updated); err != nil {
			return err
		}
	}

	return uc.holdingRepo.Upsert(ctx, tx, updated)
}

// writeHolding stores holding after checking that the instrument's position
// still aggregates with it in place.
func (uc *HoldingUseCase) writeHolding(ctx context.Context, holding domain.Holding) (domain.Position, error) {
	var position domain.Position

	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		holdings, err := uc.holdingRepo.ListBySymbolForUpdate(ctx, tx, holding.Symbol)
		if err != nil {
			return err
		}

		if len(holdings) == 0 {
			position, err = domain.NewPosition(holding.Symbol, []domain.Holding{holding})
		} else {
			current, perr := domain.NewPosition(holding.Symbol, holdings)
			if perr != nil {
				return perr
			}
			position, err = current.WithHolding(holding)
		}
		if err != nil {
			return err
		}

		return uc.holdingRepo.Upsert(ctx, tx, holding)
	})

	return position, err
}

// inTx runs fn in a transaction bounded by DefaultTransactionTimeout. fn must use
// the context it is given so lock waits are bounded too.
func (uc *HoldingUseCase) inTx(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}

func (uc *HoldingUseCase) instrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	return uc.instrumentRepo.Get(ctx, domain.NormalizeSymbol(symbol))
}

func (uc *HoldingUseCase) recordWrite(operation string) {
	if uc.metrics != nil {
		uc.metrics.HoldingWrites.WithLabelValues(operation).Inc()
	}
}
