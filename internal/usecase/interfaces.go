package usecase

import (
	"context"
	"time"

	"github.com/iho/goportfolio/internal/domain"
)

// InstrumentRepository defines data access for instruments.
type InstrumentRepository interface {
	Get(ctx context.Context, symbol string) (*domain.Instrument, error)
	Upsert(ctx context.Context, instrument *domain.Instrument) error
	List(ctx context.Context, limit, offset int) ([]*domain.Instrument, error)
}

// HoldingRepository defines data access for per-account holdings.
type HoldingRepository interface {
	ListBySymbol(ctx context.Context, symbol string) ([]domain.Holding, error)
	// ListBySymbolForUpdate locks the symbol's holdings for the rest of tx.
	ListBySymbolForUpdate(ctx context.Context, tx Transaction, symbol string) ([]domain.Holding, error)
	ListSymbols(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, tx Transaction, holding domain.Holding) error
	Delete(ctx context.Context, tx Transaction, symbol, accountID string) error
}

// TransactionRepository defines data access for dated buy transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, transaction *domain.Transaction) error
	ListBySymbol(ctx context.Context, symbol string) ([]domain.Transaction, error)
}

// PriceSource provides the latest unit price of an instrument.
// A missing price is reported as domain.ErrPriceUnavailable.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (domain.Money, error)
}

// PriceRepository is a PriceSource that can also record prices.
type PriceRepository interface {
	PriceSource
	SavePrice(ctx context.Context, symbol string, price domain.Money, at time.Time) error
}

// StatementSource provides the latest statement for a statement-valued instrument.
// A missing statement is reported as domain.ErrStatementUnavailable.
type StatementSource interface {
	LatestStatement(ctx context.Context, symbol string) (domain.StatementValue, error)
}

// StatementRepository is a StatementSource that can also record statements.
type StatementRepository interface {
	StatementSource
	SaveStatement(ctx context.Context, value domain.StatementValue) error
}

// SnapshotRepository stores externally sourced position snapshots.
type SnapshotRepository interface {
	Save(ctx context.Context, tx Transaction, snapshot *domain.SourceSnapshot) error
	// Latest returns domain.ErrSnapshotNotFound when nothing was imported yet.
	Latest(ctx context.Context) (*domain.SourceSnapshot, error)
}

// ReconciliationRepository stores reconciliation runs. Runs are never updated.
type ReconciliationRepository interface {
	SaveRun(ctx context.Context, tx Transaction, run *domain.ReconciliationRun) error
	GetRun(ctx context.Context, id string) (*domain.ReconciliationRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.ReconciliationRun, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
