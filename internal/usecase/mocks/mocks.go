package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/usecase"
)

// InMemoryInstrumentRepository is an in-memory InstrumentRepository.
type InMemoryInstrumentRepository struct {
	mu          sync.RWMutex
	instruments map[string]*domain.Instrument

	GetFunc func(ctx context.Context, symbol string) (*domain.Instrument, error)
}

func NewInMemoryInstrumentRepository(instruments ...domain.Instrument) *InMemoryInstrumentRepository {
	r := &InMemoryInstrumentRepository{instruments: make(map[string]*domain.Instrument)}
	for _, i := range instruments {
		r.instruments[i.Symbol] = &i
	}
	return r
}

func (r *InMemoryInstrumentRepository) Get(ctx context.Context, symbol string) (*domain.Instrument, error) {
	if r.GetFunc != nil {
		return r.GetFunc(ctx, symbol)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.instruments[symbol]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, domain.ErrInstrumentNotFound
}

func (r *InMemoryInstrumentRepository) Upsert(_ context.Context, instrument *domain.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *instrument
	r.instruments[instrument.Symbol] = &cp
	return nil
}

func (r *InMemoryInstrumentRepository) List(_ context.Context, limit, offset int) ([]*domain.Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Instrument, 0, len(r.instruments))
	for _, i := range r.instruments {
		cp := *i
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Symbol < out[b].Symbol })
	return page(out, limit, offset), nil
}

// InMemoryHoldingRepository is an in-memory HoldingRepository keyed by symbol and account.
type InMemoryHoldingRepository struct {
	mu       sync.RWMutex
	holdings map[string]map[string]domain.Holding

	UpsertFunc func(ctx context.Context, tx usecase.Transaction, holding domain.Holding) error
}

func NewInMemoryHoldingRepository(holdings ...domain.Holding) *InMemoryHoldingRepository {
	r := &InMemoryHoldingRepository{holdings: make(map[string]map[string]domain.Holding)}
	for _, h := range holdings {
		r.put(h)
	}
	return r
}

func (r *InMemoryHoldingRepository) put(h domain.Holding) {
	if r.holdings[h.Symbol] == nil {
		r.holdings[h.Symbol] = make(map[string]domain.Holding)
	}
	r.holdings[h.Symbol][h.AccountID] = h
}

func (r *InMemoryHoldingRepository) ListBySymbol(_ context.Context, symbol string) ([]domain.Holding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Holding, 0, len(r.holdings[symbol]))
	for _, h := range r.holdings[symbol] {
		out = append(out, h)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].AccountID < out[b].AccountID })
	return out, nil
}

func (r *InMemoryHoldingRepository) ListBySymbolForUpdate(ctx context.Context, _ usecase.Transaction, symbol string) ([]domain.Holding, error) {
	return r.ListBySymbol(ctx, symbol)
}

func (r *InMemoryHoldingRepository) ListSymbols(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.holdings))
	for s, hs := range r.holdings {
		if len(hs) > 0 {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *InMemoryHoldingRepository) Upsert(ctx context.Context, tx usecase.Transaction, holding domain.Holding) error {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, tx, holding)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(holding)
	return nil
}

func (r *InMemoryHoldingRepository) Delete(_ context.Context, _ usecase.Transaction, symbol, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holdings[symbol][accountID]; !ok {
		return domain.ErrHoldingNotFound
	}
	delete(r.holdings[symbol], accountID)
	return nil
}

// InMemoryTransactionRepository is an in-memory TransactionRepository.
type InMemoryTransactionRepository struct {
	mu           sync.RWMutex
	transactions []domain.Transaction
}

func NewInMemoryTransactionRepository(transactions ...domain.Transaction) *InMemoryTransactionRepository {
	return &InMemoryTransactionRepository{transactions: transactions}
}

func (r *InMemoryTransactionRepository) Create(_ context.Context, _ usecase.Transaction, transaction *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions = append(r.transactions, *transaction)
	return nil
}

func (r *InMemoryTransactionRepository) ListBySymbol(_ context.Context, symbol string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.transactions {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out, nil
}

// InMemoryPriceRepository is an in-memory PriceRepository.
type InMemoryPriceRepository struct {
	mu     sync.RWMutex
	prices map[string]domain.Money
}

func NewInMemoryPriceRepository() *InMemoryPriceRepository {
	return &InMemoryPriceRepository{prices: make(map[string]domain.Money)}
}

func (r *InMemoryPriceRepository) LatestPrice(_ context.Context, symbol string) (domain.Money, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.prices[symbol]; ok {
		return p, nil
	}
	return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, symbol)
}

func (r *InMemoryPriceRepository) SavePrice(_ context.Context, symbol string, price domain.Money, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices[symbol] = price
	return nil
}

// InMemoryStatementRepository is an in-memory StatementRepository.
type InMemoryStatementRepository struct {
	mu         sync.RWMutex
	statements map[string]domain.StatementValue
}

func NewInMemoryStatementRepository() *InMemoryStatementRepository {
	return &InMemoryStatementRepository{statements: make(map[string]domain.StatementValue)}
}

func (r *InMemoryStatementRepository) LatestStatement(_ context.Context, symbol string) (domain.StatementValue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.statements[symbol]; ok {
		return s, nil
	}
	return domain.StatementValue{}, fmt.Errorf("%w: %s", domain.ErrStatementUnavailable, symbol)
}

func (r *InMemoryStatementRepository) SaveStatement(_ context.Context, value domain.StatementValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements[value.Symbol] = value
	return nil
}

// InMemorySnapshotRepository is an in-memory SnapshotRepository.
type InMemorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots []*domain.SourceSnapshot
}

func NewInMemorySnapshotRepository() *InMemorySnapshotRepository {
	return &InMemorySnapshotRepository{}
}

func (r *InMemorySnapshotRepository) Save(_ context.Context, _ usecase.Transaction, snapshot *domain.SourceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
	return nil
}

func (r *InMemorySnapshotRepository) Latest(context.Context) (*domain.SourceSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.snapshots) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	return r.snapshots[len(r.snapshots)-1], nil
}

// InMemoryReconciliationRepository is an in-memory ReconciliationRepository.
type InMemoryReconciliationRepository struct {
	mu   sync.RWMutex
	runs []*domain.ReconciliationRun
}

func NewInMemoryReconciliationRepository() *InMemoryReconciliationRepository {
	return &InMemoryReconciliationRepository{}
}

func (r *InMemoryReconciliationRepository) SaveRun(_ context.Context, _ usecase.Transaction, run *domain.ReconciliationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *InMemoryReconciliationRepository) GetRun(_ context.Context, id string) (*domain.ReconciliationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, domain.ErrRunNotFound
}

func (r *InMemoryReconciliationRepository) ListRuns(_ context.Context, limit, offset int) ([]*domain.ReconciliationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ReconciliationRun, 0, len(r.runs))
	for i := len(r.runs) - 1; i >= 0; i-- {
		out = append(out, r.runs[i])
	}
	return page(out, limit, offset), nil
}

// StubTransactionManager hands out StubTransactions and counts their outcome.
type StubTransactionManager struct {
	mu        sync.Mutex
	Commits   int
	Rollbacks int

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewStubTransactionManager() *StubTransactionManager {
	return &StubTransactionManager{}
}

func (m *StubTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &StubTransaction{manager: m}, nil
}

// StubTransaction is a no-op Transaction. Rollback after Commit is not counted.
type StubTransaction struct {
	manager   *StubTransactionManager
	committed bool
}

func (t *StubTransaction) Commit(context.Context) error {
	t.committed = true
	t.manager.mu.Lock()
	t.manager.Commits++
	t.manager.mu.Unlock()
	return nil
}

func (t *StubTransaction) Rollback(context.Context) error {
	if t.committed {
		return nil
	}
	t.manager.mu.Lock()
	t.manager.Rollbacks++
	t.manager.mu.Unlock()
	return nil
}

// SequentialIDGenerator returns id-1, id-2, ...
type SequentialIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%d", g.counter)
}

// PassthroughRetrier runs the operation once.
type PassthroughRetrier struct{}

func (PassthroughRetrier) Retry(_ context.Context, operation func() error) error {
	return operation()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
