package domain

// Position is the aggregated holding of one instrument across all accounts.
//
// A Position is only built from a full, non-empty holding list and never mutated:
// WithHolding and WithoutHolding return a fresh Position whose derived fields were
// recomputed from scratch.
type Position struct {
	symbol    string
	holdings  []Holding
	aggregate Aggregate
}

// NewPosition aggregates holdings into a position.
func NewPosition(symbol string, holdings []Holding) (Position, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return Position{}, err
	}

	symbol = NormalizeSymbol(symbol)

	own := make([]Holding, len(holdings))
	for i, h := range holdings {
		h.Symbol = NormalizeSymbol(h.Symbol)
		own[i] = h
	}

	for _, h := range own {
		if h.Symbol != symbol {
			return Position{}, ErrSymbolMismatch
		}
	}

	agg, err := AggregateHoldings(own)
	if err != nil {
		return Position{}, err
	}

	return Position{symbol: symbol, holdings: own, aggregate: agg}, nil
}

func (p Position) Symbol() string          { return p.symbol }
func (p Position) TotalQuantity() Quantity { return p.aggregate.TotalQuantity }
func (p Position) AverageCost() Money      { return p.aggregate.WeightedAverageCost }
func (p Position) Currency() string        { return p.aggregate.WeightedAverageCost.Currency() }

// Holdings returns a copy of the constituent holdings.
func (p Position) Holdings() []Holding {
	out := make([]Holding, len(p.holdings))
	copy(out, p.holdings)
	return out
}

// Invested returns average cost × total quantity.
func (p Position) Invested() Money {
	return p.aggregate.WeightedAverageCost.MulQuantity(p.aggregate.TotalQuantity)
}

// Holding returns the holding of the given account, if any.
func (p Position) Holding(accountID string) (Holding, bool) {
	for _, h := range p.holdings {
		if h.AccountID == accountID {
			return h, true
		}
	}
	return Holding{}, false
}

// WithHolding returns a new position where h replaces the holding of the same account,
// or is appended when the account had none.
func (p Position) WithHolding(h Holding) (Position, error) {
	next := make([]Holding, 0, len(p.holdings)+1)
	replaced := false

	for _, existing := range p.holdings {
		if existing.AccountID == h.AccountID {
			next = append(next, h)
			replaced = true
			continue
		}
		next = append(next, existing)
	}

	if !replaced {
		next = append(next, h)
	}

	return NewPosition(p.symbol, next)
}

// WithoutHolding returns a new position without the account's holding.
// The boolean is false when no holding remains and the position ceases to exist.
func (p Position) WithoutHolding(accountID string) (Position, bool, error) {
	next := make([]Holding, 0, len(p.holdings))
	for _, existing := range p.holdings {
		if existing.AccountID != accountID {
			next = append(next, existing)
		}
	}

	if len(next) == len(p.holdings) {
		return p, true, ErrHoldingNotFound
	}

	if len(next) == 0 {
		return Position{}, false, nil
	}

	pos, err := NewPosition(p.symbol, next)
	if err != nil {
		return Position{}, false, err
	}

	return pos, true, nil
}
