package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus classifies one instrument's comparison outcome.
type ReconciliationStatus string

const (
	StatusMatched          ReconciliationStatus = "MATCHED"
	StatusQuantityMismatch ReconciliationStatus = "QUANTITY_MISMATCH"
	StatusValueMismatch    ReconciliationStatus = "VALUE_MISMATCH"
	StatusMissingInSystem  ReconciliationStatus = "MISSING_IN_SYSTEM"
	StatusMissingInSource  ReconciliationStatus = "MISSING_IN_SOURCE"
)

// Statuses lists every status in reporting order.
var Statuses = []ReconciliationStatus{
	StatusMatched,
	StatusQuantityMismatch,
	StatusValueMismatch,
	StatusMissingInSystem,
	StatusMissingInSource,
}

// SnapshotPosition is one side's view of an instrument: its quantity and current value.
type SnapshotPosition struct {
	Symbol   string
	Quantity decimal.Decimal
	Value    Money
}

// Tolerance bounds the accepted drift between system and source.
// A zero QuantityAbs means quantities must match exactly.
type Tolerance struct {
	QuantityAbs  decimal.Decimal
	ValuePercent decimal.Decimal
}

// Validate rejects negative tolerances.
func (t Tolerance) Validate() error {
	if t.QuantityAbs.IsNegative() || t.ValuePercent.IsNegative() {
		return ErrInvalidTolerance
	}
	return nil
}

// ReconciliationEntry is the immutable outcome for one instrument.
// System or Source is nil when the instrument is missing on that side.
type ReconciliationEntry struct {
	Symbol             string
	Status             ReconciliationStatus
	System             *SnapshotPosition
	Source             *SnapshotPosition
	QuantityDiff       decimal.Decimal // system - source
	DiscrepancyPercent decimal.Decimal
}

// ReconciliationRun is a persisted reconciliation execution. Runs are append-only.
type ReconciliationRun struct {
	ID         string
	SnapshotID string
	Tolerance  Tolerance
	Entries    []ReconciliationEntry
	Summary    ReconciliationSummary
	CreatedAt  time.Time
}

// ReconciliationSummary counts entries per status.
type ReconciliationSummary struct {
	Total  int
	Counts map[ReconciliationStatus]int
}

// Reconciled reports whether every entry matched.
func (s ReconciliationSummary) Reconciled() bool {
	return s.Total == s.Counts[StatusMatched]
}

// Summarize counts entries per status.
func Summarize(entries []ReconciliationEntry) ReconciliationSummary {
	counts := make(map[ReconciliationStatus]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, e := range entries {
		counts[e.Status]++
	}
	return ReconciliationSummary{Total: len(entries), Counts: counts}
}

// Reconcile compares a system snapshot against an independently sourced one.
// Entries are returned sorted by symbol; neither input is modified.
func Reconcile(system, source []SnapshotPosition, tol Tolerance) ([]ReconciliationEntry, error) {
	if err := tol.Validate(); err != nil {
		return nil, err
	}

	sys, err := indexSnapshot(system)
	if err != nil {
		return nil, fmt.Errorf("system snapshot: %w", err)
	}

	src, err := indexSnapshot(source)
	if err != nil {
		return nil, fmt.Errorf("source snapshot: %w", err)
	}

	keys := make([]string, 0, len(sys)+len(src))
	for k := range sys {
		keys = append(keys, k)
	}
	for k := range src {
		if _, ok := sys[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]ReconciliationEntry, 0, len(keys))
	for _, k := range keys {
		entry, err := compare(k, sys[k], src[k], tol)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func indexSnapshot(positions []SnapshotPosition) (map[string]*SnapshotPosition, error) {
	idx := make(map[string]*SnapshotPosition, len(positions))
	for _, p := range positions {
		if err := ValidateSymbol(p.Symbol); err != nil {
			return nil, err
		}

		key := NormalizeSymbol(p.Symbol)
		if _, dup := idx[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, key)
		}

		// Zero is a closed position; negative is never a valid report.
		if p.Quantity.IsNegative() {
			return nil, fmt.Errorf("%w: %s has quantity %s", ErrInvalidQuantity, key, p.Quantity)
		}
		if p.Value.IsNegative() {
			return nil, fmt.Errorf("%w: %s has value %s", ErrInvalidAmount, key, p.Value)
		}

		cp := p
		cp.Symbol = key
		idx[key] = &cp
	}
	return idx, nil
}

func compare(symbol string, sys, src *SnapshotPosition, tol Tolerance) (ReconciliationEntry, error) {
	entry := ReconciliationEntry{Symbol: symbol, System: sys, Source: src}

	switch {
	case src == nil:
		entry.Status = StatusMissingInSource
		entry.QuantityDiff = sys.Quantity
		entry.DiscrepancyPercent = hundred
		return entry, nil
	case sys == nil:
		entry.Status = StatusMissingInSystem
		entry.QuantityDiff = src.Quantity.Neg()
		entry.DiscrepancyPercent = hundred
		return entry, nil
	}

	entry.QuantityDiff = sys.Quantity.Sub(src.Quantity)

	if entry.QuantityDiff.Abs().GreaterThan(tol.QuantityAbs) {
		entry.Status = StatusQuantityMismatch
		entry.DiscrepancyPercent = percentOf(entry.QuantityDiff.Abs(), src.Quantity.Abs())
		return entry, nil
	}

	valueDiff, err := sys.Value.Sub(src.Value)
	if err != nil {
		return ReconciliationEntry{}, fmt.Errorf("%s: %w", symbol, err)
	}

	entry.DiscrepancyPercent = percentOf(valueDiff.Amount().Abs(), src.Value.Amount().Abs())

	if entry.DiscrepancyPercent.LessThanOrEqual(tol.ValuePercent) {
		entry.Status = StatusMatched
	} else {
		entry.Status = StatusValueMismatch
	}

	return entry, nil
}

// percentOf returns diff / base × 100. A zero base with a non-zero diff is a 100% mismatch.
func percentOf(diff, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		if diff.IsZero() {
			return decimal.Zero
		}
		return hundred
	}
	return DivRoundBank(diff.Mul(hundred), base, DivisionPrecision)
}

// SourceSnapshot is an externally sourced (broker statement) position list.
type SourceSnapshot struct {
	ID         string
	Source     string
	Positions  []SnapshotPosition
	ImportedAt time.Time
}
