package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

// DaysPerYear is the day-count basis of the XIRR exponent.
const DaysPerYear = 365.0

// XIRR errors. All of them match ErrXIRRNotComputable.
var (
	ErrXIRRNotComputable = errors.New("xirr not computable")
	ErrSingleDate        = xirrReason("all cash flows share one date")
	ErrNoSignChange      = xirrReason("cash flows have no sign change")
	ErrNoRootFound       = xirrReason("no rate bracket with a sign change")
	ErrNoConvergence     = xirrReason("iteration limit reached without convergence")
	ErrFlowAfterAsOf     = xirrReason("cash flow dated after valuation date")
	ErrTooFewFlows       = xirrReason("at least two cash flows are required")
)

func xirrReason(msg string) error {
	return &categorized{msg: msg, category: ErrXIRRNotComputable}
}

// bracketGrid is the ordered set of candidate rates scanned for a sign change of NPV.
// It crowds towards -1 and grows geometrically upwards, since annualising a
// holding of a few days turns small moves into extreme rates.
var bracketGrid = []float64{
	-0.999999, -0.9999, -0.999, -0.99, -0.9, -0.5, -0.25,
	0, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50, 100,
	1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9,
}

const (
	minDerivative  = 1e-12
	minBracketSize = 1e-12
)

// XIRROptions tunes the solver.
type XIRROptions struct {
	MaxIterations int
	Tolerance     float64 // absolute, on NPV normalised by the largest flow
	InitialGuess  float64
}

// DefaultXIRROptions returns the solver defaults.
func DefaultXIRROptions() XIRROptions {
	return XIRROptions{
		MaxIterations: 100,
		Tolerance:     1e-6,
		InitialGuess:  0.1,
	}
}

func (o XIRROptions) withDefaults() XIRROptions {
	d := DefaultXIRROptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.InitialGuess <= -1 {
		o.InitialGuess = d.InitialGuess
	}
	return o
}

// XIRRResult is a solved annualised rate and the refinement steps it took.
type XIRRResult struct {
	Rate       float64
	Iterations int
}

// npvFunc evaluates NPV and its derivative over pre-computed flow vectors.
type npvFunc struct {
	amounts  []float64 // normalised amounts
	years    []float64 // year fractions from the earliest flow
	weighted []float64 // -years[i] * amounts[i]
	factors  []float64 // scratch
}

func (f *npvFunc) eval(rate float64) (npv, dnpv float64) {
	base := 1 + rate
	for i, t := range f.years {
		f.factors[i] = math.Pow(base, -t)
	}

	npv = floats.Dot(f.amounts, f.factors)
	dnpv = floats.Dot(f.weighted, f.factors) / base

	return npv, dnpv
}

// SolveXIRR finds the annualised rate r > -1 at which the net present value of
// flows is zero. Flows are discounted from the earliest flow date.
//
// The solver scans bracketGrid for a sign change, then refines inside the bracket
// with Newton-Raphson, falling back to bisection whenever a Newton step would
// leave the bracket or the derivative vanishes.
func SolveXIRR(flows []CashFlow, asOf time.Time, opts XIRROptions) (XIRRResult, error) {
	opts = opts.withDefaults()

	f, err := prepareFlows(flows, asOf)
	if err != nil {
		return XIRRResult{}, err
	}

	lo, hi, hit, found := findBracket(f, opts)
	if !found {
		return XIRRResult{}, ErrNoRootFound
	}
	if lo == hi {
		return XIRRResult{Rate: hit}, nil
	}

	fLo, _ := f.eval(lo)

	rate := opts.InitialGuess
	if rate <= lo || rate >= hi {
		rate = lo + (hi-lo)/2
	}

	for i := 1; i <= opts.MaxIterations; i++ {
		npv, dnpv := f.eval(rate)
		if math.Abs(npv) < opts.Tolerance {
			return XIRRResult{Rate: rate, Iterations: i}, nil
		}

		if math.Signbit(npv) == math.Signbit(fLo) {
			lo, fLo = rate, npv
		} else {
			hi = rate
		}

		if hi-lo < minBracketSize {
			return XIRRResult{Rate: lo + (hi-lo)/2, Iterations: i}, nil
		}

		next := lo + (hi-lo)/2
		if math.Abs(dnpv) > minDerivative {
			if step := rate - npv/dnpv; step > lo && step < hi {
				next = step
			}
		}

		rate = next
	}

	return XIRRResult{}, fmt.Errorf("%w after %d iterations", ErrNoConvergence, opts.MaxIterations)
}

func prepareFlows(flows []CashFlow, asOf time.Time) (*npvFunc, error) {
	if len(flows) < 2 {
		return nil, ErrTooFewFlows
	}

	currency := flows[0].Amount.Currency()
	earliest := Day(flows[0].Date)
	asOfDay := Day(asOf)

	var hasPositive, hasNegative, multipleDates bool
	var maxAbs float64

	for _, cf := range flows {
		if cf.Amount.Currency() != currency {
			return nil, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, currency, cf.Amount.Currency())
		}

		day := Day(cf.Date)
		if day.After(asOfDay) {
			return nil, fmt.Errorf("%w: %s", ErrFlowAfterAsOf, day.Format(time.DateOnly))
		}
		if !day.Equal(earliest) {
			multipleDates = true
		}
		if day.Before(earliest) {
			earliest = day
		}

		switch cf.Amount.Sign() {
		case 1:
			hasPositive = true
		case -1:
			hasNegative = true
		}

		if a := math.Abs(cf.Amount.Amount().InexactFloat64()); a > maxAbs {
			maxAbs = a
		}
	}

	if !multipleDates {
		return nil, ErrSingleDate
	}

	if !hasPositive || !hasNegative {
		return nil, ErrNoSignChange
	}

	n := len(flows)
	f := &npvFunc{
		amounts:  make([]float64, n),
		years:    make([]float64, n),
		weighted: make([]float64, n),
		factors:  make([]float64, n),
	}

	for i, cf := range flows {
		f.amounts[i] = cf.Amount.Amount().InexactFloat64() / maxAbs
		f.years[i] = float64(DaysBetween(earliest, cf.Date)) / DaysPerYear
		f.weighted[i] = -f.years[i] * f.amounts[i]
	}

	return f, nil
}

type candidate struct {
	lo, hi float64
}

func (c candidate) distance(x float64) float64 {
	switch {
	case x < c.lo:
		return c.lo - x
	case x > c.hi:
		return x - c.hi
	default:
		return 0
	}
}

// findBracket returns the bracket with a sign change nearest to the initial guess.
// When a grid point is itself a root, lo == hi == hit.
func findBracket(f *npvFunc, opts XIRROptions) (lo, hi, hit float64, found bool) {
	grid := append([]float64{opts.InitialGuess}, bracketGrid...)
	sort.Float64s(grid)

	values := make([]float64, len(grid))
	for i, r := range grid {
		values[i], _ = f.eval(r)
	}

	var candidates []candidate
	for i, r := range grid {
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}

		if math.Abs(v) < opts.Tolerance {
			candidates = append(candidates, candidate{lo: r, hi: r})
			continue
		}

		if i+1 < len(grid) {
			w := values[i+1]
			if math.IsNaN(w) || math.IsInf(w, 0) || math.Abs(w) < opts.Tolerance {
				continue
			}
			if math.Signbit(v) != math.Signbit(w) {
				candidates = append(candidates, candidate{lo: r, hi: grid[i+1]})
			}
		}
	}

	if len(candidates) == 0 {
		return 0, 0, 0, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.distance(opts.InitialGuess) < best.distance(opts.InitialGuess) {
			best = c
		}
	}

	return best.lo, best.hi, best.lo, true
}
