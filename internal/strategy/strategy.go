// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry plus the built-in strategy set.
package strategy

import (
	"errors"
	"math"
	"sort"

	"marlin/internal/domain"
)

// Strategy is the interface that all trading strategies implement.
//
// Evaluate returns the strategy's signal for bar i. It is pure with respect
// to bars at indices <= i and the parameters fixed at construction: the
// result for a given i must not change when bars after i are appended,
// withheld, or modified.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Warmup returns the number of leading bars for which the strategy has
	// no defined signal. Evaluate returns a flat signal inside the warmup
	// region rather than an error.
	Warmup() int

	// Evaluate returns the signal for bar i given the bar history. The bars
	// slice may extend past i; implementations must not read beyond index i.
	Evaluate(bars []domain.Bar, i int) domain.Signal
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LongOnly wraps a strategy so that short entries are suppressed at the
// strategy boundary: a short-direction signal keeps its exit flag but its
// direction becomes flat. Long signals pass through unchanged.
func LongOnly(s Strategy) Strategy {
	return &longOnly{inner: s}
}

type longOnly struct {
	inner Strategy
}

func (l *longOnly) Name() string { return l.inner.Name() }
func (l *longOnly) Warmup() int  { return l.inner.Warmup() }

func (l *longOnly) Evaluate(bars []domain.Bar, i int) domain.Signal {
	sig := l.inner.Evaluate(bars, i)
	if sig.Direction == domain.Short {
		sig.Direction = domain.Flat
		sig.StopPrice = 0
		sig.TargetPrice = 0
	}
	return sig
}

// ---------------------------------------------------------------------------
// Shared evaluation helpers
// ---------------------------------------------------------------------------

// crossUp reports whether fast crossed above slow at index i. NaN values in
// either series at i or i-1 yield false.
func crossUp(fast, slow []float64, i int) bool {
	if i < 1 {
		return false
	}
	if hasNaN(fast[i-1], fast[i], slow[i-1], slow[i]) {
		return false
	}
	return fast[i-1] <= slow[i-1] && fast[i] > slow[i]
}

// crossDown reports whether fast crossed below slow at index i.
func crossDown(fast, slow []float64, i int) bool {
	if i < 1 {
		return false
	}
	if hasNaN(fast[i-1], fast[i], slow[i-1], slow[i]) {
		return false
	}
	return fast[i-1] >= slow[i-1] && fast[i] < slow[i]
}

func hasNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// atrLevels derives stop and target prices from the entry price and the ATR
// at the signal bar. A NaN ATR leaves both levels unset.
func atrLevels(dir domain.Direction, entry, atr, multSL, multTP float64) (stop, target float64) {
	if math.IsNaN(atr) || atr <= 0 {
		return 0, 0
	}
	if dir == domain.Long {
		return entry - multSL*atr, entry + multTP*atr
	}
	return entry + multSL*atr, entry - multTP*atr
}

// entrySignal assembles a directional signal with ATR-derived levels.
func entrySignal(dir domain.Direction, entry, atr, multSL, multTP float64) domain.Signal {
	stop, target := atrLevels(dir, entry, atr, multSL, multTP)
	return domain.Signal{Direction: dir, StopPrice: stop, TargetPrice: target}
}

// exitSignal requests a close of whatever position is open.
func exitSignal() domain.Signal {
	return domain.Signal{Direction: domain.Flat, Exit: true}
}

// ---------------------------------------------------------------------------
// Series caching
// ---------------------------------------------------------------------------

// seriesCache invalidates a strategy's derived series when the bar history it
// was computed from changes. Identity is the backing array head plus length:
// the engine passes the same slice every bar of a run, so a backtest computes
// each series exactly once, while live mode recomputes as bars are appended.
type seriesCache struct {
	head *domain.Bar
	n    int
}

func (c *seriesCache) stale(bars []domain.Bar) bool {
	if len(bars) == 0 {
		return c.n != 0
	}
	if c.head != &bars[0] || c.n != len(bars) {
		c.head = &bars[0]
		c.n = len(bars)
		return true
	}
	return false
}

// ErrUnknownStrategy is returned by the factory for an unrecognised name.
var ErrUnknownStrategy = errors.New("unknown strategy")
