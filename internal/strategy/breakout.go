package strategy

import (
	"marlin/internal/domain"
	"marlin/internal/indicator"
)

// Compile-time interface check.
var _ Strategy = (*Breakout)(nil)

// Breakout enters long when the close clears the prior rolling high and
// exits when the close breaks the prior rolling low. The extremes are taken
// over the trailing period ending at the previous bar, so the breakout bar
// itself never feeds the level it is compared against.
type Breakout struct {
	period    int
	atrPeriod int
	multSL    float64
	multTP    float64

	cache seriesCache
	highs []float64
	lows  []float64
	atr   []float64
}

// NewBreakout creates a Breakout over the given channel period.
func NewBreakout(period, atrPeriod int, multSL, multTP float64) *Breakout {
	return &Breakout{
		period:    period,
		atrPeriod: atrPeriod,
		multSL:    multSL,
		multTP:    multTP,
	}
}

// Name returns "breakout".
func (s *Breakout) Name() string { return "breakout" }

// Warmup returns the minimum history before signals are defined.
func (s *Breakout) Warmup() int {
	return max(s.period, s.atrPeriod) + 2
}

func (s *Breakout) compute(bars []domain.Bar) {
	if !s.cache.stale(bars) {
		return
	}
	s.highs = indicator.RollingHigh(bars, s.period)
	s.lows = indicator.RollingLow(bars, s.period)
	s.atr = indicator.ATR(bars, s.atrPeriod)
}

// Evaluate returns the breakout signal for bar i.
func (s *Breakout) Evaluate(bars []domain.Bar, i int) domain.Signal {
	if i < s.Warmup() || i >= len(bars) {
		return domain.FlatSignal()
	}
	s.compute(bars)

	if hasNaN(s.highs[i-1], s.lows[i-1]) {
		return domain.FlatSignal()
	}
	close := bars[i].Close

	if close > s.highs[i-1] {
		return entrySignal(domain.Long, close, s.atr[i], s.multSL, s.multTP)
	}
	if close < s.lows[i-1] {
		sig := entrySignal(domain.Short, close, s.atr[i], s.multSL, s.multTP)
		sig.Exit = true
		return sig
	}
	return domain.FlatSignal()
}
