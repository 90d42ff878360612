package strategy

import (
	"marlin/internal/domain"
	"marlin/internal/indicator"
)

// Compile-time interface check.
var _ Strategy = (*EMACross)(nil)

// EMACross is the exponential-average variant of the crossover strategy.
// Entries and exits mirror SMACross but react faster to recent closes.
type EMACross struct {
	fast, slow int
	atrPeriod  int
	multSL     float64
	multTP     float64

	cache      seriesCache
	fastSeries []float64
	slowSeries []float64
	atr        []float64
}

// NewEMACross creates an EMACross with the given fast/slow spans and
// ATR-based stop/target multipliers.
func NewEMACross(fast, slow, atrPeriod int, multSL, multTP float64) *EMACross {
	return &EMACross{
		fast:      fast,
		slow:      slow,
		atrPeriod: atrPeriod,
		multSL:    multSL,
		multTP:    multTP,
	}
}

// Name returns "ema".
func (s *EMACross) Name() string { return "ema" }

// Warmup returns the minimum history before signals are defined. EMAs are
// defined from the first bar but need the slow span to settle.
func (s *EMACross) Warmup() int {
	return max(s.slow, s.atrPeriod) + 1
}

func (s *EMACross) compute(bars []domain.Bar) {
	if !s.cache.stale(bars) {
		return
	}
	closes := indicator.Closes(bars)
	s.fastSeries = indicator.EMA(closes, s.fast)
	s.slowSeries = indicator.EMA(closes, s.slow)
	s.atr = indicator.ATR(bars, s.atrPeriod)
}

// Evaluate returns the EMA crossover signal for bar i.
func (s *EMACross) Evaluate(bars []domain.Bar, i int) domain.Signal {
	if i < s.Warmup() || i >= len(bars) {
		return domain.FlatSignal()
	}
	s.compute(bars)

	if crossUp(s.fastSeries, s.slowSeries, i) {
		return entrySignal(domain.Long, bars[i].Close, s.atr[i], s.multSL, s.multTP)
	}
	if crossDown(s.fastSeries, s.slowSeries, i) {
		sig := entrySignal(domain.Short, bars[i].Close, s.atr[i], s.multSL, s.multTP)
		sig.Exit = true
		return sig
	}
	return domain.FlatSignal()
}
