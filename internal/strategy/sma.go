package strategy

import (
	"marlin/internal/domain"
	"marlin/internal/indicator"
)

// Compile-time interface check.
var _ Strategy = (*SMACross)(nil)

// SMACross enters long when the fast SMA crosses above the slow SMA (golden
// cross) and exits on the opposite cross. Stops and targets are placed at
// ATR multiples from the entry close. With shorts enabled the death cross is
// also a short entry.
type SMACross struct {
	fast, slow int
	atrPeriod  int
	multSL     float64
	multTP     float64

	cache      seriesCache
	fastSeries []float64
	slowSeries []float64
	atr        []float64
}

// NewSMACross creates an SMACross with the given fast/slow periods and
// ATR-based stop/target multipliers.
func NewSMACross(fast, slow, atrPeriod int, multSL, multTP float64) *SMACross {
	return &SMACross{
		fast:      fast,
		slow:      slow,
		atrPeriod: atrPeriod,
		multSL:    multSL,
		multTP:    multTP,
	}
}

// Name returns "sma".
func (s *SMACross) Name() string { return "sma" }

// Warmup returns the minimum history before signals are defined.
func (s *SMACross) Warmup() int {
	return max(s.slow, s.atrPeriod) + 1
}

func (s *SMACross) compute(bars []domain.Bar) {
	if !s.cache.stale(bars) {
		return
	}
	closes := indicator.Closes(bars)
	s.fastSeries = indicator.SMA(closes, s.fast)
	s.slowSeries = indicator.SMA(closes, s.slow)
	s.atr = indicator.ATR(bars, s.atrPeriod)
}

// Evaluate returns the SMA crossover signal for bar i.
func (s *SMACross) Evaluate(bars []domain.Bar, i int) domain.Signal {
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
