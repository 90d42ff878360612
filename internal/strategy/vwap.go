package strategy

import (
	"marlin/internal/domain"
	"marlin/internal/indicator"
)

// Compile-time interface check.
var _ Strategy = (*VWAPCross)(nil)

// VWAPCross trades crossings of the session VWAP: long when the close
// crosses above it, exit (or short) when the close crosses back below.
type VWAPCross struct {
	atrPeriod int
	multSL    float64
	multTP    float64

	cache seriesCache
	vwap  []float64
	atr   []float64
}

// NewVWAPCross creates a VWAPCross with ATR-based stop/target multipliers.
func NewVWAPCross(atrPeriod int, multSL, multTP float64) *VWAPCross {
	return &VWAPCross{
		atrPeriod: atrPeriod,
		multSL:    multSL,
		multTP:    multTP,
	}
}

// Name returns "vwap".
func (s *VWAPCross) Name() string { return "vwap" }

// Warmup returns the minimum history before signals are defined.
func (s *VWAPCross) Warmup() int {
	return s.atrPeriod + 2
}

func (s *VWAPCross) compute(bars []domain.Bar) {
	if !s.cache.stale(bars) {
		return
	}
	s.vwap = indicator.VWAP(bars)
	s.atr = indicator.ATR(bars, s.atrPeriod)
}

// Evaluate returns the VWAP crossing signal for bar i.
func (s *VWAPCross) Evaluate(bars []domain.Bar, i int) domain.Signal {
	if i < s.Warmup() || i >= len(bars) {
		return domain.FlatSignal()
	}
	s.compute(bars)

	prev, cur := bars[i-1].Close, bars[i].Close
	if hasNaN(s.vwap[i-1], s.vwap[i]) {
		return domain.FlatSignal()
	}

	if prev <= s.vwap[i-1] && cur > s.vwap[i] {
		return entrySignal(domain.Long, cur, s.atr[i], s.multSL, s.multTP)
	}
	if prev >= s.vwap[i-1] && cur < s.vwap[i] {
		sig := entrySignal(domain.Short, cur, s.atr[i], s.multSL, s.multTP)
		sig.Exit = true
		return sig
	}
	return domain.FlatSignal()
}
