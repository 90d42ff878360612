package strategy

import (
	"marlin/internal/domain"
	"marlin/internal/indicator"
)

// Compile-time interface check.
var _ Strategy = (*RSIReversal)(nil)

// RSIReversal buys when the RSI recovers up through the oversold level and
// exits when it pushes into the overbought level. With shorts enabled the
// overbought rejection is also a short entry.
type RSIReversal struct {
	period     int
	oversold   float64
	overbought float64
	atrPeriod  int
	multSL     float64
	multTP     float64

	cache seriesCache
	rsi   []float64
	atr   []float64
}

// NewRSIReversal creates an RSIReversal with the given period and bands.
func NewRSIReversal(period int, oversold, overbought float64, atrPeriod int, multSL, multTP float64) *RSIReversal {
	return &RSIReversal{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		atrPeriod:  atrPeriod,
		multSL:     multSL,
		multTP:     multTP,
	}
}

// Name returns "rsi".
func (s *RSIReversal) Name() string { return "rsi" }

// Warmup returns the minimum history before signals are defined.
func (s *RSIReversal) Warmup() int {
	return max(s.period, s.atrPeriod) + 2
}

func (s *RSIReversal) compute(bars []domain.Bar) {
	if !s.cache.stale(bars) {
		return
	}
	s.rsi = indicator.RSI(indicator.Closes(bars), s.period)
	s.atr = indicator.ATR(bars, s.atrPeriod)
}

// Evaluate returns the RSI reversal signal for bar i.
func (s *RSIReversal) Evaluate(bars []domain.Bar, i int) domain.Signal {
	if i < s.Warmup() || i >= len(bars) {
		return domain.FlatSignal()
	}
	s.compute(bars)

	if hasNaN(s.rsi[i-1], s.rsi[i]) {
		return domain.FlatSignal()
	}

	// Recovery up through the oversold band.
	if s.rsi[i-1] < s.oversold && s.rsi[i] >= s.oversold {
		return entrySignal(domain.Long, bars[i].Close, s.atr[i], s.multSL, s.multTP)
	}
	// Rejection down through the overbought band.
	if s.rsi[i-1] > s.overbought && s.rsi[i] <= s.overbought {
		sig := entrySignal(domain.Short, bars[i].Close, s.atr[i], s.multSL, s.multTP)
		sig.Exit = true
		return sig
	}
	return domain.FlatSignal()
}
