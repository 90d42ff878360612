package strategy

import (
	"marlin/internal/domain"
	"marlin/internal/indicator"
)

// Compile-time interface check.
var _ Strategy = (*BollingerReversion)(nil)

// BollingerReversion is a mean-reversion strategy: it buys when the close
// recovers up through the lower band and exits once the close reverts to the
// middle band. With shorts enabled the upper-band rejection is a short entry.
type BollingerReversion struct {
	period    int
	k         float64
	atrPeriod int
	multSL    float64
	multTP    float64

	cache seriesCache
	mid   []float64
	upper []float64
	lower []float64
	atr   []float64
}

// NewBollingerReversion creates a BollingerReversion over period with band
// width k standard deviations.
func NewBollingerReversion(period int, k float64, atrPeriod int, multSL, multTP float64) *BollingerReversion {
	return &BollingerReversion{
		period:    period,
		k:         k,
		atrPeriod: atrPeriod,
		multSL:    multSL,
		multTP:    multTP,
	}
}

// Name returns "bollinger".
func (s *BollingerReversion) Name() string { return "bollinger" }

// Warmup returns the minimum history before signals are defined.
func (s *BollingerReversion) Warmup() int {
	return max(s.period, s.atrPeriod) + 2
}

func (s *BollingerReversion) compute(bars []domain.Bar) {
	if !s.cache.stale(bars) {
		return
	}
	closes := indicator.Closes(bars)
	s.mid, s.upper, s.lower = indicator.Bollinger(closes, s.period, s.k)
	s.atr = indicator.ATR(bars, s.atrPeriod)
}

// Evaluate returns the Bollinger reversion signal for bar i.
func (s *BollingerReversion) Evaluate(bars []domain.Bar, i int) domain.Signal {
	if i < s.Warmup() || i >= len(bars) {
		return domain.FlatSignal()
	}
	s.compute(bars)

	prev, cur := bars[i-1].Close, bars[i].Close
	if hasNaN(s.lower[i-1], s.lower[i], s.upper[i-1], s.upper[i], s.mid[i-1], s.mid[i]) {
		return domain.FlatSignal()
	}

	// Recovery up through the lower band.
	if prev < s.lower[i-1] && cur >= s.lower[i] {
		return entrySignal(domain.Long, cur, s.atr[i], s.multSL, s.multTP)
	}
	// Rejection down through the upper band.
	if prev > s.upper[i-1] && cur <= s.upper[i] {
		sig := entrySignal(domain.Short, cur, s.atr[i], s.multSL, s.multTP)
		sig.Exit = true
		return sig
	}
	// Mean reached: take profits on whatever is open.
	if prev < s.mid[i-1] && cur >= s.mid[i] || prev > s.mid[i-1] && cur <= s.mid[i] {
		return exitSignal()
	}
	return domain.FlatSignal()
}
