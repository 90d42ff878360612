package strategy

import (
	"math"

	"marlin/internal/domain"
	"marlin/internal/indicator"
)

// Compile-time interface check.
var _ Strategy = (*Alligator)(nil)

// Alligator periods and displacements per Bill Williams: jaw 13/8, teeth 8/5,
// lips 5/3. Each line is an SMMA of the bar median price, displaced forward.
const (
	alligatorJawPeriod   = 13
	alligatorJawShift    = 8
	alligatorTeethPeriod = 8
	alligatorTeethShift  = 5
	alligatorLipsPeriod  = 5
	alligatorLipsShift   = 3
)

// Alligator trades the jaw/teeth/lips trend structure. A long entry requires
// lips > teeth > jaw with all three lines rising, the close above the lips,
// and the structure having formed on this bar. The position is abandoned when
// the close falls through the jaw or the lips stop leading the teeth.
type Alligator struct {
	atrPeriod int
	multSL    float64
	multTP    float64

	cache seriesCache
	jaw   []float64
	teeth []float64
	lips  []float64
	atr   []float64
}

// NewAlligator creates an Alligator strategy with ATR-based stop/target
// multipliers.
func NewAlligator(atrPeriod int, multSL, multTP float64) *Alligator {
	return &Alligator{
		atrPeriod: atrPeriod,
		multSL:    multSL,
		multTP:    multTP,
	}
}

// Name returns "alligator".
func (s *Alligator) Name() string { return "alligator" }

// Warmup returns the minimum history before the displaced lines settle.
func (s *Alligator) Warmup() int {
	return max(alligatorJawPeriod+alligatorJawShift, s.atrPeriod) + 2
}

func (s *Alligator) compute(bars []domain.Bar) {
	if !s.cache.stale(bars) {
		return
	}
	median := indicator.MedianPrices(bars)
	s.jaw = indicator.Shift(indicator.SMMA(median, alligatorJawPeriod), alligatorJawShift)
	s.teeth = indicator.Shift(indicator.SMMA(median, alligatorTeethPeriod), alligatorTeethShift)
	s.lips = indicator.Shift(indicator.SMMA(median, alligatorLipsPeriod), alligatorLipsShift)
	s.atr = indicator.ATR(bars, s.atrPeriod)
}

// trend classifies the line ordering at index i: +1 for a long structure
// (lips > teeth > jaw), -1 for a short structure, 0 otherwise.
func (s *Alligator) trend(i int) int {
	if i < 0 || math.IsNaN(s.jaw[i]) || math.IsNaN(s.teeth[i]) || math.IsNaN(s.lips[i]) {
		return 0
	}
	switch {
	case s.lips[i] > s.teeth[i] && s.teeth[i] > s.jaw[i]:
		return 1
	case s.lips[i] < s.teeth[i] && s.teeth[i] < s.jaw[i]:
		return -1
	default:
		return 0
	}
}

func (s *Alligator) rising(i int) bool {
	return s.lips[i] > s.lips[i-1] && s.teeth[i] > s.teeth[i-1] && s.jaw[i] > s.jaw[i-1]
}

func (s *Alligator) falling(i int) bool {
	return s.lips[i] < s.lips[i-1] && s.teeth[i] < s.teeth[i-1] && s.jaw[i] < s.jaw[i-1]
}

// Evaluate returns the Alligator signal for bar i.
func (s *Alligator) Evaluate(bars []domain.Bar, i int) domain.Signal {
	if i < s.Warmup() || i >= len(bars) {
		return domain.FlatSignal()
	}
	s.compute(bars)

	if math.IsNaN(s.jaw[i]) || math.IsNaN(s.teeth[i]) || math.IsNaN(s.lips[i]) {
		return domain.FlatSignal()
	}

	t := s.trend(i)
	tPrev := s.trend(i - 1)
	close := bars[i].Close

	// Fresh structure entries: the ordering must not have held on the prior
	// bar. Reversal entries carry the exit flag so an opposite position is
	// closed even when the entry itself is suppressed (long-only mode).
	if t == 1 && tPrev != 1 && s.rising(i) && close > s.lips[i] {
		sig := entrySignal(domain.Long, close, s.atr[i], s.multSL, s.multTP)
		sig.Exit = tPrev == -1
		return sig
	}
	if t == -1 && tPrev != -1 && s.falling(i) && close < s.lips[i] {
		sig := entrySignal(domain.Short, close, s.atr[i], s.multSL, s.multTP)
		sig.Exit = true
		return sig
	}

	// Structure-break exits, judged against the structure that was in force.
	if tPrev == 1 && (close < s.jaw[i] || s.lips[i] <= s.teeth[i]) {
		return exitSignal()
	}
	if tPrev == -1 && (close > s.jaw[i] || s.lips[i] >= s.teeth[i]) {
		return exitSignal()
	}
	return domain.FlatSignal()
}
