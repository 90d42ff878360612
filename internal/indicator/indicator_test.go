package indicator

import (
	"math"
	"testing"
	"time"

	"marlin/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func barsFromOHLC(rows [][4]float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(rows))
	for i, r := range rows {
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      r[0],
			High:      r[1],
			Low:       r[2],
			Close:     r[3],
			Volume:    1,
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := SMA(values, 3)

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Error("SMA warmup region should be NaN")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(got[i+2], w) {
			t.Errorf("SMA[%d] = %v, want %v", i+2, got[i+2], w)
		}
	}
}

func TestSMAInsufficientData(t *testing.T) {
	got := SMA([]float64{1, 2}, 5)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("SMA[%d] = %v, want NaN for insufficient data", i, v)
		}
	}
}

func TestEMA(t *testing.T) {
	values := []float64{10, 20, 30}
	got := EMA(values, 3) // alpha = 0.5

	if !almostEqual(got[0], 10) {
		t.Errorf("EMA[0] = %v, want 10", got[0])
	}
	if !almostEqual(got[1], 15) {
		t.Errorf("EMA[1] = %v, want 15", got[1])
	}
	if !almostEqual(got[2], 22.5) {
		t.Errorf("EMA[2] = %v, want 22.5", got[2])
	}
}

func TestSMMA(t *testing.T) {
	values := []float64{10, 20}
	got := SMMA(values, 5) // alpha = 0.2

	if !almostEqual(got[0], 10) {
		t.Errorf("SMMA[0] = %v, want 10", got[0])
	}
	if !almostEqual(got[1], 12) {
		t.Errorf("SMMA[1] = %v, want 12", got[1])
	}
}

func TestShift(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	got := Shift(values, 2)

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Error("Shift head should be NaN")
	}
	if got[2] != 1 || got[3] != 2 {
		t.Errorf("Shift tail = %v, %v, want 1, 2", got[2], got[3])
	}
}

func TestTrueRangeAndATR(t *testing.T) {
	bars := barsFromOHLC([][4]float64{
		{10, 12, 9, 11},  // TR = 3
		{11, 13, 10, 12}, // TR = max(3, |13-11|, |10-11|) = 3
		{12, 12, 8, 9},   // TR = max(4, |12-12|, |8-12|) = 4
	})

	tr := TrueRange(bars)
	want := []float64{3, 3, 4}
	for i, w := range want {
		if !almostEqual(tr[i], w) {
			t.Errorf("TrueRange[%d] = %v, want %v", i, tr[i], w)
		}
	}

	atr := ATR(bars, 3)
	if !math.IsNaN(atr[0]) || !math.IsNaN(atr[1]) {
		t.Error("ATR warmup region should be NaN")
	}
	if !almostEqual(atr[2], 10.0/3) {
		t.Errorf("ATR[2] = %v, want %v", atr[2], 10.0/3)
	}
}

func TestRSIExtremes(t *testing.T) {
	// Monotonically rising closes: RSI should be 100 once defined.
	rising := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	got := RSI(rising, 3)
	if !math.IsNaN(got[2]) {
		t.Error("RSI warmup region should be NaN")
	}
	for i := 3; i < len(got); i++ {
		if !almostEqual(got[i], 100) {
			t.Errorf("RSI[%d] = %v, want 100 for all-gain series", i, got[i])
		}
	}

	// Monotonically falling closes: RSI should be 0.
	falling := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	got = RSI(falling, 3)
	for i := 3; i < len(got); i++ {
		if !almostEqual(got[i], 0) {
			t.Errorf("RSI[%d] = %v, want 0 for all-loss series", i, got[i])
		}
	}
}

func TestBollinger(t *testing.T) {
	values := []float64{2, 4, 6} // mean 4, population stddev sqrt(8/3)
	mid, upper, lower := Bollinger(values, 3, 2)

	if !almostEqual(mid[2], 4) {
		t.Errorf("mid[2] = %v, want 4", mid[2])
	}
	sd := math.Sqrt(8.0 / 3.0)
	if !almostEqual(upper[2], 4+2*sd) {
		t.Errorf("upper[2] = %v, want %v", upper[2], 4+2*sd)
	}
	if !almostEqual(lower[2], 4-2*sd) {
		t.Errorf("lower[2] = %v, want %v", lower[2], 4-2*sd)
	}
	if !math.IsNaN(upper[0]) || !math.IsNaN(lower[1]) {
		t.Error("Bollinger warmup region should be NaN")
	}
}

func TestRollingHighLow(t *testing.T) {
	bars := barsFromOHLC([][4]float64{
		{10, 15, 9, 12},
		{12, 13, 8, 10},
		{10, 14, 11, 13},
		{13, 20, 12, 19},
	})

	hi := RollingHigh(bars, 3)
	lo := RollingLow(bars, 3)

	if !math.IsNaN(hi[1]) || !math.IsNaN(lo[1]) {
		t.Error("rolling extremes warmup region should be NaN")
	}
	if !almostEqual(hi[2], 15) {
		t.Errorf("RollingHigh[2] = %v, want 15", hi[2])
	}
	if !almostEqual(hi[3], 20) {
		t.Errorf("RollingHigh[3] = %v, want 20", hi[3])
	}
	if !almostEqual(lo[2], 8) {
		t.Errorf("RollingLow[2] = %v, want 8", lo[2])
	}
	if !almostEqual(lo[3], 8) {
		t.Errorf("RollingLow[3] = %v, want 8", lo[3])
	}
}

// A non-positive period must yield an all-NaN series, never an index panic
// from a lookback window that starts before the slice.
func TestNonPositivePeriod(t *testing.T) {
	values := []float64{1, 2, 3}
	bars := barsFromOHLC([][4]float64{
		{10, 12, 9, 11}, {11, 13, 10, 12}, {12, 14, 11, 13},
	})

	for _, period := range []int{0, -1} {
		mid, upper, lower := Bollinger(values, period, 2)
		hi := RollingHigh(bars, period)
		lo := RollingLow(bars, period)
		for i := range values {
			for _, v := range []float64{mid[i], upper[i], lower[i], hi[i], lo[i]} {
				if !math.IsNaN(v) {
					t.Errorf("period %d: index %d = %v, want NaN", period, i, v)
				}
			}
		}
	}
}

func TestVWAPSessionReset(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	bars := []domain.Bar{
		{Timestamp: day1, High: 12, Low: 8, Close: 10, Volume: 100},
		{Timestamp: day1.Add(time.Hour), High: 22, Low: 18, Close: 20, Volume: 100},
		{Timestamp: day2, High: 32, Low: 28, Close: 30, Volume: 100},
	}

	got := VWAP(bars)

	if !almostEqual(got[0], 10) {
		t.Errorf("VWAP[0] = %v, want 10", got[0])
	}
	if !almostEqual(got[1], 15) {
		t.Errorf("VWAP[1] = %v, want 15 (cumulative within session)", got[1])
	}
	// New UTC day resets the accumulator.
	if !almostEqual(got[2], 30) {
		t.Errorf("VWAP[2] = %v, want 30 after session reset", got[2])
	}
}

// Indicator values must not change when future bars are appended: the value
// at index i is a function of bars <= i only.
func TestNoForwardReference(t *testing.T) {
	bars := barsFromOHLC([][4]float64{
		{10, 12, 9, 11}, {11, 13, 10, 12}, {12, 14, 11, 13},
		{13, 15, 12, 14}, {14, 16, 13, 15}, {15, 17, 14, 16},
	})

	atFive := ATR(bars, 3)[4]
	smaFive := SMA(Closes(bars), 3)[4]

	extended := append(append([]domain.Bar{}, bars...), barsFromOHLC([][4]float64{
		{100, 200, 50, 150},
	})...)

	if got := ATR(extended, 3)[4]; !almostEqual(got, atFive) {
		t.Errorf("ATR[4] changed after appending future bar: %v != %v", got, atFive)
	}
	if got := SMA(Closes(extended), 3)[4]; !almostEqual(got, smaFive) {
		t.Errorf("SMA[4] changed after appending future bar: %v != %v", got, smaFive)
	}
}
