// Package indicator computes derived numeric series from ordered OHLCV bars.
// Every function is pure: the value at index i depends only on bars at
// indices <= i, and the warmup region below the minimum lookback is NaN.
// Callers treat NaN as "no signal", never as an error.
package indicator

import (
	"math"

	"marlin/internal/domain"
)

// Closes extracts the close series from a bar slice.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// MedianPrices extracts the (high+low)/2 series, the input to the Alligator
// smoothed averages.
func MedianPrices(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = (b.High + b.Low) / 2
	}
	return out
}

// SMA returns the simple moving average of values over period. The first
// period-1 entries are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with span semantics,
// alpha = 2/(period+1), seeded from the first value.
func EMA(values []float64, period int) []float64 {
	return ewm(values, 2/(float64(period)+1))
}

// SMMA returns the smoothed moving average used by Bill Williams indicators,
// alpha = 1/period, seeded from the first value.
func SMMA(values []float64, period int) []float64 {
	return ewm(values, 1/float64(period))
}

func ewm(values []float64, alpha float64) []float64 {
	out := nanSlice(len(values))
	if len(values) == 0 {
		return out
	}
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Shift displaces a series k indices to the right, padding the head with NaN.
// The displaced value at i is the source value at i-k, so displacement never
// reads forward in time.
func Shift(values []float64, k int) []float64 {
	out := nanSlice(len(values))
	for i := k; i < len(values); i++ {
		out[i] = values[i-k]
	}
	return out
}

// TrueRange returns the per-bar true range: the largest of high-low,
// |high-prevClose|, and |low-prevClose|. Index 0 uses high-low alone.
func TrueRange(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			tr = math.Max(tr, math.Abs(b.High-prev))
			tr = math.Max(tr, math.Abs(b.Low-prev))
		}
		out[i] = tr
	}
	return out
}

// ATR returns the Average True Range: an SMA of the true range over period.
func ATR(bars []domain.Bar, period int) []float64 {
	return SMA(TrueRange(bars), period)
}

// RSI returns Wilder's Relative Strength Index over period, in [0, 100].
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bollinger returns the middle band (SMA), upper band (mean + k·stddev), and
// lower band (mean − k·stddev) over period.
func Bollinger(values []float64, period int, k float64) (mid, upper, lower []float64) {
	mid = SMA(values, period)
	upper = nanSlice(len(values))
	lower = nanSlice(len(values))
	if period <= 0 {
		return mid, upper, lower
	}
	for i := period - 1; i < len(values); i++ {
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mid[i]
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(period))
		upper[i] = mid[i] + k*sd
		lower[i] = mid[i] - k*sd
	}
	return mid, upper, lower
}

// RollingHigh returns the highest bar high over the trailing period ending at
// each index.
func RollingHigh(bars []domain.Bar, period int) []float64 {
	out := nanSlice(len(bars))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(bars); i++ {
		hi := math.Inf(-1)
		for j := i - period + 1; j <= i; j++ {
			hi = math.Max(hi, bars[j].High)
		}
		out[i] = hi
	}
	return out
}

// RollingLow returns the lowest bar low over the trailing period ending at
// each index.
func RollingLow(bars []domain.Bar, period int) []float64 {
	out := nanSlice(len(bars))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(bars); i++ {
		lo := math.Inf(1)
		for j := i - period + 1; j <= i; j++ {
			lo = math.Min(lo, bars[j].Low)
		}
		out[i] = lo
	}
	return out
}

// VWAP returns the volume-weighted average price, accumulated from the start
// of each session. The session resets whenever the bar's UTC trading day
// changes. Bars with zero accumulated volume yield NaN.
func VWAP(bars []domain.Bar) []float64 {
	out := nanSlice(len(bars))
	var pv, vol float64
	for i, b := range bars {
		if i > 0 && !domain.TradingDay(b.Timestamp).Equal(domain.TradingDay(bars[i-1].Timestamp)) {
			pv, vol = 0, 0
		}
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * b.Volume
		vol += b.Volume
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
