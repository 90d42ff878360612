// Package report assembles the structured output of a run: equity curve,
// drawdown series, trade log, and summary metrics. Plotting and presentation
// are external; this package only produces the values.
package report

import (
	"math"

	"marlin/internal/domain"
)

// Returns computes per-bar fractional returns from an equity curve. The
// first return is zero by convention.
func Returns(curve []domain.EquityPoint) []float64 {
	if len(curve) == 0 {
		return nil
	}
	out := make([]float64, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev != 0 {
			out[i] = curve[i].Equity/prev - 1
		}
	}
	return out
}

// Sharpe computes the annualised Sharpe-like ratio of a return series:
// mean over population standard deviation, scaled by sqrt(periodsPerYear).
// A zero-variance series scores zero.
func Sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}

// MaxDrawdown returns the largest peak-to-trough equity retracement over the
// curve, as a fraction in [0, 1].
func MaxDrawdown(curve []domain.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// WinRate returns the fraction of closed trades with positive net PnL.
func WinRate(trades []domain.ClosedTrade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// ProfitFactor returns gross profit over gross loss. With no losing trades
// the factor is +Inf when any profit exists, else zero.
func ProfitFactor(trades []domain.ClosedTrade) float64 {
	var profit, loss float64
	for _, t := range trades {
		if t.PnL > 0 {
			profit += t.PnL
		} else {
			loss -= t.PnL
		}
	}
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}
