package engine

import (
	"math"
	"time"

	"marlin/internal/domain"
)

// RiskManager gates new entries and computes position size from the risk
// budget and the signal's stop distance.
type RiskManager struct {
	riskPerTrade     float64
	maxDailyDrawdown float64
	feeRate          float64
}

// NewRiskManager creates a RiskManager.
//
//   - riskPerTrade: fraction of equity risked between entry and stop
//     (e.g. 0.01 for 1%).
//   - maxDailyDrawdown: daily equity retracement that closes the gate for
//     the rest of the trading day (e.g. 0.03 for 3%).
func NewRiskManager(riskPerTrade, maxDailyDrawdown, feeRate float64) *RiskManager {
	return &RiskManager{
		riskPerTrade:     riskPerTrade,
		maxDailyDrawdown: maxDailyDrawdown,
		feeRate:          feeRate,
	}
}

// Size returns the position size for the signal, or ok=false when the gate
// is closed. A closed gate is a normal no-trade outcome, not an error.
//
// No trade when: the daily drawdown limit has been breached (the gate stays
// closed until the trading day rolls over and the daily drawdown resets), the
// signal carries no usable stop distance, or a position is already open — at
// most one position per symbol, no pyramiding.
func (rm *RiskManager) Size(sig domain.Signal, st domain.EquityState, pos domain.Position, refPrice float64, now time.Time) (float64, bool) {
	if pos.Open() {
		return 0, false
	}
	// The gate reopens as soon as the bar belongs to a new trading day,
	// even before that day's first mark resets the daily drawdown.
	if st.DailyDrawdown >= rm.maxDailyDrawdown && domain.TradingDay(now).Equal(st.TradingDay) {
		return 0, false
	}

	dist := math.Abs(refPrice - sig.StopPrice)
	if sig.StopPrice <= 0 || dist <= 0 || math.IsNaN(dist) {
		return 0, false
	}

	size := st.Equity * rm.riskPerTrade / dist

	// Never commit more cash than the ledger holds, fees included.
	if maxAffordable := st.Cash / (refPrice * (1 + rm.feeRate)); size > maxAffordable {
		size = maxAffordable
	}

	if size <= 0 || math.IsInf(size, 0) || math.IsNaN(size) {
		return 0, false
	}
	return size, true
}
