package engine

import (
	"fmt"
	"time"

	"marlin/internal/domain"
)

// Ledger owns the single open position for a symbol and the running
// cash/equity state. It is exclusively owned by one execution loop (or one
// shadow candidate) for the duration of a run; it is not safe for concurrent
// use.
type Ledger struct {
	symbol    string
	stopFirst bool

	pos       domain.Position
	cash      float64
	realized  float64
	posValue  float64 // liquidation value of the open position, signed
	equity    float64
	peak      float64
	dayPeak   float64
	day       time.Time
	entryFees float64

	applied map[string]struct{}
	fills   []domain.Fill
	closed  []domain.ClosedTrade
	curve   []domain.EquityPoint
}

// NewLedger creates a Ledger with the given starting cash. stopFirst selects
// the intrabar policy when a bar touches both stop and target: true assumes
// the adverse touch came first.
func NewLedger(symbol string, initialCash float64, stopFirst bool) *Ledger {
	return &Ledger{
		symbol:    symbol,
		stopFirst: stopFirst,
		cash:      initialCash,
		equity:    initialCash,
		peak:      initialCash,
		dayPeak:   initialCash,
		applied:   make(map[string]struct{}),
	}
}

// Position returns a copy of the current position.
func (l *Ledger) Position() domain.Position { return l.pos }

// State returns the current equity snapshot.
func (l *Ledger) State() domain.EquityState {
	return domain.EquityState{
		Cash:          l.cash,
		Equity:        l.equity,
		RealizedPnL:   l.realized,
		UnrealizedPnL: l.posValue,
		PeakEquity:    l.peak,
		Drawdown:      drawdown(l.peak, l.equity),
		DailyDrawdown: drawdown(l.dayPeak, l.equity),
		TradingDay:    l.day,
	}
}

// Fills returns the append-only fill log.
func (l *Ledger) Fills() []domain.Fill { return l.fills }

// ClosedTrades returns all completed round trips.
func (l *Ledger) ClosedTrades() []domain.ClosedTrade { return l.closed }

// Curve returns the per-bar equity curve recorded by MarkToMarket.
func (l *Ledger) Curve() []domain.EquityPoint { return l.curve }

// ApplyFill transitions the position and cash for one executed fill. Applying
// a fill with an OrderID that was already applied is a no-op: duplicate
// confirmations must not double-mutate state.
func (l *Ledger) ApplyFill(f domain.Fill) error {
	if f.OrderID != "" {
		if _, dup := l.applied[f.OrderID]; dup {
			return nil
		}
	}

	switch {
	case !l.pos.Open():
		l.open(f)

	case f.Direction == l.pos.Direction:
		return fmt.Errorf("%w: %s fill while %s position open (no pyramiding)",
			ErrInvalidOrder, f.Direction, l.pos.Direction)

	default:
		l.close(f)
	}

	if f.OrderID != "" {
		l.applied[f.OrderID] = struct{}{}
	}
	l.fills = append(l.fills, f)
	return nil
}

func (l *Ledger) open(f domain.Fill) {
	cost := f.ExecutedPrice * f.Size
	if f.Direction == domain.Long {
		l.cash -= cost + f.Fee
		l.posValue = cost
	} else {
		l.cash += cost - f.Fee
		l.posValue = -cost
	}
	l.entryFees = f.Fee
	l.pos = domain.Position{
		Symbol:     l.symbol,
		Direction:  f.Direction,
		Size:       f.Size,
		EntryPrice: f.ExecutedPrice,
		OpenedAt:   f.Timestamp,
	}
}

func (l *Ledger) close(f domain.Fill) {
	size := l.pos.Size
	proceeds := f.ExecutedPrice * size

	var gross float64
	if l.pos.Direction == domain.Long {
		l.cash += proceeds - f.Fee
		gross = (f.ExecutedPrice - l.pos.EntryPrice) * size
	} else {
		l.cash -= proceeds + f.Fee
		gross = (l.pos.EntryPrice - f.ExecutedPrice) * size
	}

	fees := l.entryFees + f.Fee
	pnl := gross - fees
	l.realized += pnl

	notional := l.pos.EntryPrice * size
	var ret float64
	if notional > 0 {
		ret = pnl / notional
	}
	l.closed = append(l.closed, domain.ClosedTrade{
		Symbol:     l.symbol,
		Direction:  l.pos.Direction,
		EntryTime:  l.pos.OpenedAt,
		ExitTime:   f.Timestamp,
		EntryPrice: l.pos.EntryPrice,
		ExitPrice:  f.ExecutedPrice,
		Size:       size,
		Fees:       fees,
		PnL:        pnl,
		Return:     ret,
	})

	l.pos = domain.Position{Symbol: l.symbol, Direction: domain.Flat}
	l.posValue = 0
	l.entryFees = 0
}

// SetLevels adjusts the open position's stop and target in place.
func (l *Ledger) SetLevels(stop, target float64) {
	if l.pos.Open() {
		l.pos.StopPrice = stop
		l.pos.TargetPrice = target
	}
}

// ForcedExit reports whether the bar's range touches the open position's
// stop or target, and at which price the position must be closed. When the
// bar straddles both levels the configured intrabar policy decides which
// fires: OHLC data alone cannot order intrabar touches, so stop-first is the
// conservative default.
func (l *Ledger) ForcedExit(bar domain.Bar) (price float64, ok bool) {
	if !l.pos.Open() {
		return 0, false
	}

	var stopHit, targetHit bool
	if l.pos.Direction == domain.Long {
		stopHit = l.pos.StopPrice > 0 && bar.Low <= l.pos.StopPrice
		targetHit = l.pos.TargetPrice > 0 && bar.High >= l.pos.TargetPrice
	} else {
		stopHit = l.pos.StopPrice > 0 && bar.High >= l.pos.StopPrice
		targetHit = l.pos.TargetPrice > 0 && bar.Low <= l.pos.TargetPrice
	}

	switch {
	case stopHit && targetHit:
		if l.stopFirst {
			return l.pos.StopPrice, true
		}
		return l.pos.TargetPrice, true
	case stopHit:
		return l.pos.StopPrice, true
	case targetHit:
		return l.pos.TargetPrice, true
	default:
		return 0, false
	}
}

// MarkToMarket revalues the open position at the bar close and updates the
// equity curve, peak, and drawdowns. Called exactly once per bar, after all
// fills for that bar have been applied.
func (l *Ledger) MarkToMarket(bar domain.Bar) domain.EquityState {
	if l.pos.Open() {
		mark := bar.Close * l.pos.Size
		if l.pos.Direction == domain.Long {
			l.posValue = mark
		} else {
			l.posValue = -mark
		}
	}
	l.equity = l.cash + l.posValue

	if l.equity > l.peak {
		l.peak = l.equity
	}

	day := domain.TradingDay(bar.Timestamp)
	if !day.Equal(l.day) {
		l.day = day
		l.dayPeak = l.equity
	} else if l.equity > l.dayPeak {
		l.dayPeak = l.equity
	}

	l.curve = append(l.curve, domain.EquityPoint{
		Timestamp: bar.Timestamp,
		Equity:    l.equity,
		Drawdown:  drawdown(l.peak, l.equity),
	})
	return l.State()
}

func drawdown(peak, equity float64) float64 {
	if peak <= 0 {
		return 0
	}
	dd := (peak - equity) / peak
	if dd < 0 {
		return 0
	}
	return dd
}
