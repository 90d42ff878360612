// Package domain defines the core value types shared across the marlin
// engine: bars, signals, orders, fills, positions, and equity state.
package domain

import "time"

// Direction is the trade direction carried by signals, orders, and positions.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
	Flat  Direction = "flat"
)

// Opposite returns the closing direction for an open position.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Flat
	}
}

// Bar is a single OHLCV candle for a fixed period. Bars are immutable once
// produced and arrive in strictly increasing timestamp order.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Signal is a strategy's directional opinion for one bar. StopPrice and
// TargetPrice are zero when the strategy does not set them.
type Signal struct {
	Direction   Direction
	StopPrice   float64
	TargetPrice float64
	// Exit marks a close-position request for the currently open direction,
	// independent of stop/target levels.
	Exit bool
}

// FlatSignal is the no-trade signal.
func FlatSignal() Signal { return Signal{Direction: Flat} }

// OrderRequest describes an order to be executed against a single bar. It is
// created and consumed within that bar's processing.
type OrderRequest struct {
	ID             string
	Symbol         string
	Direction      Direction
	Size           float64
	ReferencePrice float64
	Timestamp      time.Time
}

// Fill is the immutable record of an executed order. OrderID keys idempotent
// reconciliation: applying the same fill twice must be a no-op downstream.
type Fill struct {
	OrderID       string
	Symbol        string
	Direction     Direction
	ExecutedPrice float64
	Size          float64
	Fee           float64
	Timestamp     time.Time
}

// Position is the single open position per symbol. Size > 0 while Direction
// is not Flat; a Flat position has Size == 0.
type Position struct {
	Symbol      string
	Direction   Direction
	Size        float64
	EntryPrice  float64
	StopPrice   float64
	TargetPrice float64
	OpenedAt    time.Time
}

// Open reports whether the position holds any exposure.
func (p Position) Open() bool { return p.Direction != Flat && p.Size > 0 }

// EquityState is a snapshot of the cash/equity ledger. UnrealizedPnL is the
// open position's liquidation value at the last mark: positive for longs,
// negative for a short's buyback liability, zero when flat.
//
// Invariants: Equity = Cash + UnrealizedPnL; PeakEquity is a running maximum
// of Equity since inception; Drawdown = (PeakEquity-Equity)/PeakEquity >= 0;
// DailyDrawdown resets at each TradingDay boundary.
type EquityState struct {
	Cash          float64
	Equity        float64
	RealizedPnL   float64
	UnrealizedPnL float64
	PeakEquity    float64
	Drawdown      float64
	DailyDrawdown float64
	TradingDay    time.Time
}

// ClosedTrade is one completed round trip, entry to exit.
type ClosedTrade struct {
	Symbol     string
	Direction  Direction
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Fees       float64
	PnL        float64
	Return     float64
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
	Drawdown  float64
}

// OrderStatus is the exchange-reported lifecycle state of a live order.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusRejected OrderStatus = "rejected"
)

// OrderAck is an order-execution collaborator's response to a submission or
// status poll.
type OrderAck struct {
	OrderID       string
	Status        OrderStatus
	ExecutedPrice float64
	ExecutedSize  float64
	Fee           float64
}
