package engine

import (
	"context"
	"fmt"

	"marlin/internal/domain"
)

// OrderExecutor executes an order against the current bar. The backtest uses
// the deterministic FillSimulator; live trading uses a LiveExecutor wrapping
// an exchange collaborator. The execution loop is identical in both modes.
type OrderExecutor interface {
	Execute(ctx context.Context, req domain.OrderRequest, bar domain.Bar) (domain.Fill, error)
}

// Compile-time interface check.
var _ OrderExecutor = (*FillSimulator)(nil)

// FillSimulator converts order requests into fills under deterministic
// slippage and fee models, so backtest results are reproducible bit for bit.
type FillSimulator struct {
	slippageTicks int
	tickSize      float64
	feeRate       float64
}

// NewFillSimulator creates a FillSimulator. Slippage is expressed in ticks
// of tickSize, always applied against the trader.
func NewFillSimulator(slippageTicks int, tickSize, feeRate float64) *FillSimulator {
	return &FillSimulator{
		slippageTicks: slippageTicks,
		tickSize:      tickSize,
		feeRate:       feeRate,
	}
}

// slippage returns the absolute price adjustment applied to every fill.
func (f *FillSimulator) slippage() float64 {
	return float64(f.slippageTicks) * f.tickSize
}

// Execute fills the request against the bar. Buys fill above the reference
// price and sells below it by the configured slippage. The reference price
// must sit inside the bar's range, widened by the slippage tolerance;
// anything else is a stale quote and the order is rejected.
func (f *FillSimulator) Execute(_ context.Context, req domain.OrderRequest, bar domain.Bar) (domain.Fill, error) {
	if req.Size <= 0 {
		return domain.Fill{}, fmt.Errorf("%w: size %v", ErrInvalidOrder, req.Size)
	}
	if req.Direction != domain.Long && req.Direction != domain.Short {
		return domain.Fill{}, fmt.Errorf("%w: direction %q", ErrInvalidOrder, req.Direction)
	}

	slip := f.slippage()
	if req.ReferencePrice < bar.Low-slip || req.ReferencePrice > bar.High+slip {
		return domain.Fill{}, fmt.Errorf("%w: reference price %v outside bar range [%v, %v]",
			ErrInvalidOrder, req.ReferencePrice, bar.Low, bar.High)
	}

	price := req.ReferencePrice
	if req.Direction == domain.Long {
		price += slip
	} else {
		price -= slip
	}

	return domain.Fill{
		OrderID:       req.ID,
		Symbol:        req.Symbol,
		Direction:     req.Direction,
		ExecutedPrice: price,
		Size:          req.Size,
		Fee:           price * req.Size * f.feeRate,
		Timestamp:     bar.Timestamp,
	}, nil
}

// FeeRate exposes the simulator's fee model for forced exits, which fill at
// the exact stop or target price but still pay the taker fee.
func (f *FillSimulator) FeeRate() float64 { return f.feeRate }
