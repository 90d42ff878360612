// Package exchange abstracts market-data retrieval and order placement so
// the engine never depends on a concrete venue. Backtests only need
// MarketData; live trading also needs an OrderPlacer.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marlin/internal/domain"
)

// MarketData serves historical and latest candle data.
type MarketData interface {
	// FetchBars returns closed bars for [start, end) in ascending timestamp
	// order. Implementations paginate as needed.
	FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error)

	// LatestClosedBar returns the most recent fully closed bar. The bar still
	// forming is never returned.
	LatestClosedBar(ctx context.Context, symbol string, tf domain.Timeframe) (domain.Bar, error)
}

// OrderPlacer submits market orders and reports their status. Every order
// carries a caller-generated client order ID; status lookups key on it so a
// lost response can be reconciled without risk of double submission.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error)
	OrderStatus(ctx context.Context, symbol, clientOrderID string) (domain.OrderAck, error)
}

// Client bundles both exchange roles.
type Client interface {
	MarketData
	OrderPlacer
}

// New returns the client for a configured exchange name.
func New(name, apiKey, apiSecret string) (Client, error) {
	switch name {
	case "", "binance":
		return NewBinanceClient(apiKey, apiSecret), nil
	case "alpaca":
		return NewAlpacaClient(apiKey, apiSecret, ""), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", name)
	}
}

// splitPair splits "XRP/USDT" into base and quote. A symbol without a slash
// comes back as (symbol, "").
func splitPair(symbol string) (base, quote string) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok {
		return symbol, ""
	}
	return base, quote
}
