package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"marlin/internal/domain"
)

// Compile-time interface checks.
var _ MarketData = (*AlpacaClient)(nil)
var _ OrderPlacer = (*AlpacaClient)(nil)

// AlpacaClient serves crypto market data and order placement from the Alpaca
// API. Alpaca uses the same slash pair notation as the rest of marlin, so
// symbols pass through unchanged.
type AlpacaClient struct {
	trading *alpaca.Client
	data    *marketdata.Client
	log     *slog.Logger
}

// NewAlpacaClient creates a client. baseURL selects paper or live trading;
// empty means the SDK default.
func NewAlpacaClient(apiKey, apiSecret, baseURL string) *AlpacaClient {
	return &AlpacaClient{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		log: slog.Default().With("exchange", "alpaca"),
	}
}

// alpacaTimeFrame maps a marlin timeframe onto the market-data API's.
func alpacaTimeFrame(tf domain.Timeframe) (marketdata.TimeFrame, error) {
	switch tf {
	case "1m":
		return marketdata.OneMin, nil
	case "5m":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15m":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "30m":
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case "1h":
		return marketdata.OneHour, nil
	case "4h":
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case "1d":
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// FetchBars returns crypto bars for [start, end). The SDK paginates
// internally.
func (a *AlpacaClient) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	frame, err := alpacaTimeFrame(tf)
	if err != nil {
		return nil, err
	}

	cryptoBars, err := a.data.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
		TimeFrame: frame,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca crypto bars %s %s: %w", symbol, tf, err)
	}

	bars := make([]domain.Bar, 0, len(cryptoBars))
	for _, cb := range cryptoBars {
		if !cb.Timestamp.Before(end) {
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: cb.Timestamp.UTC(),
			Open:      cb.Open,
			High:      cb.High,
			Low:       cb.Low,
			Close:     cb.Close,
			Volume:    cb.Volume,
		})
	}

	a.log.Debug("fetched bars", "symbol", symbol, "timeframe", string(tf), "count", len(bars))
	return bars, nil
}

// LatestClosedBar returns the newest bar that ended at or before now.
func (a *AlpacaClient) LatestClosedBar(ctx context.Context, symbol string, tf domain.Timeframe) (domain.Bar, error) {
	period, err := tf.Period()
	if err != nil {
		return domain.Bar{}, err
	}

	now := time.Now().UTC()
	bars, err := a.FetchBars(ctx, symbol, tf, now.Add(-3*period), now)
	if err != nil {
		return domain.Bar{}, err
	}

	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Timestamp.Add(period).After(now) {
			return bars[i], nil
		}
	}
	return domain.Bar{}, fmt.Errorf("alpaca %s %s: no closed bar available", symbol, tf)
}

// PlaceOrder submits a market order with the request ID as client order ID.
func (a *AlpacaClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	side := alpaca.Buy
	if req.Direction == domain.Short {
		side = alpaca.Sell
	}
	qty := decimal.NewFromFloat(req.Size)

	order, err := a.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.GTC,
		ClientOrderID: req.ID,
	})
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("alpaca place order %s: %w", req.ID, err)
	}
	return alpacaAck(order), nil
}

// OrderStatus looks the order up by its client order ID.
func (a *AlpacaClient) OrderStatus(ctx context.Context, _ string, clientOrderID string) (domain.OrderAck, error) {
	order, err := a.trading.GetOrderByClientOrderID(clientOrderID)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("alpaca order status %s: %w", clientOrderID, err)
	}
	return alpacaAck(order), nil
}

func alpacaAck(order *alpaca.Order) domain.OrderAck {
	ack := domain.OrderAck{
		OrderID: order.ClientOrderID,
		Status:  mapAlpacaStatus(order.Status),
	}
	if order.FilledAvgPrice != nil {
		price, _ := order.FilledAvgPrice.Float64()
		size, _ := order.FilledQty.Float64()
		if size > 0 {
			ack.ExecutedPrice = price
			ack.ExecutedSize = size
		}
	}
	return ack
}

func mapAlpacaStatus(status string) domain.OrderStatus {
	switch status {
	case "filled":
		return domain.OrderStatusFilled
	case "rejected", "canceled", "expired":
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusPending
	}
}
