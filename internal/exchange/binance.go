package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"marlin/internal/domain"
	"marlin/internal/util"
)

// Compile-time interface checks.
var _ MarketData = (*BinanceClient)(nil)
var _ OrderPlacer = (*BinanceClient)(nil)

// klinesPerRequest is Binance's maximum klines per call.
const klinesPerRequest = 1000

// BinanceClient serves spot market data and order placement from the Binance
// REST API.
type BinanceClient struct {
	client  *binance.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewBinanceClient creates a client. Keys may be empty for data-only use;
// order placement requires them.
func NewBinanceClient(apiKey, apiSecret string) *BinanceClient {
	return &BinanceClient{
		client: binance.NewClient(apiKey, apiSecret),
		// Well under the 1200 request-weight/min spot limit.
		limiter: util.NewRateLimiter(600),
		log:     slog.Default().With("exchange", "binance"),
	}
}

// binanceSymbol converts "XRP/USDT" to Binance's "XRPUSDT".
func binanceSymbol(symbol string) string {
	base, quote := splitPair(symbol)
	return base + quote
}

// FetchBars pages through the klines endpoint until end is reached.
func (b *BinanceClient) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	period, err := tf.Period()
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	cursor := start
	for cursor.Before(end) {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := b.client.NewKlinesService().
			Symbol(binanceSymbol(symbol)).
			Interval(string(tf)).
			StartTime(cursor.UnixMilli()).
			EndTime(end.UnixMilli() - 1).
			Limit(klinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s %s: %w", symbol, tf, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			bar, err := klineToBar(symbol, k)
			if err != nil {
				return nil, err
			}
			if !bar.Timestamp.Before(end) {
				break
			}
			bars = append(bars, bar)
		}

		last := time.UnixMilli(klines[len(klines)-1].OpenTime).UTC()
		cursor = last.Add(period)
		if len(klines) < klinesPerRequest {
			break
		}
	}

	b.log.Debug("fetched bars", "symbol", symbol, "timeframe", string(tf), "count", len(bars))
	return bars, nil
}

// LatestClosedBar returns the newest bar whose close time has passed.
func (b *BinanceClient) LatestClosedBar(ctx context.Context, symbol string, tf domain.Timeframe) (domain.Bar, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return domain.Bar{}, err
	}

	klines, err := b.client.NewKlinesService().
		Symbol(binanceSymbol(symbol)).
		Interval(string(tf)).
		Limit(2).
		Do(ctx)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("binance latest kline %s %s: %w", symbol, tf, err)
	}

	now := time.Now().UnixMilli()
	for i := len(klines) - 1; i >= 0; i-- {
		if klines[i].CloseTime < now {
			return klineToBar(symbol, klines[i])
		}
	}
	return domain.Bar{}, fmt.Errorf("binance %s %s: no closed bar available", symbol, tf)
}

// PlaceOrder submits a market order keyed by the request ID, so resubmitting
// after a lost response cannot create a second order.
func (b *BinanceClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	side := binance.SideTypeBuy
	if req.Direction == domain.Short {
		side = binance.SideTypeSell
	}

	res, err := b.client.NewCreateOrderService().
		Symbol(binanceSymbol(req.Symbol)).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(req.Size, 'f', -1, 64)).
		NewClientOrderID(req.ID).
		Do(ctx)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("binance create order %s: %w", req.ID, err)
	}

	ack := domain.OrderAck{
		OrderID: res.ClientOrderID,
		Status:  mapBinanceStatus(res.Status),
	}
	fillAckFromTotals(&ack, res.ExecutedQuantity, res.CummulativeQuoteQuantity)
	return ack, nil
}

// OrderStatus looks the order up by its client order ID.
func (b *BinanceClient) OrderStatus(ctx context.Context, symbol, clientOrderID string) (domain.OrderAck, error) {
	res, err := b.client.NewGetOrderService().
		Symbol(binanceSymbol(symbol)).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("binance order status %s: %w", clientOrderID, err)
	}

	ack := domain.OrderAck{
		OrderID: res.ClientOrderID,
		Status:  mapBinanceStatus(res.Status),
	}
	fillAckFromTotals(&ack, res.ExecutedQuantity, res.CummulativeQuoteQuantity)
	return ack, nil
}

func mapBinanceStatus(s binance.OrderStatusType) domain.OrderStatus {
	switch s {
	case binance.OrderStatusTypeFilled:
		return domain.OrderStatusFilled
	case binance.OrderStatusTypeRejected, binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusPending
	}
}

// fillAckFromTotals derives executed size and average price from the executed
// base quantity and cumulative quote amount Binance reports.
func fillAckFromTotals(ack *domain.OrderAck, executedQty, quoteQty string) {
	size, err1 := strconv.ParseFloat(executedQty, 64)
	quote, err2 := strconv.ParseFloat(quoteQty, 64)
	if err1 != nil || err2 != nil || size <= 0 {
		return
	}
	ack.ExecutedSize = size
	ack.ExecutedPrice = quote / size
}

func klineToBar(symbol string, k *binance.Kline) (domain.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing kline open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing kline high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing kline low %q: %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing kline close %q: %w", k.Close, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing kline volume %q: %w", k.Volume, err)
	}

	return domain.Bar{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
