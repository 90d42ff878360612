package store

import (
	"context"
	"log/slog"
	"time"

	"marlin/internal/domain"
	"marlin/internal/exchange"
)

// Compile-time interface check.
var _ exchange.MarketData = (*CachingMarketData)(nil)

// CachingMarketData serves bars from the local Parquet cache and fetches only
// the missing tail from the upstream exchange. Fetched bars are written back
// so the next run starts warm.
type CachingMarketData struct {
	upstream exchange.MarketData
	cache    BarStore
	log      *slog.Logger
}

// NewCachingMarketData wraps upstream with the given cache.
func NewCachingMarketData(upstream exchange.MarketData, cache BarStore) *CachingMarketData {
	return &CachingMarketData{
		upstream: upstream,
		cache:    cache,
		log:      slog.Default().With("component", "barcache"),
	}
}

// FetchBars returns bars for [start, end), from cache where possible.
func (c *CachingMarketData) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	period, err := tf.Period()
	if err != nil {
		return nil, err
	}

	cached, err := c.cache.ReadBars(ctx, symbol, tf, start, end)
	if err != nil {
		return nil, err
	}

	// The cache satisfies the request only when it is contiguous from start
	// to end; any hole means refetching the whole tail from the last good
	// bar onward.
	fetchFrom := start
	for _, b := range cached {
		if !b.Timestamp.Equal(fetchFrom) {
			break
		}
		fetchFrom = fetchFrom.Add(period)
	}
	contiguous := cached[:int(fetchFrom.Sub(start)/period)]

	if !fetchFrom.Before(end) {
		return contiguous, nil
	}

	fresh, err := c.upstream.FetchBars(ctx, symbol, tf, fetchFrom, end)
	if err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		if werr := c.cache.WriteBars(ctx, tf, fresh); werr != nil {
			c.log.Warn("caching bars", "error", werr)
		}
	}
	c.log.Debug("bars served",
		"symbol", symbol, "timeframe", string(tf),
		"cached", len(contiguous), "fetched", len(fresh))
	return append(contiguous, fresh...), nil
}

// LatestClosedBar always goes upstream; the newest bar is never cached.
func (c *CachingMarketData) LatestClosedBar(ctx context.Context, symbol string, tf domain.Timeframe) (domain.Bar, error) {
	return c.upstream.LatestClosedBar(ctx, symbol, tf)
}
