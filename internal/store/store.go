// Package store persists bars and trading records: Parquet files for the
// local bar cache and SQLite for the trade journal.
package store

import (
	"context"
	"time"

	"marlin/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars for one timeframe. Re-writing bars
	// that already exist overwrites them in place.
	WriteBars(ctx context.Context, tf domain.Timeframe, bars []domain.Bar) error

	// ReadBars returns cached bars for [start, end) in ascending timestamp
	// order. Missing files are not an error; the result is simply shorter.
	ReadBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error)
}

// Journal records executed fills, completed trades, and run summaries so a
// live session can be audited after the fact.
type Journal interface {
	RecordFill(ctx context.Context, runID string, fill domain.Fill) error
	RecordTrade(ctx context.Context, runID string, trade domain.ClosedTrade) error
	RecordRun(ctx context.Context, run RunRecord) error
	Close() error
}

// RunRecord summarises one backtest or live session.
type RunRecord struct {
	ID            string
	Mode          string // "backtest" or "live"
	Symbol        string
	Strategy      string
	Timeframe     string
	StartedAt     time.Time
	FinishedAt    time.Time
	InitialEquity float64
	FinalEquity   float64
	Trades        int
}
