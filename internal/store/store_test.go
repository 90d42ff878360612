package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"marlin/internal/domain"
)

var testStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func hourlyBars(start time.Time, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol:    "XRP/USDT",
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

func TestParquetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewParquetStore(t.TempDir())
	bars := hourlyBars(testStart, 100, 101, 102)

	if err := s.WriteBars(ctx, "1h", bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := s.ReadBars(ctx, "XRP/USDT", "1h", testStart, testStart.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("read %d bars, want 3", len(got))
	}
	for i, b := range got {
		if !b.Timestamp.Equal(bars[i].Timestamp) || b.Close != bars[i].Close {
			t.Errorf("bar %d = %+v, want %+v", i, b, bars[i])
		}
	}
}

func TestParquetMergeDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := NewParquetStore(t.TempDir())

	if err := s.WriteBars(ctx, "1h", hourlyBars(testStart, 100, 101)); err != nil {
		t.Fatalf("first write: %v", err)
	}
	// Overlapping write: bar at +1h repeats with a revised close.
	if err := s.WriteBars(ctx, "1h", hourlyBars(testStart.Add(time.Hour), 999, 103)); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := s.ReadBars(ctx, "XRP/USDT", "1h", testStart, testStart.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("read %d bars, want 3 after dedupe", len(got))
	}
	if got[1].Close != 999 {
		t.Errorf("overlapping bar close = %v, want incoming record to win", got[1].Close)
	}
}

func TestParquetReadWindow(t *testing.T) {
	ctx := context.Background()
	s := NewParquetStore(t.TempDir())
	if err := s.WriteBars(ctx, "1h", hourlyBars(testStart, 100, 101, 102, 103)); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	// [start, end): the bar at end is excluded.
	got, err := s.ReadBars(ctx, "XRP/USDT", "1h", testStart.Add(time.Hour), testStart.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 || got[0].Close != 101 || got[1].Close != 102 {
		t.Errorf("window read = %+v", got)
	}
}

func TestParquetCrossYearWrite(t *testing.T) {
	ctx := context.Background()
	s := NewParquetStore(t.TempDir())
	newYear := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	if err := s.WriteBars(ctx, "1h", hourlyBars(newYear, 100, 101, 102)); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := s.ReadBars(ctx, "XRP/USDT", "1h", newYear, newYear.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("read %d bars across year boundary, want 3", len(got))
	}
}

// --- caching market data ---

type fakeUpstream struct {
	bars  []domain.Bar
	calls int
}

func (f *fakeUpstream) FetchBars(_ context.Context, _ string, _ domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	f.calls++
	var out []domain.Bar
	for _, b := range f.bars {
		if !b.Timestamp.Before(start) && b.Timestamp.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeUpstream) LatestClosedBar(_ context.Context, _ string, _ domain.Timeframe) (domain.Bar, error) {
	return f.bars[len(f.bars)-1], nil
}

func TestCachingMarketDataWarmCache(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{bars: hourlyBars(testStart, 100, 101, 102, 103)}
	cache := NewParquetStore(t.TempDir())
	md := NewCachingMarketData(upstream, cache)

	end := testStart.Add(4 * time.Hour)
	first, err := md.FetchBars(ctx, "XRP/USDT", "1h", testStart, end)
	if err != nil {
		t.Fatalf("cold fetch: %v", err)
	}
	if len(first) != 4 || upstream.calls != 1 {
		t.Fatalf("cold fetch: %d bars, %d upstream calls", len(first), upstream.calls)
	}

	second, err := md.FetchBars(ctx, "XRP/USDT", "1h", testStart, end)
	if err != nil {
		t.Fatalf("warm fetch: %v", err)
	}
	if len(second) != 4 {
		t.Fatalf("warm fetch: %d bars, want 4", len(second))
	}
	if upstream.calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (warm fetch served from cache)", upstream.calls)
	}
}

func TestCachingMarketDataFetchesTail(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{bars: hourlyBars(testStart, 100, 101, 102, 103, 104, 105)}
	cache := NewParquetStore(t.TempDir())
	md := NewCachingMarketData(upstream, cache)

	if _, err := md.FetchBars(ctx, "XRP/USDT", "1h", testStart, testStart.Add(3*time.Hour)); err != nil {
		t.Fatalf("initial fetch: %v", err)
	}

	got, err := md.FetchBars(ctx, "XRP/USDT", "1h", testStart, testStart.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("extended fetch: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("extended fetch: %d bars, want 6", len(got))
	}
	for i, b := range got {
		if b.Close != 100+float64(i) {
			t.Errorf("bar %d close = %v, want %v", i, b.Close, 100+float64(i))
		}
	}
}

// --- journal ---

func TestJournalRecordsAndDeduplicatesFills(t *testing.T) {
	ctx := context.Background()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	defer j.Close()

	fill := domain.Fill{
		OrderID: "ord-1", Symbol: "XRP/USDT", Direction: domain.Long,
		ExecutedPrice: 100, Size: 10, Fee: 1, Timestamp: testStart,
	}
	if err := j.RecordFill(ctx, "run-1", fill); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}
	// A duplicate confirmation must not create a second row.
	if err := j.RecordFill(ctx, "run-1", fill); err != nil {
		t.Fatalf("duplicate RecordFill: %v", err)
	}

	n, err := j.FillCount(ctx, "run-1")
	if err != nil {
		t.Fatalf("FillCount: %v", err)
	}
	if n != 1 {
		t.Errorf("fill count = %d, want 1", n)
	}
}

func TestJournalRunUpsert(t *testing.T) {
	ctx := context.Background()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	defer j.Close()

	run := RunRecord{
		ID: "run-1", Mode: "backtest", Symbol: "XRP/USDT", Strategy: "sma",
		Timeframe: "1h", StartedAt: testStart, FinishedAt: testStart,
		InitialEquity: 10000, FinalEquity: 10000,
	}
	if err := j.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	run.FinalEquity = 10500
	run.Trades = 3
	if err := j.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun update: %v", err)
	}

	if err := j.RecordTrade(ctx, "run-1", domain.ClosedTrade{
		Symbol: "XRP/USDT", Direction: domain.Long,
		EntryTime: testStart, ExitTime: testStart.Add(time.Hour),
		EntryPrice: 100, ExitPrice: 105, Size: 10, PnL: 50, Return: 0.05,
	}); err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
}
