package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"marlin/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Journal = (*SQLiteJournal)(nil)

// SQLiteJournal records fills, trades, and run summaries in a SQLite
// database. The fills table keys on order_id, so recording the same fill
// twice leaves a single row.
type SQLiteJournal struct {
	db *sql.DB
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	mode           TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	strategy       TEXT NOT NULL,
	timeframe      TEXT NOT NULL,
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER NOT NULL,
	initial_equity REAL NOT NULL,
	final_equity   REAL NOT NULL,
	trades         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fills (
	order_id  TEXT PRIMARY KEY,
	run_id    TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	direction TEXT NOT NULL,
	price     REAL NOT NULL,
	size      REAL NOT NULL,
	fee       REAL NOT NULL,
	ts        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_ts    INTEGER NOT NULL,
	exit_ts     INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	exit_price  REAL NOT NULL,
	size        REAL NOT NULL,
	fees        REAL NOT NULL,
	pnl         REAL NOT NULL,
	ret         REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id);
CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
`

// NewSQLiteJournal opens (or creates) the journal database at dbPath and
// applies the schema.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error { return j.db.Close() }

// RecordFill inserts a fill. A fill whose order_id is already journaled is
// silently ignored.
func (j *SQLiteJournal) RecordFill(ctx context.Context, runID string, f domain.Fill) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fills (order_id, run_id, symbol, direction, price, size, fee, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.OrderID, runID, f.Symbol, string(f.Direction),
		f.ExecutedPrice, f.Size, f.Fee, f.Timestamp.UnixMilli())
	return err
}

// RecordTrade inserts a completed round trip.
func (j *SQLiteJournal) RecordTrade(ctx context.Context, runID string, t domain.ClosedTrade) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (run_id, symbol, direction, entry_ts, exit_ts, entry_price, exit_price, size, fees, pnl, ret)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, t.Symbol, string(t.Direction),
		t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(),
		t.EntryPrice, t.ExitPrice, t.Size, t.Fees, t.PnL, t.Return)
	return err
}

// RecordRun upserts the run summary row.
func (j *SQLiteJournal) RecordRun(ctx context.Context, run RunRecord) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, symbol, strategy, timeframe, started_at, finished_at, initial_equity, final_equity, trades)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			final_equity = excluded.final_equity,
			trades = excluded.trades`,
		run.ID, run.Mode, run.Symbol, run.Strategy, run.Timeframe,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.InitialEquity, run.FinalEquity, run.Trades)
	return err
}

// FillCount returns the number of journaled fills for a run.
func (j *SQLiteJournal) FillCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fills WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
