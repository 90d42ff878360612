// Package engine contains the execution core: order simulation, the
// position/equity ledger, risk gating, the adaptive strategy selector, and
// the bar-driven loop shared by backtests and live trading.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marlin/internal/domain"
	"marlin/internal/exchange"
	"marlin/internal/strategy"
)

// Engine drives one symbol through the unified per-bar procedure. The same
// loop body serves backtests (bars from history) and live trading (bars from
// the exchange); only the bar source and the order executor differ.
type Engine struct {
	symbol string
	tf     domain.Timeframe
	trader *trader
	sel    *Selector
	log    *slog.Logger
}

// New creates an engine running strat against the given ledger and executor.
// sel may be nil for single-strategy runs; when present, the selector's
// shadow books are advanced every bar and the real book switches strategy at
// the selector's cadence.
func New(symbol string, tf domain.Timeframe, strat strategy.Strategy, ledger *Ledger,
	risk *RiskManager, exec OrderExecutor, feeRate float64, sel *Selector, log *slog.Logger) *Engine {
	return &Engine{
		symbol: symbol,
		tf:     tf,
		trader: newTrader(symbol, strat, ledger, risk, exec, feeRate, log),
		sel:    sel,
		log:    log,
	}
}

// Ledger returns the real book.
func (e *Engine) Ledger() *Ledger { return e.trader.ledger }

// ActiveStrategy returns the strategy currently driving the real book.
func (e *Engine) ActiveStrategy() strategy.Strategy { return e.trader.strat }

// ValidateBars checks that bars are strictly increasing and exactly one
// timeframe period apart. Any violation is ErrDataGap: silently trading
// across missing bars corrupts every downstream statistic, so the run must
// abort instead.
func ValidateBars(bars []domain.Bar, tf domain.Timeframe) error {
	period, err := tf.Period()
	if err != nil {
		return err
	}
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1].Timestamp, bars[i].Timestamp
		if !cur.After(prev) {
			return fmt.Errorf("%w: bar %d at %s does not advance past %s",
				ErrDataGap, i, cur.UTC().Format("2006-01-02T15:04:05Z"), prev.UTC().Format("2006-01-02T15:04:05Z"))
		}
		if cur.Sub(prev) != period {
			return fmt.Errorf("%w: %s between %s and %s, want %s",
				ErrDataGap, cur.Sub(prev), prev.UTC().Format("2006-01-02T15:04:05Z"), cur.UTC().Format("2006-01-02T15:04:05Z"), period)
		}
	}
	return nil
}

// Run replays the bar series through the per-bar procedure. It validates the
// series first and returns ErrDataGap on any irregularity. The ledger's curve,
// fills, and closed trades hold the results afterwards.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar) error {
	if err := ValidateBars(bars, e.tf); err != nil {
		return err
	}
	e.log.Info("run start",
		"symbol", e.symbol, "timeframe", string(e.tf),
		"strategy", e.trader.strat.Name(), "bars", len(bars))

	for i := range bars {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.Step(ctx, bars, i); err != nil {
			return err
		}
	}

	st := e.trader.ledger.State()
	e.log.Info("run done",
		"equity", st.Equity, "realized", st.RealizedPnL,
		"trades", len(e.trader.ledger.ClosedTrades()))
	return nil
}

// RunLive feeds closed bars from the exchange through the same per-bar
// procedure as Run. history seeds indicator context only; no decisions are
// made on it. The loop runs until ctx is cancelled. Integrity failures (data
// gaps, reconciliation conflicts, execution timeouts) halt the trader rather
// than trade on a state it cannot trust.
func (e *Engine) RunLive(ctx context.Context, md exchange.MarketData, history []domain.Bar) error {
	period, err := e.tf.Period()
	if err != nil {
		return err
	}
	if err := ValidateBars(history, e.tf); err != nil {
		return err
	}

	bars := make([]domain.Bar, len(history), len(history)+4096)
	copy(bars, history)
	e.log.Info("live start",
		"symbol", e.symbol, "timeframe", string(e.tf),
		"strategy", e.trader.strat.Name(), "history", len(bars))

	poll := period / 20
	if poll < 2*time.Second {
		poll = 2 * time.Second
	}
	if poll > 30*time.Second {
		poll = 30 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		bar, err := md.LatestClosedBar(ctx, e.symbol, e.tf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("fetching latest bar", "error", err)
			continue
		}
		if len(bars) > 0 && !bar.Timestamp.After(bars[len(bars)-1].Timestamp) {
			continue
		}
		if len(bars) > 0 && bar.Timestamp.Sub(bars[len(bars)-1].Timestamp) != period {
			return fmt.Errorf("%w: %w: bar at %s does not follow %s",
				ErrHalted, ErrDataGap,
				bar.Timestamp.UTC().Format(time.RFC3339), bars[len(bars)-1].Timestamp.UTC().Format(time.RFC3339))
		}

		bars = append(bars, bar)
		if err := e.Step(ctx, bars, len(bars)-1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrHalted, err)
		}
	}
}

// Step processes one bar: the real book first, then the shadow books, then a
// selector re-evaluation when the cadence boundary is reached. Exposed so the
// live loop can feed bars one at a time.
func (e *Engine) Step(ctx context.Context, bars []domain.Bar, i int) error {
	if err := e.trader.step(ctx, bars, i); err != nil {
		return err
	}
	if e.sel == nil {
		return nil
	}

	e.sel.ObserveBar(ctx, bars, i)
	if e.sel.Due() && e.sel.Reevaluate() {
		// The real book keeps its position and equity across a switch; only
		// the signal source changes.
		e.trader.strat = e.sel.Active()
	}
	return nil
}
