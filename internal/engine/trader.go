package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"marlin/internal/domain"
	"marlin/internal/strategy"
)

// trader runs one strategy against one ledger through one order executor.
// The real order flow and every shadow candidate use the same per-bar
// procedure, so performance is measured identically regardless of which
// strategy is live.
type trader struct {
	symbol  string
	strat   strategy.Strategy
	ledger  *Ledger
	risk    *RiskManager
	exec    OrderExecutor
	feeRate float64
	log     *slog.Logger
}

func newTrader(symbol string, strat strategy.Strategy, ledger *Ledger, risk *RiskManager, exec OrderExecutor, feeRate float64, log *slog.Logger) *trader {
	return &trader{
		symbol:  symbol,
		strat:   strat,
		ledger:  ledger,
		risk:    risk,
		exec:    exec,
		feeRate: feeRate,
		log:     log,
	}
}

// step processes bar i: forced exits, then the strategy signal, then risk
// sizing and execution, and finally the once-per-bar mark-to-market.
// Decisions at bar i read only bars at indices <= i.
func (t *trader) step(ctx context.Context, bars []domain.Bar, i int) error {
	bar := bars[i]

	// Stop/target checks run before any signal-driven activity, using the
	// bar's intrabar range. Forced exits fill at the level itself, not at a
	// slipped price, but still pay the fee.
	if price, ok := t.ledger.ForcedExit(bar); ok {
		pos := t.ledger.Position()
		fill := domain.Fill{
			OrderID:       uuid.NewString(),
			Symbol:        t.symbol,
			Direction:     pos.Direction.Opposite(),
			ExecutedPrice: price,
			Size:          pos.Size,
			Fee:           price * pos.Size * t.feeRate,
			Timestamp:     bar.Timestamp,
		}
		if err := t.ledger.ApplyFill(fill); err != nil {
			return err
		}
		t.log.Debug("forced exit",
			"strategy", t.strat.Name(), "price", price, "size", pos.Size)
	}

	sig := t.strat.Evaluate(bars, i)

	// Signal-driven exit: an explicit exit flag, or a signal in the
	// opposite direction of the open position.
	if pos := t.ledger.Position(); pos.Open() {
		if sig.Exit || (sig.Direction != domain.Flat && sig.Direction != pos.Direction) {
			if err := t.submit(ctx, bar, pos.Direction.Opposite(), pos.Size, domain.Signal{}); err != nil {
				return err
			}
		}
	}

	// Entry, only when flat and only if the risk gate is open.
	if pos := t.ledger.Position(); !pos.Open() && sig.Direction != domain.Flat {
		if size, ok := t.risk.Size(sig, t.ledger.State(), pos, bar.Close, bar.Timestamp); ok {
			if err := t.submit(ctx, bar, sig.Direction, size, sig); err != nil {
				return err
			}
		}
	}

	t.ledger.MarkToMarket(bar)
	return nil
}

// submit executes one order against the bar and applies the resulting fill.
// Invalid orders are skipped and logged, never fatal; execution-integrity
// errors propagate to the loop.
func (t *trader) submit(ctx context.Context, bar domain.Bar, dir domain.Direction, size float64, sig domain.Signal) error {
	req := domain.OrderRequest{
		ID:             uuid.NewString(),
		Symbol:         t.symbol,
		Direction:      dir,
		Size:           size,
		ReferencePrice: bar.Close,
		Timestamp:      bar.Timestamp,
	}

	fill, err := t.exec.Execute(ctx, req, bar)
	if err != nil {
		if errors.Is(err, ErrInvalidOrder) {
			t.log.Warn("order skipped", "strategy", t.strat.Name(), "error", err)
			return nil
		}
		return err
	}

	if err := t.ledger.ApplyFill(fill); err != nil {
		return err
	}
	if sig.StopPrice > 0 || sig.TargetPrice > 0 {
		t.ledger.SetLevels(sig.StopPrice, sig.TargetPrice)
	}
	return nil
}
