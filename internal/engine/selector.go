package engine

import (
	"context"
	"log/slog"
	"sync"

	"marlin/internal/domain"
	"marlin/internal/report"
	"marlin/internal/strategy"
)

// Candidate is one strategy tracked by the selector. Every candidate runs the
// full trading procedure against its own shadow ledger with the same initial
// cash, fee rate, slippage model, and risk rules as the real book, so shadow
// scores are directly comparable to live performance.
type Candidate struct {
	trader *trader
	err    error
}

// Strategy returns the candidate's strategy.
func (c *Candidate) Strategy() strategy.Strategy { return c.trader.strat }

// Curve returns the candidate's shadow equity curve.
func (c *Candidate) Curve() []domain.EquityPoint { return c.trader.ledger.Curve() }

// Performance summarises one candidate's shadow record over a window.
type Performance struct {
	Strategy    string
	Trades      int
	Wins        int
	Sharpe      float64
	MaxDrawdown float64
}

// Selector maintains one shadow ledger per candidate strategy and decides,
// at a fixed cadence, which strategy the real order flow should run.
type Selector struct {
	candidates []*Candidate
	windowBars int
	cadence    int
	hysteresis float64
	perYear    float64

	active    int
	evaluated bool
	barCount  int
	log       *slog.Logger
}

// SelectorConfig carries the selector tuning knobs.
type SelectorConfig struct {
	// WindowBars is the trailing score window. Candidates with fewer curve
	// points than this are scored over what they have.
	WindowBars int
	// CadenceBars is the number of bars between re-evaluations.
	CadenceBars int
	// Hysteresis is the score margin the best candidate must beat the active
	// one by before a switch happens.
	Hysteresis float64
}

// NewSelector builds a selector over the given candidate strategies. Each
// candidate gets its own ledger, risk manager, and fill simulator. initial is
// the strategy name to start with; empty means auto, resolved at the first
// re-evaluation (until then the first candidate drives the real book).
func NewSelector(cfg SelectorConfig, symbol string, strats []strategy.Strategy, initial string,
	initialCash float64, tf domain.Timeframe, sim *FillSimulator, risk *RiskManager, stopFirst bool, log *slog.Logger) *Selector {

	s := &Selector{
		windowBars: cfg.WindowBars,
		cadence:    cfg.CadenceBars,
		hysteresis: cfg.Hysteresis,
		perYear:    tf.BarsPerYear(),
		log:        log,
	}
	for i, st := range strats {
		ledger := NewLedger(symbol, initialCash, stopFirst)
		s.candidates = append(s.candidates, &Candidate{
			trader: newTrader(symbol, st, ledger, risk, sim, sim.FeeRate(), log),
		})
		if initial != "" && st.Name() == initial {
			s.active = i
			s.evaluated = true
		}
	}
	return s
}

// Active returns the strategy currently selected for the real order flow.
func (s *Selector) Active() strategy.Strategy {
	return s.candidates[s.active].trader.strat
}

// Candidates returns the tracked candidates.
func (s *Selector) Candidates() []*Candidate { return s.candidates }

// ObserveBar advances every shadow ledger through bar i. Shadow updates for
// different candidates are independent, so they run concurrently; ObserveBar
// returns after all of them complete. A shadow's execution error disables that
// candidate rather than halting the run.
func (s *Selector) ObserveBar(ctx context.Context, bars []domain.Bar, i int) {
	var wg sync.WaitGroup
	for _, c := range s.candidates {
		if c.err != nil {
			continue
		}
		wg.Add(1)
		go func(c *Candidate) {
			defer wg.Done()
			if err := c.trader.step(ctx, bars, i); err != nil {
				c.err = err
				s.log.Warn("shadow candidate disabled",
					"strategy", c.trader.strat.Name(), "error", err)
			}
		}(c)
	}
	wg.Wait()
	s.barCount++
}

// Reevaluate scores all candidates over the trailing window and switches the
// active strategy when the best score exceeds the active score by more than
// the hysteresis margin. It reports whether a switch happened. Called only at
// cadence boundaries; Due tells the loop when.
func (s *Selector) Reevaluate() (switched bool) {
	bestIdx, bestScore := -1, 0.0
	for i, c := range s.candidates {
		if c.err != nil {
			continue
		}
		score := s.score(c)
		if bestIdx < 0 || score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return false
	}

	// First evaluation in auto mode picks the best candidate outright.
	if !s.evaluated {
		s.evaluated = true
		if bestIdx != s.active {
			s.switchTo(bestIdx, bestScore)
			return true
		}
		return false
	}

	if bestIdx == s.active {
		return false
	}
	activeScore := s.score(s.candidates[s.active])
	if bestScore <= activeScore+s.hysteresis {
		return false
	}
	s.switchTo(bestIdx, bestScore)
	return true
}

// Due reports whether the loop has reached a re-evaluation boundary.
func (s *Selector) Due() bool {
	return s.cadence > 0 && s.barCount > 0 && s.barCount%s.cadence == 0
}

func (s *Selector) switchTo(idx int, score float64) {
	from := s.candidates[s.active].trader.strat.Name()
	to := s.candidates[idx].trader.strat.Name()
	s.active = idx
	s.log.Info("strategy switch", "from", from, "to", to, "score", score)
}

// score is the annualised Sharpe of the candidate's shadow equity returns over
// the trailing window.
func (s *Selector) score(c *Candidate) float64 {
	return report.Sharpe(report.Returns(s.window(c)), s.perYear)
}

func (s *Selector) window(c *Candidate) []domain.EquityPoint {
	curve := c.trader.ledger.Curve()
	if s.windowBars > 0 && len(curve) > s.windowBars {
		curve = curve[len(curve)-s.windowBars:]
	}
	return curve
}

// Performance reports each candidate's trailing-window record, in candidate
// order.
func (s *Selector) Performance() []Performance {
	out := make([]Performance, 0, len(s.candidates))
	for _, c := range s.candidates {
		trades := c.trader.ledger.ClosedTrades()
		wins := 0
		for _, t := range trades {
			if t.PnL > 0 {
				wins++
			}
		}
		out = append(out, Performance{
			Strategy:    c.trader.strat.Name(),
			Trades:      len(trades),
			Wins:        wins,
			Sharpe:      s.score(c),
			MaxDrawdown: report.MaxDrawdown(s.window(c)),
		})
	}
	return out
}
