// marlin-trader runs the engine against a live exchange, polling closed bars
// and routing orders through the configured venue. It halts on any integrity
// failure rather than trade on a state it cannot trust.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"marlin/internal/config"
	"marlin/internal/domain"
	"marlin/internal/engine"
	"marlin/internal/exchange"
	"marlin/internal/store"
	"marlin/internal/strategy"
	"marlin/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/marlin.yaml", "path to YAML config")
	warmupDays := flag.Int("warmup-days", 60, "history window used to seed indicators")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	tf := domain.Timeframe(cfg.Trading.Timeframe)
	period, err := tf.Period()
	if err != nil {
		log.Fatalf("invalid timeframe: %v", err)
	}

	venue, err := exchange.New(cfg.Exchange.Name, cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	if err != nil {
		log.Fatalf("creating exchange client: %v", err)
	}
	md := store.NewCachingMarketData(venue, store.NewParquetStore(cfg.Storage.DataDir))

	sim := engine.NewFillSimulator(cfg.Trading.SlippageTicks, cfg.Trading.TickSize, cfg.Trading.FeeRate)
	risk := engine.NewRiskManager(cfg.Trading.RiskPerTrade, cfg.Trading.MaxDailyDrawdown, cfg.Trading.FeeRate)
	ledger := engine.NewLedger(cfg.Trading.Symbol, cfg.Trading.Equity, cfg.Trading.StopFirst)
	exec := engine.NewLiveExecutor(venue, cfg.Trading.FeeRate, 30*time.Second, logger)

	var (
		strat strategy.Strategy
		sel   *engine.Selector
	)
	if cfg.Strategy.Name == "auto" {
		pool, err := strategy.PoolFromConfig(cfg.Strategy, cfg.Trading.AllowShort)
		if err != nil {
			log.Fatalf("building strategy pool: %v", err)
		}
		// Shadow candidates always run against the simulator, even live.
		sel = engine.NewSelector(engine.SelectorConfig{
			WindowBars:  cfg.Selector.WindowBars,
			CadenceBars: cfg.Selector.CadenceBars,
			Hysteresis:  cfg.Selector.Hysteresis,
		}, cfg.Trading.Symbol, pool, "", cfg.Trading.Equity, tf, sim, risk, cfg.Trading.StopFirst, logger)
		strat = sel.Active()
	} else {
		strat, err = strategy.FromConfig(cfg.Strategy.Name, cfg.Strategy, cfg.Trading.AllowShort)
		if err != nil {
			log.Fatalf("building strategy: %v", err)
		}
	}

	e := engine.New(cfg.Trading.Symbol, tf, strat, ledger, risk, exec, cfg.Trading.FeeRate, sel, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	end := time.Now().UTC().Truncate(period)
	start := end.Add(-time.Duration(*warmupDays) * 24 * time.Hour)
	history, err := md.FetchBars(ctx, cfg.Trading.Symbol, tf, start, end)
	if err != nil {
		log.Fatalf("fetching warmup history: %v", err)
	}
	logger.Info("warmup loaded", "bars", len(history), "from", start, "to", end)

	err = e.RunLive(ctx, md, history)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutting down", "equity", ledger.State().Equity)
	case errors.Is(err, engine.ErrHalted):
		log.Fatalf("trading halted: %v", err)
	case err != nil:
		log.Fatalf("live loop: %v", err)
	}
}
