// marlin-backtest replays historical bars through the trading engine and
// prints the performance report.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"marlin/internal/config"
	"marlin/internal/domain"
	"marlin/internal/engine"
	"marlin/internal/exchange"
	"marlin/internal/report"
	"marlin/internal/store"
	"marlin/internal/strategy"
	"marlin/internal/util"
)

func main() {
	var (
		cfgPath   = flag.String("config", os.Getenv("MARLIN_CONFIG"), "path to YAML config (optional)")
		symbol    = flag.String("symbol", "", "trading pair, e.g. XRP/USDT")
		stratName = flag.String("strategy", "", "strategy name, or auto for adaptive selection")
		timeframe = flag.String("timeframe", "", "bar timeframe, e.g. 1h")
		days      = flag.Int("days", 365, "history window in days")
		fee       = flag.Float64("fee", -1, "taker fee rate override")
		initial   = flag.Float64("initial", 0, "initial equity override")
		dataDir   = flag.String("data-dir", "", "bar cache directory override")
		equityCSV = flag.String("equity-csv", "", "write the equity curve to this CSV file")
		tradesCSV = flag.String("trades-csv", "", "write the trade log to this CSV file")
		jsonOut   = flag.String("summary-json", "", "write the summary to this JSON file")
		journalDB = flag.String("journal", "", "record the run in this SQLite journal")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *symbol != "" {
		cfg.Trading.Symbol = *symbol
	}
	if *stratName != "" {
		cfg.Strategy.Name = *stratName
	}
	if *timeframe != "" {
		cfg.Trading.Timeframe = *timeframe
	}
	if *fee >= 0 {
		cfg.Trading.FeeRate = *fee
	}
	if *initial > 0 {
		cfg.Trading.Equity = *initial
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
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

	end := time.Now().UTC().Truncate(period)
	start := end.Add(-time.Duration(*days) * 24 * time.Hour)

	ctx := context.Background()
	bars, err := md.FetchBars(ctx, cfg.Trading.Symbol, tf, start, end)
	if err != nil {
		log.Fatalf("fetching bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("no bars for %s %s in the last %d days", cfg.Trading.Symbol, tf, *days)
	}

	sim := engine.NewFillSimulator(cfg.Trading.SlippageTicks, cfg.Trading.TickSize, cfg.Trading.FeeRate)
	risk := engine.NewRiskManager(cfg.Trading.RiskPerTrade, cfg.Trading.MaxDailyDrawdown, cfg.Trading.FeeRate)
	ledger := engine.NewLedger(cfg.Trading.Symbol, cfg.Trading.Equity, cfg.Trading.StopFirst)

	var (
		strat strategy.Strategy
		sel   *engine.Selector
	)
	if cfg.Strategy.Name == "auto" {
		pool, err := strategy.PoolFromConfig(cfg.Strategy, cfg.Trading.AllowShort)
		if err != nil {
			log.Fatalf("building strategy pool: %v", err)
		}
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

	e := engine.New(cfg.Trading.Symbol, tf, strat, ledger, risk, sim, cfg.Trading.FeeRate, sel, logger)

	runStart := time.Now()
	if err := e.Run(ctx, bars); err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	if sel != nil {
		for _, p := range sel.Performance() {
			logger.Info("candidate",
				"strategy", p.Strategy, "sharpe", p.Sharpe,
				"max_drawdown", p.MaxDrawdown, "trades", p.Trades, "wins", p.Wins)
		}
	}

	rep := report.Build(cfg.Trading.Symbol, e.ActiveStrategy().Name(), tf, cfg.Trading.Equity,
		ledger.Curve(), ledger.ClosedTrades(), ledger.Fills())

	if err := rep.Render(os.Stdout); err != nil {
		log.Fatalf("writing report: %v", err)
	}
	if *equityCSV != "" {
		writeFile(*equityCSV, rep.WriteEquityCSV)
	}
	if *tradesCSV != "" {
		writeFile(*tradesCSV, rep.WriteTradesCSV)
	}
	if *jsonOut != "" {
		writeFile(*jsonOut, rep.WriteSummaryJSON)
	}

	if *journalDB != "" {
		if err := journalRun(ctx, *journalDB, cfg, rep, ledger, runStart); err != nil {
			log.Fatalf("journaling run: %v", err)
		}
	}
}

func writeFile(path string, write func(w io.Writer) error) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		log.Fatalf("writing %s: %v", path, err)
	}
}

func journalRun(ctx context.Context, dbPath string, cfg *config.Config, rep *report.Report, ledger *engine.Ledger, started time.Time) error {
	j, err := store.NewSQLiteJournal(dbPath)
	if err != nil {
		return err
	}
	defer j.Close()

	runID := uuid.NewString()
	for _, f := range ledger.Fills() {
		if err := j.RecordFill(ctx, runID, f); err != nil {
			return err
		}
	}
	for _, t := range ledger.ClosedTrades() {
		if err := j.RecordTrade(ctx, runID, t); err != nil {
			return err
		}
	}
	return j.RecordRun(ctx, store.RunRecord{
		ID:            runID,
		Mode:          "backtest",
		Symbol:        cfg.Trading.Symbol,
		Strategy:      rep.Summary.Strategy,
		Timeframe:     cfg.Trading.Timeframe,
		StartedAt:     started,
		FinishedAt:    time.Now(),
		InitialEquity: rep.Summary.InitialEquity,
		FinalEquity:   rep.Summary.FinalEquity,
		Trades:        rep.Summary.TotalTrades,
	})
}
