package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the marlin engine. It is loaded
// once at startup and threaded into the engine as an immutable value; nothing
// reads ambient process state after Load returns.
type Config struct {
	Exchange Exchange `yaml:"exchange"`
	Trading  Trading  `yaml:"trading"`
	Strategy Strategy `yaml:"strategy"`
	Selector Selector `yaml:"selector"`
	Storage  Storage  `yaml:"storage"`
	Logging  Logging  `yaml:"logging"`
}

// Exchange holds the venue name and API credentials.
type Exchange struct {
	Name      string `yaml:"name"` // "binance" or "alpaca"
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Trading defines the instrument, account, and risk parameters.
type Trading struct {
	Symbol           string  `yaml:"symbol"`
	Timeframe        string  `yaml:"timeframe"`
	FeeRate          float64 `yaml:"fee_rate"`
	Equity           float64 `yaml:"equity"`
	RiskPerTrade     float64 `yaml:"risk_per_trade"`
	MaxDailyDrawdown float64 `yaml:"max_daily_drawdown"`
	AllowShort       bool    `yaml:"allow_short"`
	SlippageTicks    int     `yaml:"slippage_ticks"`
	TickSize         float64 `yaml:"tick_size"`
	// StopFirst resolves the intrabar ambiguity when a bar's range touches
	// both the stop and the target: true assumes the adverse touch happened
	// first. This is a modelling assumption, not an observable fact.
	StopFirst bool `yaml:"stop_first"`
}

// Strategy selects the active strategy ("auto" enables adaptive selection)
// and carries the per-strategy parameters.
type Strategy struct {
	Name string `yaml:"name"` // sma|ema|alligator|rsi|bollinger|breakout|vwap|auto

	SMAFast int `yaml:"sma_fast"`
	SMASlow int `yaml:"sma_slow"`
	EMAFast int `yaml:"ema_fast"`
	EMASlow int `yaml:"ema_slow"`

	ATRPeriod int     `yaml:"atr_period"`
	ATRMultSL float64 `yaml:"atr_mult_sl"`
	ATRMultTP float64 `yaml:"atr_mult_tp"`

	RSIPeriod     int     `yaml:"rsi_period"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	RSIOverbought float64 `yaml:"rsi_overbought"`

	BollingerPeriod int     `yaml:"bollinger_period"`
	BollingerK      float64 `yaml:"bollinger_k"`

	BreakoutPeriod int `yaml:"breakout_period"`
}

// Selector tunes the adaptive strategy selector.
type Selector struct {
	// WindowBars is the trailing evaluation window length.
	WindowBars int `yaml:"window_bars"`
	// CadenceBars is how often (in bars) candidates are re-scored.
	CadenceBars int `yaml:"cadence_bars"`
	// Hysteresis is the score margin a challenger must exceed before it
	// takes over order flow.
	Hysteresis float64 `yaml:"hysteresis"`
}

// Storage holds paths for the bar cache and trade journal.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// ---------------------------------------------------------------------------
// Defaults and loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file or flag overrides a
// value. The defaults match the standard XRP/USDT hourly setup.
func Default() *Config {
	return &Config{
		Exchange: Exchange{Name: "binance"},
		Trading: Trading{
			Symbol:           "XRP/USDT",
			Timeframe:        "1h",
			FeeRate:          0.001,
			Equity:           10_000.0,
			RiskPerTrade:     0.01,
			MaxDailyDrawdown: 0.03,
			AllowShort:       false,
			SlippageTicks:    1,
			TickSize:         0.0001,
			StopFirst:        true,
		},
		Strategy: Strategy{
			Name:            "sma",
			SMAFast:         20,
			SMASlow:         50,
			EMAFast:         20,
			EMASlow:         50,
			ATRPeriod:       14,
			ATRMultSL:       1.0,
			ATRMultTP:       2.0,
			RSIPeriod:       14,
			RSIOversold:     30,
			RSIOverbought:   70,
			BollingerPeriod: 20,
			BollingerK:      2.0,
			BreakoutPeriod:  20,
		},
		Selector: Selector{
			WindowBars:  24 * 30, // 30 days of hourly bars
			CadenceBars: 24,
			Hysteresis:  0.1,
		},
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/marlin.db",
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the YAML configuration file at the given path on top of the
// defaults, then applies environment variable overrides. An empty path skips
// the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Trading.FeeRate < 0 {
		return fmt.Errorf("fee_rate must be >= 0, got %v", c.Trading.FeeRate)
	}
	if c.Trading.Equity <= 0 {
		return fmt.Errorf("equity must be > 0, got %v", c.Trading.Equity)
	}
	if c.Trading.RiskPerTrade <= 0 || c.Trading.RiskPerTrade > 1 {
		return fmt.Errorf("risk_per_trade must be in (0, 1], got %v", c.Trading.RiskPerTrade)
	}
	if c.Trading.MaxDailyDrawdown <= 0 || c.Trading.MaxDailyDrawdown > 1 {
		return fmt.Errorf("max_daily_drawdown must be in (0, 1], got %v", c.Trading.MaxDailyDrawdown)
	}
	if c.Trading.TickSize <= 0 {
		return fmt.Errorf("tick_size must be > 0, got %v", c.Trading.TickSize)
	}
	if c.Strategy.SMAFast <= 0 || c.Strategy.SMAFast >= c.Strategy.SMASlow {
		return fmt.Errorf("sma_fast (%d) must be > 0 and < sma_slow (%d)", c.Strategy.SMAFast, c.Strategy.SMASlow)
	}
	if c.Strategy.EMAFast <= 0 || c.Strategy.EMAFast >= c.Strategy.EMASlow {
		return fmt.Errorf("ema_fast (%d) must be > 0 and < ema_slow (%d)", c.Strategy.EMAFast, c.Strategy.EMASlow)
	}
	for _, p := range []struct {
		name  string
		value int
	}{
		{"atr_period", c.Strategy.ATRPeriod},
		{"rsi_period", c.Strategy.RSIPeriod},
		{"bollinger_period", c.Strategy.BollingerPeriod},
		{"breakout_period", c.Strategy.BreakoutPeriod},
	} {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", p.name, p.value)
		}
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set. Credentials are
// expected to come from the environment in production.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARLIN_EXCHANGE"); v != "" {
		cfg.Exchange.Name = v
	}
	if v := os.Getenv("MARLIN_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("MARLIN_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("MARLIN_EQUITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.Equity = f
		}
	}

	// Canonical exchange SDK env vars take highest priority.
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Exchange.APISecret = v
	}
}
