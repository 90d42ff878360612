package strategy

import (
	"fmt"

	"marlin/internal/config"
)

// Names lists the built-in strategy identifiers, in registry order.
var Names = []string{"alligator", "bollinger", "breakout", "ema", "rsi", "sma", "vwap"}

// FromConfig builds the named built-in strategy with the configured
// parameters. When allowShort is false the strategy is wrapped so its short
// entries are suppressed at the strategy boundary.
func FromConfig(name string, cfg config.Strategy, allowShort bool) (Strategy, error) {
	var s Strategy
	switch name {
	case "sma":
		s = NewSMACross(cfg.SMAFast, cfg.SMASlow, cfg.ATRPeriod, cfg.ATRMultSL, cfg.ATRMultTP)
	case "ema":
		s = NewEMACross(cfg.EMAFast, cfg.EMASlow, cfg.ATRPeriod, cfg.ATRMultSL, cfg.ATRMultTP)
	case "alligator":
		s = NewAlligator(cfg.ATRPeriod, cfg.ATRMultSL, cfg.ATRMultTP)
	case "rsi":
		s = NewRSIReversal(cfg.RSIPeriod, cfg.RSIOversold, cfg.RSIOverbought, cfg.ATRPeriod, cfg.ATRMultSL, cfg.ATRMultTP)
	case "bollinger":
		s = NewBollingerReversion(cfg.BollingerPeriod, cfg.BollingerK, cfg.ATRPeriod, cfg.ATRMultSL, cfg.ATRMultTP)
	case "breakout":
		s = NewBreakout(cfg.BreakoutPeriod, cfg.ATRPeriod, cfg.ATRMultSL, cfg.ATRMultTP)
	case "vwap":
		s = NewVWAPCross(cfg.ATRPeriod, cfg.ATRMultSL, cfg.ATRMultTP)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	if !allowShort {
		s = LongOnly(s)
	}
	return s, nil
}

// PoolFromConfig builds one instance of every built-in strategy — the
// candidate pool for adaptive selection.
func PoolFromConfig(cfg config.Strategy, allowShort bool) ([]Strategy, error) {
	pool := make([]Strategy, 0, len(Names))
	for _, name := range Names {
		s, err := FromConfig(name, cfg, allowShort)
		if err != nil {
			return nil, err
		}
		pool = append(pool, s)
	}
	return pool, nil
}

// NewRegistryFromConfig registers the full built-in pool in a Registry.
func NewRegistryFromConfig(cfg config.Strategy, allowShort bool) (*Registry, error) {
	pool, err := PoolFromConfig(cfg, allowShort)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	for _, s := range pool {
		r.Register(s)
	}
	return r, nil
}
