package domain

import (
	"fmt"
	"time"
)

// Timeframe is a bar period identifier such as "1m", "1h", or "1d".
type Timeframe string

var timeframePeriods = map[Timeframe]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// Period returns the bar duration for the timeframe.
func (tf Timeframe) Period() (time.Duration, error) {
	d, ok := timeframePeriods[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	return d, nil
}

// BarsPerYear returns the annualisation factor used for Sharpe-style metrics.
// Crypto venues trade around the clock, so a year is 365 full days of bars.
func (tf Timeframe) BarsPerYear() float64 {
	d, err := tf.Period()
	if err != nil {
		return 0
	}
	return float64(365*24*time.Hour) / float64(d)
}

// TradingDay truncates t to its UTC calendar date. Daily risk limits roll
// over at this boundary.
func TradingDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
