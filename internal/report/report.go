package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"marlin/internal/domain"
)

// Summary holds the headline metrics of one run.
type Summary struct {
	Symbol        string  `json:"symbol"`
	Strategy      string  `json:"strategy"`
	Timeframe     string  `json:"timeframe"`
	InitialEquity float64 `json:"initial_equity"`
	FinalEquity   float64 `json:"final_equity"`
	TotalReturn   float64 `json:"total_return"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	TotalTrades   int     `json:"total_trades"`
	TotalFees     float64 `json:"total_fees"`
}

// Report is the full result of a run.
type Report struct {
	Summary Summary
	Curve   []domain.EquityPoint
	Trades  []domain.ClosedTrade
	Fills   []domain.Fill
}

// Build assembles a report from the ledger's outputs.
func Build(symbol, strategyName string, tf domain.Timeframe, initialEquity float64,
	curve []domain.EquityPoint, trades []domain.ClosedTrade, fills []domain.Fill) *Report {

	final := initialEquity
	if len(curve) > 0 {
		final = curve[len(curve)-1].Equity
	}
	var totalReturn float64
	if initialEquity != 0 {
		totalReturn = final/initialEquity - 1
	}
	var fees float64
	for _, f := range fills {
		fees += f.Fee
	}

	return &Report{
		Summary: Summary{
			Symbol:        symbol,
			Strategy:      strategyName,
			Timeframe:     string(tf),
			InitialEquity: initialEquity,
			FinalEquity:   final,
			TotalReturn:   totalReturn,
			SharpeRatio:   Sharpe(Returns(curve), tf.BarsPerYear()),
			MaxDrawdown:   MaxDrawdown(curve),
			WinRate:       WinRate(trades),
			ProfitFactor:  ProfitFactor(trades),
			TotalTrades:   len(trades),
			TotalFees:     fees,
		},
		Curve:  curve,
		Trades: trades,
		Fills:  fills,
	}
}

// WriteSummaryJSON writes the summary as indented JSON. A +Inf profit factor
// is not representable in JSON and is written as null.
func (r *Report) WriteSummaryJSON(w io.Writer) error {
	s := r.Summary
	type alias Summary
	out := struct {
		alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias: alias(s)}
	if !math.IsInf(s.ProfitFactor, 0) {
		out.ProfitFactor = &s.ProfitFactor
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteEquityCSV writes the equity curve as timestamp,equity,drawdown rows.
func (r *Report) WriteEquityCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "equity", "drawdown"}); err != nil {
		return err
	}
	for _, p := range r.Curve {
		row := []string{
			p.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.Equity, 'f', -1, 64),
			strconv.FormatFloat(p.Drawdown, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes the closed-trade log.
func (r *Report) WriteTradesCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"entry_time", "exit_time", "direction", "entry_price", "exit_price", "size", "fees", "pnl", "return"}); err != nil {
		return err
	}
	for _, t := range r.Trades {
		row := []string{
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			string(t.Direction),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Size, 'f', -1, 64),
			strconv.FormatFloat(t.Fees, 'f', -1, 64),
			strconv.FormatFloat(t.PnL, 'f', -1, 64),
			strconv.FormatFloat(t.Return, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render writes a human-readable summary block.
func (r *Report) Render(w io.Writer) error {
	s := r.Summary
	pf := strconv.FormatFloat(s.ProfitFactor, 'f', 2, 64)
	if math.IsInf(s.ProfitFactor, 1) {
		pf = "inf"
	}
	_, err := fmt.Fprintf(w,
		"symbol          %s\n"+
			"strategy        %s\n"+
			"timeframe       %s\n"+
			"initial equity  %.2f\n"+
			"final equity    %.2f\n"+
			"total return    %.2f%%\n"+
			"sharpe ratio    %.2f\n"+
			"max drawdown    %.2f%%\n"+
			"win rate        %.2f%%\n"+
			"profit factor   %s\n"+
			"trades          %d\n"+
			"fees paid       %.2f\n",
		s.Symbol, s.Strategy, s.Timeframe,
		s.InitialEquity, s.FinalEquity, s.TotalReturn*100,
		s.SharpeRatio, s.MaxDrawdown*100, s.WinRate*100,
		pf, s.TotalTrades, s.TotalFees)
	return err
}
