// Package backtest simulates trading outcomes by replaying condition
// evaluators over historical data: one entry condition, a prioritized
// exit policy, a single position at a time.
package backtest

import (
	"time"
)

// ExitReason records which rule closed a trade.
type ExitReason string

const (
	ReasonStopLoss   ExitReason = "stop_loss"
	ReasonTakeProfit ExitReason = "take_profit"
	ReasonMaxHolding ExitReason = "max_holding_days"
	ReasonSignal     ExitReason = "signal"
	ReasonEndOfData  ExitReason = "end_of_data"
)

// Trade is one closed simulated position.
type Trade struct {
	EntryDate   time.Time  `json:"entry_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitDate    time.Time  `json:"exit_date"`
	ExitPrice   float64    `json:"exit_price"`
	ExitReason  ExitReason `json:"exit_reason"`
	HoldingDays int        `json:"holding_days"`
	PnLPct      float64    `json:"pnl_pct"`
}

// EquityPoint is one realized-equity observation on the curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// Summary aggregates the closed trades of one run.
type Summary struct {
	NumTrades      int     `json:"num_trades"`
	WinRatePct     float64 `json:"win_rate_pct"`
	AvgTradePnLPct float64 `json:"avg_trade_pnl_pct"`
	TotalReturnPct float64 `json:"total_return_pct"`
	FinalEquity    float64 `json:"final_equity"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// Result is the read-only outcome of one backtest run.
type Result struct {
	Pair        string        `json:"pair"`
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Summary     Summary       `json:"summary"`
}

// equityCurve compounds the initial capital by each trade's realized
// PnL. Equity is flat between trades: open positions are not marked to
// market.
func equityCurve(start time.Time, initialCapital float64, trades []Trade) []EquityPoint {
	curve := make([]EquityPoint, 0, len(trades)+1)
	curve = append(curve, EquityPoint{Date: start, Equity: initialCapital})
	equity := initialCapital
	for _, t := range trades {
		equity *= 1 + t.PnLPct/100
		curve = append(curve, EquityPoint{Date: t.ExitDate, Equity: equity})
	}
	return curve
}

// maxDrawdownPct returns the largest peak-to-trough percentage decline
// along the curve. Zero for monotonically non-decreasing curves or
// curves with fewer than two points.
func maxDrawdownPct(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	peak := curve[0].Equity
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

// summarize builds the summary statistics for a finished run.
func summarize(trades []Trade, curve []EquityPoint, initialCapital float64) Summary {
	s := Summary{
		NumTrades:   len(trades),
		FinalEquity: initialCapital,
	}
	if len(curve) > 0 {
		s.FinalEquity = curve[len(curve)-1].Equity
	}
	if initialCapital > 0 {
		s.TotalReturnPct = (s.FinalEquity - initialCapital) / initialCapital * 100
	}
	s.MaxDrawdownPct = maxDrawdownPct(curve)

	if len(trades) == 0 {
		return s
	}
	wins := 0
	var pnlSum float64
	for _, t := range trades {
		if t.PnLPct > 0 {
			wins++
		}
		pnlSum += t.PnLPct
	}
	s.WinRatePct = 100 * float64(wins) / float64(len(trades))
	s.AvgTradePnLPct = pnlSum / float64(len(trades))
	return s
}
