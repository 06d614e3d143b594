package backtest

import (
	"fxmonitor/internal/detector"
	"fxmonitor/internal/model"
)

// ExitPolicy configures the prioritized exit rules. A zero
// MaxHoldingDays, StopLossPct, or TakeProfitPct disables that rule; a
// nil Signal disables the signal exit.
//
// Priority is fixed: stop_loss, take_profit, max_holding_days, signal.
// The first rule that fires closes the position.
type ExitPolicy struct {
	MaxHoldingDays int                `json:"max_holding_days"`
	StopLossPct    float64            `json:"stop_loss_pct"`
	TakeProfitPct  float64            `json:"take_profit_pct"`
	Signal         detector.Condition `json:"-"`
}

// Validate checks the policy parameters, including the optional exit
// signal's own parameters.
func (p ExitPolicy) Validate() error {
	if p.MaxHoldingDays < 0 {
		return &model.InvalidParameterError{Field: "MaxHoldingDays", Reason: "must not be negative"}
	}
	if p.StopLossPct < 0 {
		return &model.InvalidParameterError{Field: "StopLossPct", Reason: "must not be negative"}
	}
	if p.TakeProfitPct < 0 {
		return &model.InvalidParameterError{Field: "TakeProfitPct", Reason: "must not be negative"}
	}
	if p.Signal != nil {
		return p.Signal.Validate()
	}
	return nil
}

// position is the simulator's explicit state machine: either no
// position, or exactly one open position. Overlapping positions are
// impossible by construction.
type position struct {
	open       bool
	entryIndex int
	entryPrice float64
}

// Run replays the series bar by bar, opening a position when the entry
// condition triggers and closing it by the first exit rule that fires.
// Bars before index i never see data past i, so there is no lookahead.
//
// Failure semantics: an empty series is an InsufficientDataError; a
// series too short for the configured conditions yields a zero-trade
// result with an unchanged equity curve. Out-of-order input is
// rejected rather than resorted.
func Run(s *model.Series, entry detector.Condition, exit ExitPolicy, initialCapital float64, allowMultipleTrades bool) (*Result, error) {
	if entry == nil {
		return nil, &model.InvalidParameterError{Field: "entry", Reason: "entry condition is required"}
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := exit.Validate(); err != nil {
		return nil, err
	}
	if initialCapital <= 0 {
		return nil, &model.InvalidParameterError{Field: "initialCapital", Reason: "must be positive"}
	}
	if s == nil || s.Len() == 0 {
		return nil, &model.InsufficientDataError{Needed: entry.MinBars(), Got: 0, Reason: "empty series"}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	minBars := entry.MinBars()
	if exit.Signal != nil && exit.Signal.MinBars() > minBars {
		minBars = exit.Signal.MinBars()
	}

	bars := s.Bars
	var trades []Trade
	var pos position
	scanning := true

	// First index at which every configured condition has enough
	// history. A series shorter than that simply produces no trades.
	for i := minBars - 1; i >= 0 && i < len(bars); i++ {
		if !pos.open {
			if !scanning {
				break
			}
			// Opening on the final bar would force a zero-span trade,
			// so entries stop one bar early.
			if i == len(bars)-1 {
				break
			}
			if det := entry.Detect(s.Prefix(i), nil); det.Triggered {
				pos = position{open: true, entryIndex: i, entryPrice: bars[i].Close}
			}
			continue
		}

		exitPrice, reason, ok := exit.check(s, i, pos)
		if !ok {
			continue
		}
		trades = append(trades, closeTrade(bars, pos, i, exitPrice, reason))
		pos = position{}
		if !allowMultipleTrades {
			scanning = false
		}
	}

	if pos.open {
		last := len(bars) - 1
		trades = append(trades, closeTrade(bars, pos, last, bars[last].Close, ReasonEndOfData))
	}

	curve := equityCurve(bars[0].Date, initialCapital, trades)
	return &Result{
		Pair:        s.Pair,
		Trades:      trades,
		EquityCurve: curve,
		Summary:     summarize(trades, curve, initialCapital),
	}, nil
}

// check evaluates the exit rules for bar i in priority order. Stop and
// take-profit fill at the theoretical trigger level, since the intrabar
// low/high crossed it; the other rules fill at the bar close.
func (p ExitPolicy) check(s *model.Series, i int, pos position) (price float64, reason ExitReason, ok bool) {
	bar := s.Bars[i]

	if p.StopLossPct > 0 {
		stopLevel := pos.entryPrice * (1 - p.StopLossPct/100)
		if bar.Low <= stopLevel {
			return stopLevel, ReasonStopLoss, true
		}
	}
	if p.TakeProfitPct > 0 {
		takeLevel := pos.entryPrice * (1 + p.TakeProfitPct/100)
		if bar.High >= takeLevel {
			return takeLevel, ReasonTakeProfit, true
		}
	}
	if p.MaxHoldingDays > 0 && i-pos.entryIndex >= p.MaxHoldingDays {
		return bar.Close, ReasonMaxHolding, true
	}
	if p.Signal != nil {
		if det := p.Signal.Detect(s.Prefix(i), nil); det.Triggered {
			return bar.Close, ReasonSignal, true
		}
	}
	return 0, "", false
}

func closeTrade(bars []model.Bar, pos position, exitIndex int, exitPrice float64, reason ExitReason) Trade {
	pnl := 0.0
	if pos.entryPrice != 0 {
		pnl = (exitPrice - pos.entryPrice) / pos.entryPrice * 100
	}
	return Trade{
		EntryDate:   bars[pos.entryIndex].Date,
		EntryPrice:  pos.entryPrice,
		ExitDate:    bars[exitIndex].Date,
		ExitPrice:   exitPrice,
		ExitReason:  reason,
		HoldingDays: exitIndex - pos.entryIndex,
		PnLPct:      pnl,
	}
}
