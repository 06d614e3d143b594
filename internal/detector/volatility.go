package detector

import (
	"fxmonitor/internal/model"
)

const (
	volatilityWindow    = 30 // trailing days per sub-window
	volatilityHighRatio = 2.0
	volatilityLowRatio  = 0.5
)

// Volatility compares the standard deviation of day-over-day returns
// in the most recent 30-day window against the preceding 30-day
// window. A ratio strictly above 2.0 is a high-volatility spike; a
// ratio strictly below 0.5 is a low-volatility regime.
type Volatility struct {
	VolatilityType VolatilityType `json:"volatility_type" validate:"oneof=high low"`
}

func (c Volatility) Kind() Kind      { return KindVolatility }
func (c Volatility) MinBars() int    { return 2*volatilityWindow + 1 }
func (c Volatility) Validate() error { return checkParams(c) }

func (c Volatility) Detect(s *model.Series, _ *model.Bar) Detection {
	d := Detection{
		Kind:           KindVolatility,
		Pair:           s.Pair,
		CurrentRate:    s.Last().Close,
		VolatilityType: c.VolatilityType,
	}

	closes := s.Closes()
	if len(closes) > 2*volatilityWindow+1 {
		closes = closes[len(closes)-(2*volatilityWindow+1):]
	}
	returns := pctReturns(closes)
	if len(returns) < 2*volatilityWindow {
		return d
	}

	recent := returns[len(returns)-volatilityWindow:]
	prior := returns[len(returns)-2*volatilityWindow : len(returns)-volatilityWindow]

	recentStd := stddevPop(recent)
	priorStd := stddevPop(prior)
	d.CurrentVolatility = recentStd
	d.AverageVolatility = priorStd

	// Undefined ratio: never triggers.
	if priorStd == 0 {
		return d
	}
	ratio := recentStd / priorStd
	d.VolatilityRatio = ratio

	switch c.VolatilityType {
	case VolatilityHigh:
		d.Triggered = ratio > volatilityHighRatio
	case VolatilityLow:
		d.Triggered = ratio < volatilityLowRatio
	}
	return d
}
