package detector

import (
	"fxmonitor/internal/model"
)

// proximityTolerance is the fixed relative distance to the windowed
// extremum that counts as "at" the extremum: 0.1%.
const proximityTolerance = 0.001

// HistoricalHigh triggers when the latest close is within the fixed
// proximity tolerance of the maximum close over the trailing
// LookbackYears-year window.
type HistoricalHigh struct {
	LookbackYears int `json:"lookback_years" validate:"oneof=1 3 5 10"`
}

func (c HistoricalHigh) Kind() Kind      { return KindHistoricalHigh }
func (c HistoricalHigh) MinBars() int    { return 2 }
func (c HistoricalHigh) Validate() error { return checkParams(c) }

func (c HistoricalHigh) Detect(s *model.Series, _ *model.Bar) Detection {
	return detectExtreme(s, c.LookbackYears, true)
}

// HistoricalLow is the symmetric variant of HistoricalHigh for the
// windowed minimum.
type HistoricalLow struct {
	LookbackYears int `json:"lookback_years" validate:"oneof=1 3 5 10"`
}

func (c HistoricalLow) Kind() Kind      { return KindHistoricalLow }
func (c HistoricalLow) MinBars() int    { return 2 }
func (c HistoricalLow) Validate() error { return checkParams(c) }

func (c HistoricalLow) Detect(s *model.Series, _ *model.Bar) Detection {
	return detectExtreme(s, c.LookbackYears, false)
}

// detectExtreme is the shared windowed-extremum computation behind the
// historical high and low conditions.
func detectExtreme(s *model.Series, lookbackYears int, high bool) Detection {
	last := s.Last()
	kind := KindHistoricalLow
	if high {
		kind = KindHistoricalHigh
	}
	d := Detection{
		Kind:          kind,
		Pair:          s.Pair,
		CurrentRate:   last.Close,
		LookbackYears: lookbackYears,
	}

	window := s.Since(last.Date.AddDate(-lookbackYears, 0, 0))
	if window.Len() == 0 {
		return d
	}

	maxRate, minRate := window.Bars[0].Close, window.Bars[0].Close
	for _, b := range window.Bars[1:] {
		if b.Close > maxRate {
			maxRate = b.Close
		}
		if b.Close < minRate {
			minRate = b.Close
		}
	}
	d.MaxRate = maxRate
	d.MinRate = minRate

	extreme := minRate
	if high {
		extreme = maxRate
	}
	if extreme == 0 {
		return d
	}
	rel := abs(last.Close-extreme) / extreme
	d.ProximityPercent = rel * 100
	d.Triggered = rel <= proximityTolerance
	return d
}
