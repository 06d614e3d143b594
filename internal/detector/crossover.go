package detector

import (
	"fxmonitor/internal/model"
)

// MACrossover detects a golden or death cross of two simple moving
// averages of the close price. Both averages are evaluated at
// "yesterday" (series excluding the latest bar) and "today" (full
// series), so only the bar that completes the cross triggers.
type MACrossover struct {
	ShortPeriod int        `json:"short_ma_period" validate:"gte=7,lte=50"`
	LongPeriod  int        `json:"long_ma_period" validate:"gte=50,lte=365"`
	SignalType  SignalType `json:"signal_type" validate:"oneof=golden_cross death_cross"`
}

func (c MACrossover) Kind() Kind   { return KindMACrossover }
func (c MACrossover) MinBars() int { return c.LongPeriod + 1 }

func (c MACrossover) Validate() error {
	if err := checkParams(c); err != nil {
		return err
	}
	if c.ShortPeriod >= c.LongPeriod {
		return &model.InvalidParameterError{Field: "ShortPeriod", Reason: "short_ma_period must be less than long_ma_period"}
	}
	return nil
}

func (c MACrossover) Detect(s *model.Series, _ *model.Bar) Detection {
	closes := s.Closes()
	d := Detection{
		Kind:        KindMACrossover,
		Pair:        s.Pair,
		CurrentRate: closes[len(closes)-1],
		SignalType:  c.SignalType,
		ShortPeriod: c.ShortPeriod,
		LongPeriod:  c.LongPeriod,
	}

	yesterday := closes[:len(closes)-1]
	shortToday, ok1 := sma(closes, c.ShortPeriod)
	longToday, ok2 := sma(closes, c.LongPeriod)
	shortYday, ok3 := sma(yesterday, c.ShortPeriod)
	longYday, ok4 := sma(yesterday, c.LongPeriod)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return d
	}
	d.ShortMA = shortToday
	d.LongMA = longToday

	switch c.SignalType {
	case GoldenCross:
		d.Triggered = shortYday <= longYday && shortToday > longToday
	case DeathCross:
		d.Triggered = shortYday >= longYday && shortToday < longToday
	}
	return d
}
