package detector

import (
	"fxmonitor/internal/model"
)

// consistencySlack tolerates small pullbacks in the long-term
// consistency check: each close may dip to 99.8% of its predecessor.
const consistencySlack = 0.998

// minUptrendRSquared is the minimum regression fit quality for the
// long-term uptrend to count as established.
const minUptrendRSquared = 0.25

// LongTermUptrend combines three pieces of evidence over the trailing
// DetectionPeriod bars: a percent change above ChangeThreshold, the
// short moving average above a non-decreasing long moving average, and
// a positive linear-regression slope with an adequate fit. All three
// must hold to trigger.
type LongTermUptrend struct {
	ChangeThreshold   float64 `json:"change_threshold" validate:"gte=0.1,lte=20"`
	DetectionPeriod   int     `json:"detection_period" validate:"gte=1,lte=365"`
	EnableConsistency bool    `json:"enable_trend_consistency"`
	ShortPeriod       int     `json:"short_ma_period" validate:"gte=7,lte=50"`
	LongPeriod        int     `json:"long_ma_period" validate:"gte=50,lte=365"`
}

func (c LongTermUptrend) Kind() Kind   { return KindLongTermUptrend }
func (c LongTermUptrend) MinBars() int { return c.LongPeriod + 2 }

func (c LongTermUptrend) Validate() error {
	if err := checkParams(c); err != nil {
		return err
	}
	if c.ShortPeriod >= c.LongPeriod {
		return &model.InvalidParameterError{Field: "ShortPeriod", Reason: "short_ma_period must be less than long_ma_period"}
	}
	return nil
}

func (c LongTermUptrend) Detect(s *model.Series, _ *model.Bar) Detection {
	closes := s.Closes()
	last := s.Last()

	segment := closes
	segStart := 0
	if len(closes) > c.DetectionPeriod {
		segStart = len(closes) - c.DetectionPeriod
		segment = closes[segStart:]
	}

	d := Detection{
		Kind:      KindLongTermUptrend,
		Pair:      s.Pair,
		OldRate:   segment[0],
		NewRate:   last.Close,
		StartDate: s.Bars[segStart].Date.Format(dateLayout),
		EndDate:   last.Date.Format(dateLayout),
	}
	if segment[0] == 0 {
		return d
	}
	d.PercentChange = (last.Close - segment[0]) / segment[0] * 100

	pctOK := d.PercentChange >= c.ChangeThreshold
	if pctOK && c.EnableConsistency {
		pctOK = slackConsistent(segment, 5)
	}

	shortToday, ok1 := sma(closes, c.ShortPeriod)
	longToday, ok2 := sma(closes, c.LongPeriod)
	longYday, ok3 := sma(closes[:len(closes)-1], c.LongPeriod)
	maOK := ok1 && ok2 && ok3 && shortToday > longToday && longToday >= longYday
	d.ShortMA = shortToday
	d.LongMA = longToday

	slope, r2, regDefined := linearRegression(segment)
	d.Slope = slope
	d.RSquared = r2
	regOK := regDefined && slope > 0 && r2 >= minUptrendRSquared

	d.Triggered = pctOK && maOK && regOK
	return d
}

// slackConsistent reports whether the trailing n values never dip
// below the slack fraction of their predecessor.
func slackConsistent(values []float64, n int) bool {
	if len(values) > n {
		values = values[len(values)-n:]
	}
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1]*consistencySlack {
			return false
		}
	}
	return true
}
