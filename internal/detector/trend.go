package detector

import (
	"fxmonitor/internal/model"
)

const dateLayout = "2006-01-02"

// Trend detects a percentage change over a trailing calendar window.
//
// The percent change is measured from the oldest to the newest close
// inside the trailing DetectionPeriod-day window and triggers when its
// absolute value reaches ChangeThreshold. With EnableConsistency set,
// the trailing five closes must additionally be non-decreasing; a
// failed consistency check suppresses the trigger even when the
// threshold is met.
type Trend struct {
	ChangeThreshold   float64 `json:"change_threshold" validate:"gte=0.1,lte=20"`
	DetectionPeriod   int     `json:"detection_period" validate:"gte=1,lte=365"`
	EnableConsistency bool    `json:"enable_trend_consistency"`
}

func (c Trend) Kind() Kind      { return KindTrend }
func (c Trend) MinBars() int    { return 2 }
func (c Trend) Validate() error { return checkParams(c) }

func (c Trend) Detect(s *model.Series, _ *model.Bar) Detection {
	last := s.Last()
	d := Detection{
		Kind:    KindTrend,
		Pair:    s.Pair,
		NewRate: last.Close,
		EndDate: last.Date.Format(dateLayout),
	}

	cutoff := last.Date.AddDate(0, 0, -c.DetectionPeriod)
	window := s.Since(cutoff)
	if window.Len() < 2 {
		return d
	}

	oldest := window.Bars[0]
	d.OldRate = oldest.Close
	d.StartDate = oldest.Date.Format(dateLayout)
	if oldest.Close == 0 {
		return d
	}
	d.PercentChange = (last.Close - oldest.Close) / oldest.Close * 100

	triggered := abs(d.PercentChange) >= c.ChangeThreshold
	if triggered && c.EnableConsistency {
		triggered = consistentCloses(window.Closes(), 5)
	}
	d.Triggered = triggered
	return d
}

// consistentCloses reports whether the trailing n closes are
// non-decreasing.
func consistentCloses(closes []float64, n int) bool {
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	for i := 1; i < len(closes); i++ {
		if closes[i] < closes[i-1] {
			return false
		}
	}
	return true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
