package notification

import (
	"fmt"
	"strings"

	"fxmonitor/internal/detector"
)

// Format builds the human-readable title and message for a triggered
// detection. Diagnostics vary per condition kind.
func Format(d detector.Detection) (title, message string) {
	pair := d.Pair

	switch d.Kind {
	case detector.KindTrend:
		direction := "risen"
		if d.PercentChange < 0 {
			direction = "fallen"
		}
		title = fmt.Sprintf("%s moved %.2f%%", pair, d.PercentChange)
		message = fmt.Sprintf("%s has %s %.2f%% since %s (%.5f to %.5f).",
			pair, direction, abs(d.PercentChange), d.StartDate, d.OldRate, d.NewRate)

	case detector.KindHistoricalHigh:
		title = fmt.Sprintf("%s near %d-year high", pair, d.LookbackYears)
		message = fmt.Sprintf("%s is at %.5f, within %.2f%% of its %d-year high of %.5f.",
			pair, d.CurrentRate, d.ProximityPercent, d.LookbackYears, d.MaxRate)

	case detector.KindHistoricalLow:
		title = fmt.Sprintf("%s near %d-year low", pair, d.LookbackYears)
		message = fmt.Sprintf("%s is at %.5f, within %.2f%% of its %d-year low of %.5f.",
			pair, d.CurrentRate, d.ProximityPercent, d.LookbackYears, d.MinRate)

	case detector.KindPriceLevel:
		switch d.TriggerType {
		case detector.CrossesAbove:
			title = fmt.Sprintf("%s crossed above %.5f", pair, d.PriceHigh)
		case detector.CrossesBelow:
			title = fmt.Sprintf("%s crossed below %.5f", pair, d.PriceLow)
		default:
			title = fmt.Sprintf("%s inside %.5f-%.5f", pair, d.PriceLow, d.PriceHigh)
		}
		message = fmt.Sprintf("%s is now at %.5f.", pair, d.CurrentRate)

	case detector.KindVolatility:
		label := "spiked"
		if d.VolatilityType == detector.VolatilityLow {
			label = "collapsed"
		}
		title = fmt.Sprintf("%s volatility %s", pair, label)
		message = fmt.Sprintf("Recent volatility of %s is %.2fx its prior level (%.5f vs %.5f).",
			pair, d.VolatilityRatio, d.CurrentVolatility, d.AverageVolatility)

	case detector.KindMACrossover:
		label := "golden cross"
		if d.SignalType == detector.DeathCross {
			label = "death cross"
		}
		title = fmt.Sprintf("%s %s", pair, label)
		message = fmt.Sprintf("%s SMA(%d) crossed SMA(%d): %.5f vs %.5f.",
			pair, d.ShortPeriod, d.LongPeriod, d.ShortMA, d.LongMA)

	case detector.KindLongTermUptrend:
		title = fmt.Sprintf("%s in long-term uptrend", pair)
		message = fmt.Sprintf("%s is up %.2f%% since %s with a rising trend fit (r²=%.2f).",
			pair, d.PercentChange, d.StartDate, d.RSquared)

	default:
		title = fmt.Sprintf("%s condition triggered", pair)
		message = fmt.Sprintf("Condition %s triggered for %s.", d.Kind, pair)
	}

	return strings.TrimSpace(title), strings.TrimSpace(message)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
