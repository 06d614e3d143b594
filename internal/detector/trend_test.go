package detector

import (
	"testing"
)

func TestTrend_RisingSeriesTriggers(t *testing.T) {
	// Closes rise 1.00 → 1.09 over 10 days: +9% against a 2% threshold.
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 1.00 + 0.01*float64(i)
	}
	s := dailySeries(t, closes...)

	d := mustEvaluate(t, Trend{ChangeThreshold: 2, DetectionPeriod: 30}, s)
	if !d.Triggered {
		t.Fatal("rising series did not trigger")
	}
	assertClose(t, "percent_change", d.PercentChange, 9.0, 0.0001)
	assertClose(t, "old_rate", d.OldRate, 1.00, 0.0001)
	assertClose(t, "new_rate", d.NewRate, 1.09, 0.0001)
	if d.StartDate != "2025-01-01" || d.EndDate != "2025-01-10" {
		t.Errorf("date range = %s..%s, want 2025-01-01..2025-01-10", d.StartDate, d.EndDate)
	}
}

func TestTrend_FallingSeriesTriggersOnAbsoluteChange(t *testing.T) {
	s := dailySeries(t, 1.10, 1.08, 1.06, 1.04, 1.02)
	d := mustEvaluate(t, Trend{ChangeThreshold: 2, DetectionPeriod: 30}, s)
	if !d.Triggered {
		t.Fatal("falling series did not trigger on |change|")
	}
	if d.PercentChange >= 0 {
		t.Errorf("percent_change = %.4f, want negative", d.PercentChange)
	}
}

func TestTrend_BelowThresholdDoesNotTrigger(t *testing.T) {
	s := dailySeries(t, 1.000, 1.005, 1.010) // +1% < 2%
	d := mustEvaluate(t, Trend{ChangeThreshold: 2, DetectionPeriod: 30}, s)
	if d.Triggered {
		t.Fatal("sub-threshold change triggered")
	}
	assertClose(t, "percent_change", d.PercentChange, 1.0, 0.0001)
}

func TestTrend_ConsistencySuppressesTrigger(t *testing.T) {
	// +10% overall, but the second-to-last close dips: the trailing
	// five closes are not non-decreasing.
	closes := []float64{1.00, 1.02, 1.04, 1.06, 1.08, 1.07, 1.10}
	s := dailySeries(t, closes...)

	strict := Trend{ChangeThreshold: 2, DetectionPeriod: 30, EnableConsistency: true}
	if d := mustEvaluate(t, strict, s); d.Triggered {
		t.Error("inconsistent series triggered with consistency enabled")
	}

	loose := Trend{ChangeThreshold: 2, DetectionPeriod: 30}
	if d := mustEvaluate(t, loose, s); !d.Triggered {
		t.Error("inconsistent series should still trigger with consistency disabled")
	}
}

func TestTrend_ConsistencyAllowsMonotonicRise(t *testing.T) {
	closes := []float64{1.00, 1.02, 1.04, 1.06, 1.08, 1.10}
	s := dailySeries(t, closes...)
	d := mustEvaluate(t, Trend{ChangeThreshold: 2, DetectionPeriod: 30, EnableConsistency: true}, s)
	if !d.Triggered {
		t.Fatal("monotonic rise did not trigger with consistency enabled")
	}
}

func TestTrend_WindowExcludesOlderBars(t *testing.T) {
	// 40 daily bars. A +10% jump happens in the first 5 bars; the last
	// 30 days are flat, so a 10-day window must not trigger.
	closes := make([]float64, 40)
	for i := range closes {
		switch {
		case i < 5:
			closes[i] = 1.00 + 0.02*float64(i)
		default:
			closes[i] = 1.10
		}
	}
	s := dailySeries(t, closes...)
	d := mustEvaluate(t, Trend{ChangeThreshold: 2, DetectionPeriod: 10}, s)
	if d.Triggered {
		t.Fatalf("old move leaked into 10-day window: pct=%.4f", d.PercentChange)
	}
	assertClose(t, "windowed percent_change", d.PercentChange, 0, 0.0001)
}

func TestTrend_FlatSeriesNeverTriggers(t *testing.T) {
	s := constSeries(t, 60, 1.10)
	d := mustEvaluate(t, Trend{ChangeThreshold: 0.1, DetectionPeriod: 30}, s)
	if d.Triggered {
		t.Fatal("flat series triggered trend")
	}
}
