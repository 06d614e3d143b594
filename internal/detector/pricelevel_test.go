package detector

import (
	"testing"

	"fxmonitor/internal/model"
)

func TestPriceLevel_CrossesAbove(t *testing.T) {
	level := PriceLevel{PriceHigh: 1.15, TriggerType: CrossesAbove}

	// Qualifying transition: previous below, current at/over the level.
	s := dailySeries(t, 1.14, 1.1501)
	if d := mustEvaluate(t, level, s); !d.Triggered {
		t.Fatal("1.14 → 1.1501 across 1.15 did not trigger")
	}

	// Already above: no re-trigger.
	s = dailySeries(t, 1.16, 1.1501)
	if d := mustEvaluate(t, level, s); d.Triggered {
		t.Fatal("series already above the level re-triggered")
	}

	// Still below.
	s = dailySeries(t, 1.13, 1.14)
	if d := mustEvaluate(t, level, s); d.Triggered {
		t.Fatal("series below the level triggered")
	}
}

func TestPriceLevel_CrossesBelow(t *testing.T) {
	level := PriceLevel{PriceLow: 1.05, TriggerType: CrossesBelow}

	s := dailySeries(t, 1.06, 1.0499)
	if d := mustEvaluate(t, level, s); !d.Triggered {
		t.Fatal("1.06 → 1.0499 across 1.05 did not trigger")
	}

	s = dailySeries(t, 1.04, 1.0499)
	if d := mustEvaluate(t, level, s); d.Triggered {
		t.Fatal("series already below the level re-triggered")
	}
}

func TestPriceLevel_Between(t *testing.T) {
	band := PriceLevel{PriceLow: 1.05, PriceHigh: 1.15, TriggerType: Between}

	if d := mustEvaluate(t, band, dailySeries(t, 1.20, 1.10)); !d.Triggered {
		t.Fatal("close inside the band did not trigger")
	}
	// Band edges are inclusive.
	if d := mustEvaluate(t, band, dailySeries(t, 1.20, 1.05)); !d.Triggered {
		t.Fatal("close on the lower band edge did not trigger")
	}
	if d := mustEvaluate(t, band, dailySeries(t, 1.20, 1.16)); d.Triggered {
		t.Fatal("close outside the band triggered")
	}
}

func TestPriceLevel_ExplicitPreviousBar(t *testing.T) {
	// The live driver passes yesterday's bar explicitly; it overrides
	// the second-newest bar of the series.
	level := PriceLevel{PriceHigh: 1.15, TriggerType: CrossesAbove}
	s := dailySeries(t, 1.16, 1.1501) // series alone would not trigger
	prev := model.BarFromRate(testStart, 1.14)

	d, err := Evaluate(level, s, &prev)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Triggered {
		t.Fatal("explicit previous bar below the level did not trigger")
	}
}

func TestPriceLevel_BandOrderValidation(t *testing.T) {
	bad := PriceLevel{PriceLow: 1.20, PriceHigh: 1.10, TriggerType: Between}
	if err := bad.Validate(); err == nil {
		t.Fatal("inverted band validated")
	}
}
