package detector

import (
	"fxmonitor/internal/model"
)

// PriceLevel detects the latest close crossing a configured band edge,
// or sitting inside the band.
//
// crosses_above and crosses_below compare the previous close against
// the current close, so a level that was already breached does not
// re-trigger. between needs no previous bar.
type PriceLevel struct {
	PriceHigh   float64     `json:"price_high" validate:"gte=0"`
	PriceLow    float64     `json:"price_low" validate:"gte=0"`
	TriggerType TriggerType `json:"trigger_type" validate:"oneof=crosses_above crosses_below between"`
}

func (c PriceLevel) Kind() Kind   { return KindPriceLevel }
func (c PriceLevel) MinBars() int { return 2 }

func (c PriceLevel) Validate() error {
	if err := checkParams(c); err != nil {
		return err
	}
	switch c.TriggerType {
	case CrossesAbove:
		if c.PriceHigh <= 0 {
			return &model.InvalidParameterError{Field: "PriceHigh", Reason: "crosses_above requires a positive price_high"}
		}
	case CrossesBelow:
		if c.PriceLow <= 0 {
			return &model.InvalidParameterError{Field: "PriceLow", Reason: "crosses_below requires a positive price_low"}
		}
	case Between:
		if c.PriceHigh <= 0 || c.PriceLow <= 0 {
			return &model.InvalidParameterError{Field: "PriceLow", Reason: "between requires positive price_low and price_high"}
		}
		if c.PriceLow > c.PriceHigh {
			return &model.InvalidParameterError{Field: "PriceLow", Reason: "price_low must not exceed price_high"}
		}
	}
	return nil
}

func (c PriceLevel) Detect(s *model.Series, prev *model.Bar) Detection {
	cur := s.Last().Close
	prevClose := previousBar(s, prev).Close

	d := Detection{
		Kind:        KindPriceLevel,
		Pair:        s.Pair,
		CurrentRate: cur,
		PriceHigh:   c.PriceHigh,
		PriceLow:    c.PriceLow,
		TriggerType: c.TriggerType,
	}

	switch c.TriggerType {
	case CrossesAbove:
		d.Triggered = prevClose < c.PriceHigh && cur >= c.PriceHigh
	case CrossesBelow:
		d.Triggered = prevClose > c.PriceLow && cur <= c.PriceLow
	case Between:
		d.Triggered = c.PriceLow <= cur && cur <= c.PriceHigh
	}
	return d
}
