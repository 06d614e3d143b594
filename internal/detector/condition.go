// Package detector provides the market-condition evaluators.
//
// Each condition type turns a daily price series plus typed parameters
// into a Detection: a trigger flag and the numeric evidence behind it.
// Conditions are pure value objects; evaluating one never mutates the
// series, so a single series can be shared across concurrent calls.
package detector

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"fxmonitor/internal/model"
)

// Kind identifies a condition type. The values match the alert_type
// strings stored in user preferences.
type Kind string

const (
	KindTrend           Kind = "percentage_change"
	KindHistoricalHigh  Kind = "historical_high"
	KindHistoricalLow   Kind = "historical_low"
	KindPriceLevel      Kind = "price_level"
	KindVolatility      Kind = "volatility"
	KindMACrossover     Kind = "moving_average"
	KindLongTermUptrend Kind = "long_term_uptrend"
)

// Condition is the closed set of market-condition rules.
//
// Validate reports parameter-range violations as
// *model.InvalidParameterError. MinBars is the structural minimum
// series length; shorter series make Evaluate fail with
// *model.InsufficientDataError. Detect is the raw computation: it
// assumes the inputs already passed validation and at least MinBars
// bars are present. Callers outside a validated loop should use the
// package-level Evaluate instead.
type Condition interface {
	Kind() Kind
	MinBars() int
	Validate() error
	Detect(s *model.Series, prev *model.Bar) Detection
}

var validate = validator.New()

// Evaluate validates the condition and the series, then runs the
// detection. prev overrides the comparison bar for conditions that
// compare "yesterday vs today"; when nil, the second-newest bar of the
// series is used.
func Evaluate(c Condition, s *model.Series, prev *model.Bar) (Detection, error) {
	if err := c.Validate(); err != nil {
		return Detection{}, err
	}
	if s == nil || s.Len() == 0 {
		return Detection{}, &model.InsufficientDataError{Needed: c.MinBars(), Got: 0, Reason: "empty series"}
	}
	if err := s.Validate(); err != nil {
		return Detection{}, err
	}
	if s.Len() < c.MinBars() {
		return Detection{}, &model.InsufficientDataError{
			Needed: c.MinBars(),
			Got:    s.Len(),
			Reason: fmt.Sprintf("%s condition", c.Kind()),
		}
	}
	return c.Detect(s, prev), nil
}

// checkParams runs struct-tag validation and converts the first
// failure into a typed InvalidParameterError.
func checkParams(c interface{}) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &model.InvalidParameterError{
			Field:  fe.Field(),
			Reason: fmt.Sprintf("failed %q constraint (param %q)", fe.Tag(), fe.Param()),
		}
	}
	return &model.InvalidParameterError{Field: "condition", Reason: err.Error()}
}

// previousBar resolves the "yesterday" bar: an explicit override when
// given, otherwise the second-newest bar of the series.
func previousBar(s *model.Series, prev *model.Bar) model.Bar {
	if prev != nil {
		return *prev
	}
	return s.Bars[s.Len()-2]
}
