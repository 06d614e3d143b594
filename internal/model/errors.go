package model

import "fmt"

// InsufficientDataError reports a series that is empty or shorter than
// the minimum window a condition structurally requires.
type InsufficientDataError struct {
	Needed int
	Got    int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("insufficient data: %s (need %d bars, got %d)", e.Reason, e.Needed, e.Got)
	}
	return fmt.Sprintf("insufficient data: need %d bars, got %d", e.Needed, e.Got)
}

// InvalidParameterError reports a condition or policy parameter outside
// its documented range, or an unsupported enum value.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// MalformedSeriesError reports a price series that violates its
// invariants: non-monotonic dates, duplicate dates, or non-finite or
// non-positive prices.
type MalformedSeriesError struct {
	Index  int
	Reason string
}

func (e *MalformedSeriesError) Error() string {
	return fmt.Sprintf("malformed series at bar %d: %s", e.Index, e.Reason)
}
