package model

import (
	"math"
	"time"
)

// Bar represents one daily OHLC price observation for a currency pair.
// Sources that expose only a single daily rate set all four prices to
// that rate.
type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// BarFromRate builds a Bar from a single daily rate.
func BarFromRate(date time.Time, rate float64) Bar {
	return Bar{Date: date, Open: rate, High: rate, Low: rate, Close: rate}
}

// Series is an ordered sequence of daily bars covering a lookback
// window. Bars are strictly increasing by date with no duplicates;
// calendar gaps (weekends, holidays) are allowed. A Series is built
// once and never mutated by the detectors or the backtester, so one
// instance is safe to share across concurrent evaluations.
type Series struct {
	Pair string `json:"pair"`
	Bars []Bar  `json:"bars"`
}

// NewSeries validates the bars and returns a Series.
// Returns MalformedSeriesError on out-of-order or duplicate dates, or
// non-finite / non-positive prices. Rejecting bad input is preferred
// over silently resorting, which would hide an upstream data bug.
func NewSeries(pair string, bars []Bar) (*Series, error) {
	s := &Series{Pair: pair, Bars: bars}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the series invariants.
func (s *Series) Validate() error {
	for i, b := range s.Bars {
		for _, p := range [4]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return &MalformedSeriesError{Index: i, Reason: "non-finite price"}
			}
			if p <= 0 {
				return &MalformedSeriesError{Index: i, Reason: "non-positive price"}
			}
		}
		if i == 0 {
			continue
		}
		prev := s.Bars[i-1].Date
		if b.Date.Equal(prev) {
			return &MalformedSeriesError{Index: i, Reason: "duplicate date " + b.Date.Format("2006-01-02")}
		}
		if b.Date.Before(prev) {
			return &MalformedSeriesError{Index: i, Reason: "dates not in ascending order"}
		}
	}
	return nil
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Bars) }

// Last returns the most recent bar. Callers must check Len() first.
func (s *Series) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Prefix returns a view of the series covering bars [0..i] inclusive.
// The underlying slice is shared; the view must be treated read-only.
func (s *Series) Prefix(i int) *Series {
	return &Series{Pair: s.Pair, Bars: s.Bars[:i+1]}
}

// Closes returns the closing prices in bar order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Since returns a view of the trailing bars whose date is on or after
// cutoff. The underlying slice is shared with the receiver.
func (s *Series) Since(cutoff time.Time) *Series {
	bars := s.Bars
	lo := 0
	for lo < len(bars) && bars[lo].Date.Before(cutoff) {
		lo++
	}
	return &Series{Pair: s.Pair, Bars: bars[lo:]}
}
