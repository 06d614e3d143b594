package model

import (
	"errors"
	"math"
	"testing"
	"time"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func rateBars(rates ...float64) []Bar {
	bars := make([]Bar, len(rates))
	for i, r := range rates {
		bars[i] = BarFromRate(testStart.AddDate(0, 0, i), r)
	}
	return bars
}

func TestNewSeries_Valid(t *testing.T) {
	s, err := NewSeries("EUR/USD", rateBars(1.10, 1.11, 1.12))
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if got := s.Last().Close; got != 1.12 {
		t.Errorf("Last().Close = %v, want 1.12", got)
	}
}

func TestNewSeries_WeekendGapsAllowed(t *testing.T) {
	bars := []Bar{
		BarFromRate(testStart, 1.10),                  // Wednesday
		BarFromRate(testStart.AddDate(0, 0, 1), 1.11), // Thursday
		BarFromRate(testStart.AddDate(0, 0, 4), 1.12), // next Monday
	}
	if _, err := NewSeries("EUR/USD", bars); err != nil {
		t.Fatalf("calendar gap rejected: %v", err)
	}
}

func TestSeriesValidate_Malformed(t *testing.T) {
	cases := []struct {
		name string
		bars []Bar
		idx  int
	}{
		{
			name: "duplicate date",
			bars: []Bar{BarFromRate(testStart, 1.10), BarFromRate(testStart, 1.11)},
			idx:  1,
		},
		{
			name: "descending dates",
			bars: []Bar{BarFromRate(testStart.AddDate(0, 0, 1), 1.10), BarFromRate(testStart, 1.11)},
			idx:  1,
		},
		{
			name: "zero price",
			bars: rateBars(1.10, 0),
			idx:  1,
		},
		{
			name: "negative price",
			bars: rateBars(-1.10),
			idx:  0,
		},
		{
			name: "NaN price",
			bars: rateBars(1.10, math.NaN()),
			idx:  1,
		},
		{
			name: "infinite price",
			bars: rateBars(math.Inf(1)),
			idx:  0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSeries("EUR/USD", tc.bars)
			var mse *MalformedSeriesError
			if !errors.As(err, &mse) {
				t.Fatalf("got %v, want MalformedSeriesError", err)
			}
			if mse.Index != tc.idx {
				t.Errorf("Index = %d, want %d", mse.Index, tc.idx)
			}
		})
	}
}

func TestSeriesPrefix(t *testing.T) {
	s, err := NewSeries("EUR/USD", rateBars(1.10, 1.11, 1.12, 1.13))
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	p := s.Prefix(1)
	if p.Len() != 2 {
		t.Fatalf("Prefix(1).Len = %d, want 2", p.Len())
	}
	if got := p.Last().Close; got != 1.11 {
		t.Errorf("Prefix(1).Last().Close = %v, want 1.11", got)
	}
	if p.Pair != "EUR/USD" {
		t.Errorf("Prefix pair = %q, want EUR/USD", p.Pair)
	}
}

func TestSeriesSince(t *testing.T) {
	s, err := NewSeries("EUR/USD", rateBars(1.10, 1.11, 1.12, 1.13, 1.14))
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}

	// Cutoff on an existing date is inclusive.
	w := s.Since(testStart.AddDate(0, 0, 2))
	if w.Len() != 3 {
		t.Fatalf("Since(+2d).Len = %d, want 3", w.Len())
	}
	if got := w.Bars[0].Close; got != 1.12 {
		t.Errorf("first bar close = %v, want 1.12", got)
	}

	// Cutoff before the first bar keeps everything.
	if w := s.Since(testStart.AddDate(0, 0, -10)); w.Len() != 5 {
		t.Errorf("early cutoff Len = %d, want 5", w.Len())
	}

	// Cutoff after the last bar keeps nothing.
	if w := s.Since(testStart.AddDate(0, 0, 10)); w.Len() != 0 {
		t.Errorf("late cutoff Len = %d, want 0", w.Len())
	}
}

func TestBarFromRate(t *testing.T) {
	b := BarFromRate(testStart, 1.2345)
	if b.Open != 1.2345 || b.High != 1.2345 || b.Low != 1.2345 || b.Close != 1.2345 {
		t.Errorf("BarFromRate did not set all prices: %+v", b)
	}
}
