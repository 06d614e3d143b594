package fxcalendar

import (
	"testing"
	"time"
)

func TestIsTradingDay(t *testing.T) {
	cases := []struct {
		name string
		date time.Time
		want bool
	}{
		{"regular weekday", time.Date(2026, 3, 4, 12, 0, 0, 0, CET), true}, // Wednesday
		{"saturday", time.Date(2026, 3, 7, 12, 0, 0, 0, CET), false},
		{"sunday", time.Date(2026, 3, 8, 12, 0, 0, 0, CET), false},
		{"christmas", time.Date(2026, 12, 25, 12, 0, 0, 0, CET), false},
		{"good friday 2026", time.Date(2026, 4, 3, 12, 0, 0, 0, CET), false},
		{"easter monday 2026", time.Date(2026, 4, 6, 12, 0, 0, 0, CET), false},
		{"new year", time.Date(2026, 1, 1, 12, 0, 0, 0, CET), false},
	}
	for _, tc := range cases {
		if got := IsTradingDay(tc.date); got != tc.want {
			t.Errorf("%s: IsTradingDay = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNextPublication(t *testing.T) {
	// Wednesday morning: publication is the same day at 16:00 CET.
	wedMorning := time.Date(2026, 3, 4, 9, 0, 0, 0, CET)
	next := NextPublication(wedMorning)
	want := time.Date(2026, 3, 4, 16, 0, 0, 0, CET)
	if !next.Equal(want) {
		t.Errorf("wednesday morning: next = %v, want %v", next, want)
	}

	// Wednesday evening: publication moves to Thursday.
	wedEvening := time.Date(2026, 3, 4, 18, 0, 0, 0, CET)
	next = NextPublication(wedEvening)
	want = time.Date(2026, 3, 5, 16, 0, 0, 0, CET)
	if !next.Equal(want) {
		t.Errorf("wednesday evening: next = %v, want %v", next, want)
	}

	// Friday evening: publication skips the weekend to Monday.
	friEvening := time.Date(2026, 3, 6, 18, 0, 0, 0, CET)
	next = NextPublication(friEvening)
	want = time.Date(2026, 3, 9, 16, 0, 0, 0, CET)
	if !next.Equal(want) {
		t.Errorf("friday evening: next = %v, want %v", next, want)
	}
}

func TestIsStale(t *testing.T) {
	rateDate := time.Date(2026, 3, 4, 0, 0, 0, 0, CET) // Wednesday's rate

	// Thursday morning: Thursday's publication has not happened yet.
	if IsStale(rateDate, time.Date(2026, 3, 5, 9, 0, 0, 0, CET)) {
		t.Error("rate stale before the next publication window")
	}

	// Friday morning: Thursday's rate should exist by now.
	if !IsStale(rateDate, time.Date(2026, 3, 6, 9, 0, 0, 0, CET)) {
		t.Error("rate not stale a full publication cycle later")
	}
}
