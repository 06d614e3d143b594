package fxcalendar

import "time"

// TARGET closing days, when no reference rates are published.
// Good Friday and Easter Monday are movable, so the list is per year.
// Source: ECB TARGET2 calendar.
var targetClosingDays = []struct {
	year  int
	month time.Month
	day   int
}{
	// Fixed closing days (every year, see init below)

	// 2025 movable
	{2025, time.April, 18}, // Good Friday
	{2025, time.April, 21}, // Easter Monday

	// 2026 movable
	{2026, time.April, 3}, // Good Friday
	{2026, time.April, 6}, // Easter Monday

	// 2027 movable
	{2027, time.March, 26}, // Good Friday
	{2027, time.March, 29}, // Easter Monday
}

// Fixed-date closing days applied to every year in range.
var fixedClosingDays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.May, 1},       // Labour Day
	{time.December, 25}, // Christmas Day
	{time.December, 26}, // Christmas Holiday
}

// pre-compute for fast lookup
var closingSet map[string]bool

func init() {
	closingSet = make(map[string]bool)
	for _, h := range targetClosingDays {
		closingSet[dateKey(h.year, h.month, h.day)] = true
	}
	for year := 2024; year <= 2030; year++ {
		for _, h := range fixedClosingDays {
			closingSet[dateKey(year, h.month, h.day)] = true
		}
	}
}

// IsClosingDay returns true if the date (in CET) is a TARGET closing day.
func IsClosingDay(t time.Time) bool {
	cet := t.In(CET)
	return closingSet[dateKey(cet.Year(), cet.Month(), cet.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, CET).Format("2006-01-02")
}
