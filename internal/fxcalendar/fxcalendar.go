// Package fxcalendar models the reference-rate publication calendar.
// Daily rates are published around 16:00 CET on TARGET working days,
// so polling outside those windows only burns provider quota.
package fxcalendar

import (
	"fmt"
	"time"
)

// CET is the publication timezone (UTC+1, DST ignored: the publication
// window check carries enough slack that the one-hour shift is harmless).
var CET = time.FixedZone("CET", 3600)

// Publication timing in CET.
const (
	PublishHour   = 16
	PublishMinute = 0
)

// IsTradingDay returns true if t is a TARGET working day: Mon-Fri,
// excluding TARGET closing days.
func IsTradingDay(t time.Time) bool {
	cet := t.In(CET)
	wd := cet.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !IsClosingDay(cet)
}

// TodayPublish returns today's publication time (16:00 CET).
func TodayPublish(t time.Time) time.Time {
	cet := t.In(CET)
	return time.Date(cet.Year(), cet.Month(), cet.Day(), PublishHour, PublishMinute, 0, 0, CET)
}

// NextPublication returns the next time a fresh daily rate is expected.
// If t is before today's publication on a trading day, that is today's
// 16:00 CET; otherwise the 16:00 CET of the next trading day.
func NextPublication(t time.Time) time.Time {
	cet := t.In(CET)

	today := TodayPublish(cet)
	if cet.Before(today) && IsTradingDay(cet) {
		return today
	}

	d := cet.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // holidays plus weekends never span further
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), PublishHour, PublishMinute, 0, 0, CET)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(cet.Year(), cet.Month(), cet.Day()+1, PublishHour, PublishMinute, 0, 0, CET)
}

// IsStale reports whether a rate dated rateDate should have been
// superseded by now: the publication window following the rate's own
// day has already passed, with an hour of slack for late publication.
func IsStale(rateDate, now time.Time) bool {
	next := NextPublication(TodayPublish(rateDate).Add(time.Minute))
	return now.After(next.Add(time.Hour))
}

// StatusString returns a human-readable publication status.
func StatusString(t time.Time) string {
	next := NextPublication(t)
	d := next.Sub(t)
	cet := next.In(CET)
	return fmt.Sprintf("next rate %s %s CET (%s)",
		cet.Weekday().String()[:3], cet.Format("15:04"), fmtDur(d))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
