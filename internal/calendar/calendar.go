// Package calendar holds the working-day arithmetic shared by allocation and reporting.
// Working days are Monday to Friday; weeks start on Monday. All functions are pure and
// treat an inverted range as empty rather than failing.
package calendar

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Day truncates t to its calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// Format renders a date as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(DateLayout)
}

// WorkingDays counts weekdays in [start, end], both inclusive. It returns 0 when end is before start.
func WorkingDays(start, end time.Time) int {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return 0
	}
	span := int(end.Sub(start).Hours()/24) + 1
	days := (span / 7) * 5
	cur := start.AddDate(0, 0, (span/7)*7)
	for !cur.After(end) {
		if isWeekday(cur) {
			days++
		}
		cur = cur.AddDate(0, 0, 1)
	}
	return days
}

// WeekStart returns the Monday on or before date.
func WeekStart(date time.Time) time.Time {
	d := Day(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekOverlap counts the working days of [rangeStart, rangeEnd] that fall in the week
// beginning at weekStart.
func WeekOverlap(rangeStart, rangeEnd, weekStart time.Time) int {
	ws := Day(weekStart)
	we := ws.AddDate(0, 0, 6)
	s, e := Day(rangeStart), Day(rangeEnd)
	if s.Before(ws) {
		s = ws
	}
	if e.After(we) {
		e = we
	}
	return WorkingDays(s, e)
}

// Weeks returns the Monday of every week touched by [from, to], ascending.
func Weeks(from, to time.Time) []time.Time {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil
	}
	var weeks []time.Time
	for w := WeekStart(from); !w.After(to); w = w.AddDate(0, 0, 7) {
		weeks = append(weeks, w)
	}
	return weeks
}

func isWeekday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
