package models

import "time"

type WindowKind int

const (
	WindowAll WindowKind = iota
	WindowMonth
	WindowLastDays
)

// Window selects the transactions an aggregate runs over.
type Window struct {
	Kind  WindowKind
	Year  int
	Month time.Month
	Days  int
}

func AllTime() Window {
	return Window{Kind: WindowAll}
}

func MonthOf(year int, month time.Month) Window {
	return Window{Kind: WindowMonth, Year: year, Month: month}
}

func LastDays(n int) Window {
	return Window{Kind: WindowLastDays, Days: n}
}

// Bounds returns the half-open [from, to) range in now's location.
// bounded is false for WindowAll.
func (w Window) Bounds(now time.Time) (from, to time.Time, bounded bool) {
	loc := now.Location()
	switch w.Kind {
	case WindowMonth:
		from = time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0), true
	case WindowLastDays:
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		days := w.Days
		if days < 1 {
			days = 1
		}
		return today.AddDate(0, 0, -(days - 1)), today.AddDate(0, 0, 1), true
	default:
		return time.Time{}, time.Time{}, false
	}
}
