package reminder

import "time"

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ResolveDay maps a nominal day-of-month onto the nearest valid day in the
// given month: the 31st becomes the 30th in April, and Feb 29 becomes Feb 28
// outside leap years. Rules keep their nominal day; only the occurrence moves.
func ResolveDay(year int, month time.Month, desired int) int {
	if desired < 1 {
		return 1
	}
	if n := DaysInMonth(year, month); desired > n {
		return n
	}
	return desired
}
