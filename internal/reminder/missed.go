package reminder

import (
	"fmt"
	"sort"
	"time"
)

// FindMissed enumerates the occurrences of r that should have fired strictly
// inside (windowStart, now) but were never confirmed sent. Candidates come
// back oldest first; the caller dispatches them sequentially.
//
// A Weekly rule that has never fired yields nothing: with no baseline there
// is no "next due" to have missed. Its first live due-check still fires.
func FindMissed(r *Rule, windowStart, now time.Time) ([]time.Time, error) {
	hour, minute, err := ParseTimeOfDay(r.TimeOfDay)
	if err != nil {
		return nil, err
	}

	var cands []time.Time

	switch r.Frequency {
	case Once:
		c := dayAt(now, hour, minute)
		cands = appendInWindow(cands, c, windowStart, now)

	case Daily, Weekdays:
		// Walk the candidate instants themselves, one per calendar day from
		// the window's first day until now. Walking window timestamps instead
		// would skip the final day whenever now's clock time is earlier than
		// windowStart's; the in-window filter drops the out-of-interval edges.
		for c := dayAt(windowStart, hour, minute); c.Before(now); c = c.AddDate(0, 0, 1) {
			if r.Frequency == Weekdays && !isWeekday(c.Weekday()) {
				continue
			}
			cands = appendInWindow(cands, c, windowStart, now)
		}

	case Weekly:
		if r.LastFired != nil && r.LastFired.After(windowStart) {
			c := dayAt(r.LastFired.AddDate(0, 0, 7), hour, minute)
			cands = appendInWindow(cands, c, windowStart, now)
		}

	case Monthly:
		if r.Day < 1 {
			return nil, fmt.Errorf("%w: monthly rule %d has no day", ErrIncompleteRule, r.ID)
		}
		y, m := windowStart.Year(), windowStart.Month()
		for {
			day := ResolveDay(y, m, r.Day)
			c := time.Date(y, m, day, hour, minute, 0, 0, now.Location())
			if r.LastFired == nil || r.LastFired.Month() != c.Month() || r.LastFired.Year() != c.Year() {
				cands = appendInWindow(cands, c, windowStart, now)
			}
			if y == now.Year() && m == now.Month() {
				break
			}
			m++
			if m > time.December {
				m = time.January
				y++
			}
		}

	case Yearly:
		if r.Day < 1 || r.Month < 1 {
			return nil, fmt.Errorf("%w: yearly rule %d has no day/month", ErrIncompleteRule, r.ID)
		}
		for y := windowStart.Year(); y <= now.Year(); y++ {
			if r.LastFired != nil && r.LastFired.Year() == y {
				continue
			}
			day := ResolveDay(y, time.Month(r.Month), r.Day)
			c := time.Date(y, time.Month(r.Month), day, hour, minute, 0, 0, now.Location())
			cands = appendInWindow(cands, c, windowStart, now)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, r.Frequency)
	}

	// A same-or-later confirmed send covers the candidate regardless of
	// which frequency branch produced it.
	out := cands[:0]
	for _, c := range cands {
		if r.LastFired != nil && !r.LastFired.Before(c) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// dayAt pins t's calendar date to the given wall-clock time.
func dayAt(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

func appendInWindow(cands []time.Time, c, start, end time.Time) []time.Time {
	if c.After(start) && c.Before(end) {
		cands = append(cands, c)
	}
	return cands
}
