package reminder

import (
	"fmt"
	"time"
)

// DuePolicy holds the matching knobs for a single due-check. The zero value
// is usable; normalized() fills in the documented defaults.
type DuePolicy struct {
	// MinuteSlack is the tolerance, in minutes, when matching the current
	// minute against the scheduled one. It compensates for poll granularity.
	MinuteSlack int
	// DedupWindow is the minimum spacing after a confirmed send before the
	// same rule may fire again. It prevents double-fires across adjacent
	// ticks inside one slack window.
	DedupWindow time.Duration
}

func (p DuePolicy) normalized() DuePolicy {
	if p.MinuteSlack <= 0 {
		p.MinuteSlack = 1
	}
	if p.DedupWindow <= 0 {
		p.DedupWindow = 5 * time.Minute
	}
	return p
}

// IsDue reports whether the rule fires in the poll tick containing now.
//
// An error means the rule itself is malformed (bad time, missing day/month);
// the caller logs and skips it, it never aborts the tick.
func (p DuePolicy) IsDue(r *Rule, now time.Time) (bool, error) {
	hour, minute, err := ParseTimeOfDay(r.TimeOfDay)
	if err != nil {
		return false, err
	}
	p = p.normalized()

	if now.Hour() != hour || absInt(now.Minute()-minute) > p.MinuteSlack {
		return false, nil
	}
	if r.LastFired != nil && now.Sub(*r.LastFired) < p.DedupWindow {
		return false, nil
	}

	switch r.Frequency {
	case Once:
		return r.LastFired == nil, nil

	case Daily:
		return true, nil

	case Weekdays:
		return isWeekday(now.Weekday()), nil

	case Weekly:
		if r.LastFired == nil {
			return true, nil
		}
		return now.Sub(*r.LastFired) >= 7*24*time.Hour, nil

	case Monthly:
		if r.Day < 1 {
			return false, fmt.Errorf("%w: monthly rule %d has no day", ErrIncompleteRule, r.ID)
		}
		if now.Day() != ResolveDay(now.Year(), now.Month(), r.Day) {
			return false, nil
		}
		if r.LastFired == nil {
			return true, nil
		}
		// Once per calendar month: a send in the same month+year covers it.
		return r.LastFired.Month() != now.Month() || r.LastFired.Year() != now.Year(), nil

	case Yearly:
		if r.Day < 1 || r.Month < 1 {
			return false, fmt.Errorf("%w: yearly rule %d has no day/month", ErrIncompleteRule, r.ID)
		}
		if now.Month() != time.Month(r.Month) {
			return false, nil
		}
		if now.Day() != ResolveDay(now.Year(), time.Month(r.Month), r.Day) {
			return false, nil
		}
		if r.LastFired == nil {
			return true, nil
		}
		return r.LastFired.Year() != now.Year(), nil

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownFrequency, r.Frequency)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
