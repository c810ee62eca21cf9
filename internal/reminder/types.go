package reminder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownFrequency marks a frequency value outside the closed set below.
	ErrUnknownFrequency = errors.New("unknown frequency")
	// ErrInvalidTimeOfDay marks a schedule time that is not a valid "HH:MM".
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
	// ErrIncompleteRule marks a rule missing a field its frequency requires
	// (day for Monthly/Yearly, month for Yearly).
	ErrIncompleteRule = errors.New("incomplete rule")
)

// Frequency is the closed set of recurrence patterns a rule may use.
type Frequency string

const (
	Once     Frequency = "Once"
	Daily    Frequency = "Daily"
	Weekdays Frequency = "Weekdays"
	Weekly   Frequency = "Weekly"
	Monthly  Frequency = "Monthly"
	Yearly   Frequency = "Yearly"
)

// Frequencies lists every valid frequency, in display order.
var Frequencies = []Frequency{Once, Daily, Weekdays, Weekly, Monthly, Yearly}

func ParseFrequency(s string) (Frequency, error) {
	for _, f := range Frequencies {
		if strings.EqualFold(strings.TrimSpace(s), string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, s)
}

// Rule is one recurring reminder. Contact fields are denormalized onto the
// rule by the store read so the engine never has to join on its own.
type Rule struct {
	ID          int64
	ContactID   int64
	ContactName string
	Address     string // destination (phone for whatsapp, chat id for telegram)
	Message     string
	TimeOfDay   string // "HH:MM", minute granularity
	Frequency   Frequency
	Day         int // 1..31; Monthly and Yearly only
	Month       int // 1..12; Yearly only
	Active      bool
	LastFired   *time.Time // nil until the first confirmed send
	CreatedAt   time.Time
}

// Validate enforces the required-field invariants at construction time so the
// evaluator never has to guess.
func (r *Rule) Validate() error {
	if _, err := ParseFrequency(string(r.Frequency)); err != nil {
		return err
	}
	if _, _, err := ParseTimeOfDay(r.TimeOfDay); err != nil {
		return err
	}
	switch r.Frequency {
	case Monthly:
		if r.Day < 1 || r.Day > 31 {
			return fmt.Errorf("%w: monthly rule needs day 1..31, got %d", ErrIncompleteRule, r.Day)
		}
		if r.Month != 0 {
			return fmt.Errorf("%w: month is only valid on yearly rules", ErrIncompleteRule)
		}
	case Yearly:
		if r.Day < 1 || r.Day > 31 {
			return fmt.Errorf("%w: yearly rule needs day 1..31, got %d", ErrIncompleteRule, r.Day)
		}
		if r.Month < 1 || r.Month > 12 {
			return fmt.Errorf("%w: yearly rule needs month 1..12, got %d", ErrIncompleteRule, r.Month)
		}
	default:
		if r.Day != 0 || r.Month != 0 {
			return fmt.Errorf("%w: day/month are only valid on monthly and yearly rules", ErrIncompleteRule)
		}
	}
	return nil
}

// ParseTimeOfDay parses a "HH:MM" schedule time.
func ParseTimeOfDay(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q, expected HH:MM", ErrInvalidTimeOfDay, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidTimeOfDay, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidTimeOfDay, s)
	}
	return h, m, nil
}

func isWeekday(d time.Weekday) bool {
	return d >= time.Monday && d <= time.Friday
}
