package reminder

import (
	"errors"
	"testing"
	"time"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func tp(s string) *time.Time {
	t := at(s)
	return &t
}

func TestIsDueTimeMatch(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 1, TimeOfDay: "09:00", Frequency: Daily}
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "exact minute", now: at("2025-06-10 09:00"), want: true},
		{name: "one minute late", now: at("2025-06-10 09:01"), want: true},
		{name: "one minute early", now: at("2025-06-10 08:59"), want: false}, // hour differs
		{name: "two minutes late", now: at("2025-06-10 09:02"), want: false},
		{name: "wrong hour", now: at("2025-06-10 10:00"), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := DuePolicy{}.IsDue(r, tt.now)
			if err != nil {
				t.Fatalf("IsDue error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("IsDue at %v = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestIsDueDedupWindow(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 1, TimeOfDay: "09:00", Frequency: Daily, LastFired: tp("2025-06-10 09:00")}
	p := DuePolicy{}

	if due, _ := p.IsDue(r, at("2025-06-10 09:01")); due {
		t.Fatal("due again one minute after a confirmed send")
	}
	if due, _ := p.IsDue(r, at("2025-06-11 09:00")); !due {
		t.Fatal("daily rule not due the next day")
	}
}

func TestIsDueFrequencies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rule Rule
		now  time.Time
		want bool
	}{
		{name: "once never fired", rule: Rule{TimeOfDay: "09:00", Frequency: Once}, now: at("2025-06-10 09:00"), want: true},
		{name: "once already fired", rule: Rule{TimeOfDay: "09:00", Frequency: Once, LastFired: tp("2025-06-01 09:00")}, now: at("2025-06-10 09:00"), want: false},
		{name: "weekdays on tuesday", rule: Rule{TimeOfDay: "09:00", Frequency: Weekdays}, now: at("2025-06-10 09:00"), want: true},
		{name: "weekdays on saturday", rule: Rule{TimeOfDay: "09:00", Frequency: Weekdays}, now: at("2025-06-14 09:00"), want: false},
		{name: "weekly 8 days since", rule: Rule{TimeOfDay: "09:00", Frequency: Weekly, LastFired: tp("2025-06-02 09:00")}, now: at("2025-06-10 09:00"), want: true},
		{name: "weekly 6 days since", rule: Rule{TimeOfDay: "09:00", Frequency: Weekly, LastFired: tp("2025-06-04 09:00")}, now: at("2025-06-10 09:00"), want: false},
		{name: "weekly never fired", rule: Rule{TimeOfDay: "09:00", Frequency: Weekly}, now: at("2025-06-10 09:00"), want: true},
		{name: "monthly on the day", rule: Rule{TimeOfDay: "09:00", Frequency: Monthly, Day: 10}, now: at("2025-06-10 09:00"), want: true},
		{name: "monthly wrong day", rule: Rule{TimeOfDay: "09:00", Frequency: Monthly, Day: 11}, now: at("2025-06-10 09:00"), want: false},
		{name: "monthly fired last month", rule: Rule{TimeOfDay: "09:00", Frequency: Monthly, Day: 10, LastFired: tp("2025-05-10 09:00")}, now: at("2025-06-10 09:00"), want: true},
		{name: "monthly fired this month", rule: Rule{TimeOfDay: "09:00", Frequency: Monthly, Day: 10, LastFired: tp("2025-06-10 09:00")}, now: at("2025-06-10 09:05"), want: false},
		{name: "yearly on the day", rule: Rule{TimeOfDay: "09:00", Frequency: Yearly, Day: 10, Month: 6}, now: at("2025-06-10 09:00"), want: true},
		{name: "yearly wrong month", rule: Rule{TimeOfDay: "09:00", Frequency: Yearly, Day: 10, Month: 7}, now: at("2025-06-10 09:00"), want: false},
		{name: "yearly fired last year", rule: Rule{TimeOfDay: "09:00", Frequency: Yearly, Day: 10, Month: 6, LastFired: tp("2024-06-10 09:00")}, now: at("2025-06-10 09:00"), want: true},
		{name: "yearly fired this year", rule: Rule{TimeOfDay: "09:00", Frequency: Yearly, Day: 10, Month: 6, LastFired: tp("2025-06-10 09:00")}, now: at("2025-06-10 09:06"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := DuePolicy{}.IsDue(&tt.rule, tt.now)
			if err != nil {
				t.Fatalf("IsDue error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

// Monthly day=31 degrades to the last day of short months instead of skipping.
func TestIsDueMonthlyClamped(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 7, TimeOfDay: "09:00", Frequency: Monthly, Day: 31}

	due, err := DuePolicy{}.IsDue(r, at("2025-02-28 09:00"))
	if err != nil {
		t.Fatalf("IsDue error: %v", err)
	}
	if !due {
		t.Fatal("day-31 monthly rule not due on Feb 28 (non-leap)")
	}

	// Same occurrence a minute later, now recorded as sent.
	r.LastFired = tp("2025-02-28 09:00")
	due, err = DuePolicy{}.IsDue(r, at("2025-02-28 09:01"))
	if err != nil {
		t.Fatalf("IsDue error: %v", err)
	}
	if due {
		t.Fatal("clamped monthly occurrence fired twice in one window")
	}
}

// Yearly Feb 29 fires on Feb 28 outside leap years and re-arms on a year change.
func TestIsDueYearlyLeapDay(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 8, TimeOfDay: "09:00", Frequency: Yearly, Day: 29, Month: 2}
	p := DuePolicy{}

	if due, _ := p.IsDue(r, at("2025-02-28 09:00")); !due {
		t.Fatal("Feb 29 rule not due on Feb 28 of a non-leap year")
	}

	r.LastFired = tp("2025-02-28 09:00")
	if due, _ := p.IsDue(r, at("2028-02-29 09:00")); !due {
		t.Fatal("Feb 29 rule not re-armed in the next leap year")
	}
}

func TestIsDueMalformedRule(t *testing.T) {
	t.Parallel()
	p := DuePolicy{}
	if _, err := p.IsDue(&Rule{TimeOfDay: "9am", Frequency: Daily}, at("2025-06-10 09:00")); !errors.Is(err, ErrInvalidTimeOfDay) {
		t.Fatalf("expected ErrInvalidTimeOfDay, got %v", err)
	}
	if _, err := p.IsDue(&Rule{TimeOfDay: "09:00", Frequency: Monthly}, at("2025-06-10 09:00")); !errors.Is(err, ErrIncompleteRule) {
		t.Fatalf("expected ErrIncompleteRule, got %v", err)
	}
	if _, err := p.IsDue(&Rule{TimeOfDay: "09:00", Frequency: Yearly, Day: 3}, at("2025-06-10 09:00")); !errors.Is(err, ErrIncompleteRule) {
		t.Fatalf("expected ErrIncompleteRule, got %v", err)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	h, m, err := ParseTimeOfDay("23:15")
	if err != nil {
		t.Fatalf("ParseTimeOfDay error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	for _, bad := range []string{"24:00", "12:60", "12", "a:b", ""} {
		if _, _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestRuleValidate(t *testing.T) {
	t.Parallel()
	ok := Rule{TimeOfDay: "08:00", Frequency: Monthly, Day: 31}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	bad := Rule{TimeOfDay: "08:00", Frequency: Daily, Day: 5}
	if err := bad.Validate(); !errors.Is(err, ErrIncompleteRule) {
		t.Fatalf("daily rule with day accepted: %v", err)
	}
}
