package reminder

import (
	"testing"
	"time"
)

func TestFindMissedDaily(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 1, TimeOfDay: "08:00", Frequency: Daily}

	// Window spans two 08:00 instants, none confirmed sent.
	got, err := FindMissed(r, at("2025-06-09 07:00"), at("2025-06-10 09:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	want := []time.Time{at("2025-06-09 08:00"), at("2025-06-10 08:00")}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("candidate[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// The window's end clock time being earlier than its start's must not hide
// the final day's occurrence.
func TestFindMissedDailyWindowEndsEarlierInDay(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 1, TimeOfDay: "07:00", Frequency: Daily}

	// 36h window: evening start, morning end. Both 07:00 instants between
	// them qualify, including the one on the window's last calendar day.
	got, err := FindMissed(r, at("2025-06-09 20:00"), at("2025-06-11 08:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	want := []time.Time{at("2025-06-10 07:00"), at("2025-06-11 07:00")}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("candidate[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFindMissedDailyCoveredByLastFired(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 1, TimeOfDay: "08:00", Frequency: Daily, LastFired: tp("2025-06-09 08:00")}

	got, err := FindMissed(r, at("2025-06-09 07:00"), at("2025-06-10 09:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(at("2025-06-10 08:00")) {
		t.Fatalf("got %v, want only the uncovered 2025-06-10 08:00", got)
	}
}

func TestFindMissedWeekdaysSkipsWeekend(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 2, TimeOfDay: "08:00", Frequency: Weekdays}

	// Friday evening through Monday evening: only Monday 08:00 qualifies.
	got, err := FindMissed(r, at("2025-06-06 20:00"), at("2025-06-09 20:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(at("2025-06-09 08:00")) {
		t.Fatalf("got %v, want only Monday 08:00", got)
	}
}

func TestFindMissedWeekly(t *testing.T) {
	t.Parallel()
	// Never fired: no baseline, nothing to backfill.
	r := &Rule{ID: 3, TimeOfDay: "10:00", Frequency: Weekly}
	got, err := FindMissed(r, at("2025-06-01 00:00"), at("2025-06-10 00:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("weekly rule with no baseline produced %v", got)
	}

	// Fired inside the window more than 7 days before now: one backfill at +7d.
	r.LastFired = tp("2025-06-02 10:00")
	got, err = FindMissed(r, at("2025-06-01 00:00"), at("2025-06-10 00:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(at("2025-06-09 10:00")) {
		t.Fatalf("got %v, want 2025-06-09 10:00", got)
	}
}

func TestFindMissedMonthly(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 4, TimeOfDay: "09:00", Frequency: Monthly, Day: 31}

	// Feb..Mar window in a non-leap year: Feb 28 (clamped) and Mar 31.
	got, err := FindMissed(r, at("2025-02-15 00:00"), at("2025-04-01 00:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	want := []time.Time{at("2025-02-28 09:00"), at("2025-03-31 09:00")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("candidate[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// A send in March covers the March occurrence only.
	r.LastFired = tp("2025-03-31 09:00")
	got, err = FindMissed(r, at("2025-02-15 00:00"), at("2025-04-01 00:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 0 {
		// Feb candidate predates lastFired, so it is covered too.
		t.Fatalf("got %v, want none", got)
	}
}

func TestFindMissedYearly(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 5, TimeOfDay: "09:00", Frequency: Yearly, Day: 29, Month: 2}

	// Non-leap year: occurrence lands on Feb 28.
	got, err := FindMissed(r, at("2025-02-27 00:00"), at("2025-03-01 00:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(at("2025-02-28 09:00")) {
		t.Fatalf("got %v, want 2025-02-28 09:00", got)
	}

	// Already sent this year: covered.
	r.LastFired = tp("2025-02-28 09:00")
	got, err = FindMissed(r, at("2025-02-27 00:00"), at("2025-03-01 00:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want none", got)
	}
}

func TestFindMissedOnce(t *testing.T) {
	t.Parallel()
	r := &Rule{ID: 6, TimeOfDay: "08:00", Frequency: Once}

	got, err := FindMissed(r, at("2025-06-10 00:00"), at("2025-06-10 09:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(at("2025-06-10 08:00")) {
		t.Fatalf("got %v, want 2025-06-10 08:00", got)
	}

	// Outside the window: scheduled instant still ahead.
	got, err = FindMissed(r, at("2025-06-10 00:00"), at("2025-06-10 07:00"))
	if err != nil {
		t.Fatalf("FindMissed error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want none", got)
	}
}

func TestFindMissedMalformed(t *testing.T) {
	t.Parallel()
	if _, err := FindMissed(&Rule{TimeOfDay: "late", Frequency: Daily}, at("2025-06-09 00:00"), at("2025-06-10 00:00")); err == nil {
		t.Fatal("expected error for malformed time")
	}
	if _, err := FindMissed(&Rule{TimeOfDay: "08:00", Frequency: Monthly}, at("2025-06-09 00:00"), at("2025-06-10 00:00")); err == nil {
		t.Fatal("expected error for monthly rule without day")
	}
}
