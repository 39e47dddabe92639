package attendance_test

import (
	"context"
	"testing"
	"time"

	"sam/internal/attendance"
	"sam/internal/logging"
	"sam/internal/testsupport"
)

func TestRolloverDetectsNewDayAndKeepsHistory(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2024, time.June, 3, 23, 30, 0, 0, time.Local))
	store := openStore(t, clock)
	ctx := context.Background()
	if _, err := store.Record(ctx, "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadToday(ctx); err != nil {
		t.Fatal(err)
	}

	var got []attendance.Stats
	roll := attendance.NewRollover(store, time.Hour, func(s attendance.Stats) { got = append(got, s) }, logging.NewNop())
	if err := roll.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer roll.Stop()

	if roll.Check(ctx) {
		t.Fatal("expected no rollover on the same day")
	}

	clock.Advance(time.Hour)
	if !roll.Check(ctx) {
		t.Fatal("expected rollover after midnight")
	}
	if len(got) != 1 || got[0].Date != "06/04/24" || got[0].Count != 0 {
		t.Fatalf("unexpected new day stats %+v", got)
	}
	if store.Today().Count != 0 {
		t.Fatalf("expected empty today after rollover, got %d", store.Today().Count)
	}

	old, err := store.ByDate(ctx, "06/03/24")
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 1 {
		t.Fatalf("rollover must not delete history, got %d rows", len(old))
	}
	if roll.Check(ctx) {
		t.Fatal("expected a single rollover per date change")
	}
}

func TestRolloverIgnoresDateFormatChange(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2024, time.June, 3, 10, 0, 0, 0, time.Local))
	cfg := testsupport.NewConfig(t)
	prefs := testsupport.MustLoadSettings(t, cfg)
	store := testsupport.MustOpenStore(t, cfg, prefs, attendance.WithClock(clock.Now))
	ctx := context.Background()

	calls := 0
	roll := attendance.NewRollover(store, time.Hour, func(attendance.Stats) { calls++ }, logging.NewNop())
	if err := roll.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer roll.Stop()

	if err := prefs.Set("date_format", "%Y-%m-%d"); err != nil {
		t.Fatalf("Set date_format: %v", err)
	}
	clock.Advance(time.Minute)
	if roll.Check(ctx) || calls != 0 {
		t.Fatalf("format change on the same day must not start a new day (callbacks=%d)", calls)
	}

	clock.Advance(14 * time.Hour)
	if !roll.Check(ctx) || calls != 1 {
		t.Fatalf("expected one rollover at midnight, got callbacks=%d", calls)
	}
	if got := store.Today().Date; got != "2024-06-04" {
		t.Fatalf("today should use the new format, got %q", got)
	}
}

func TestRolloverContainsCallbackPanic(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2024, time.June, 3, 23, 59, 0, 0, time.Local))
	store := openStore(t, clock)
	roll := attendance.NewRollover(store, time.Hour, func(attendance.Stats) { panic("ui gone") }, logging.NewNop())
	if err := roll.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)
	if roll.Check(context.Background()) {
		t.Fatal("expected panic to be reported as no change")
	}
	done := make(chan struct{})
	go func() {
		roll.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}
	roll.Stop()
}
