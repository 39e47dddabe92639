package attendance_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sam/internal/attendance"
	"sam/internal/testsupport"
)

func openStore(t *testing.T, clock *testsupport.Clock) *attendance.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	src := testsupport.MustLoadSettings(t, cfg)
	return testsupport.MustOpenStore(t, cfg, src, attendance.WithClock(clock.Now))
}

func morning(hour, minute int) time.Time {
	return time.Date(2024, time.June, 3, hour, minute, 0, 0, time.Local)
}

func TestRecordSuccessThenDuplicate(t *testing.T) {
	clock := testsupport.NewClock(morning(7, 55))
	store := openStore(t, clock)
	ctx := context.Background()

	res, err := store.Record(ctx, "  Alice  ")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.Outcome != attendance.OutcomeSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Record != (attendance.Record{Date: "06/03/24", Time: "07:55:00", Name: "Alice"}) {
		t.Fatalf("unexpected record %+v", res.Record)
	}
	if res.Stats.Count != 1 || len(res.Stats.Records) != 1 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}
	if res.Message != "Attendance of Alice recorded!" {
		t.Fatalf("unexpected message %q", res.Message)
	}

	clock.Advance(time.Hour)
	dup, err := store.Record(ctx, "Alice")
	if err != nil {
		t.Fatalf("Record duplicate: %v", err)
	}
	if dup.Outcome != attendance.OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %+v", dup)
	}
	if dup.Stats.Count != 1 {
		t.Fatalf("duplicate must not change count, got %d", dup.Stats.Count)
	}
}

func TestRecordRejectsEmptyName(t *testing.T) {
	store := openStore(t, testsupport.NewClock(morning(8, 0)))
	for _, name := range []string{"", "   ", "\t\n"} {
		if _, err := store.Record(context.Background(), name); !errors.Is(err, attendance.ErrEmptyName) {
			t.Fatalf("Record(%q): expected ErrEmptyName, got %v", name, err)
		}
	}
}

func TestRecordNormalizesUnicode(t *testing.T) {
	store := openStore(t, testsupport.NewClock(morning(8, 0)))
	ctx := context.Background()

	composed := "Jos\u00e9"
	decomposed := "Jose\u0301"
	if res, err := store.Record(ctx, composed); err != nil || res.Outcome != attendance.OutcomeSuccess {
		t.Fatalf("first record: %+v %v", res, err)
	}
	res, err := store.Record(ctx, decomposed)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if res.Outcome != attendance.OutcomeDuplicate {
		t.Fatalf("expected decomposed form to be a duplicate, got %+v", res)
	}
}

func TestRecordSameNameConcurrentlyYieldsOneSuccess(t *testing.T) {
	store := openStore(t, testsupport.NewClock(morning(8, 0)))
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dups      int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := store.Record(ctx, "Bob")
			if err != nil {
				t.Errorf("Record: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch res.Outcome {
			case attendance.OutcomeSuccess:
				successes++
			case attendance.OutcomeDuplicate:
				dups++
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 || dups != workers-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d/%d", workers-1, successes, dups)
	}
	records, err := store.ByDate(ctx, "06/03/24")
	if err != nil {
		t.Fatalf("ByDate: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(records))
	}
}

func TestLoadTodayOrdersByScanSequence(t *testing.T) {
	clock := testsupport.NewClock(morning(9, 30))
	cfg := testsupport.NewConfig(t)
	prefs := testsupport.MustLoadSettings(t, cfg)
	if err := prefs.Set("time_format", "%I:%M %p"); err != nil {
		t.Fatalf("Set time_format: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg, prefs, attendance.WithClock(clock.Now))
	ctx := context.Background()

	// 12-hour times do not sort lexically: "01:15 PM" < "09:30 AM".
	for _, step := range []struct {
		at   time.Time
		name string
	}{
		{morning(9, 30), "Carol"},
		{morning(12, 5), "Dan"},
		{morning(13, 15), "Erin"},
	} {
		clock.Set(step.at)
		if _, err := store.Record(ctx, step.name); err != nil {
			t.Fatalf("Record %s: %v", step.name, err)
		}
	}

	stats, err := store.LoadToday(ctx)
	if err != nil {
		t.Fatalf("LoadToday: %v", err)
	}
	var got []string
	for _, rec := range stats.Records {
		got = append(got, rec.Name+"@"+rec.Time)
	}
	want := []string{"Carol@09:30 AM", "Dan@12:05 PM", "Erin@01:15 PM"}
	if len(got) != len(want) {
		t.Fatalf("unexpected records %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
	if store.Today().Count != 3 {
		t.Fatalf("expected cached count 3, got %d", store.Today().Count)
	}
}

func TestLookupAndDates(t *testing.T) {
	clock := testsupport.NewClock(morning(8, 0))
	store := openStore(t, clock)
	ctx := context.Background()

	if _, err := store.Record(ctx, "Alice"); err != nil {
		t.Fatal(err)
	}
	clock.Set(morning(8, 0).AddDate(0, 0, 1))
	if _, err := store.Record(ctx, "Alice"); err != nil {
		t.Fatal(err)
	}

	times, err := store.Lookup(ctx, []string{"06/03/24", "06/04/24", "06/05/24"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(times) != 2 {
		t.Fatalf("expected 2 entries, got %v", times)
	}
	if times[attendance.Key{Date: "06/04/24", Name: "Alice"}] != "08:00:00" {
		t.Fatalf("unexpected lookup %v", times)
	}

	dates, err := store.Dates(ctx, 10)
	if err != nil {
		t.Fatalf("Dates: %v", err)
	}
	if len(dates) != 2 || dates[0] != "06/04/24" {
		t.Fatalf("unexpected dates %v", dates)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store := openStore(t, testsupport.NewClock(morning(8, 0)))
	if err := store.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Record(ctx, "Late Writer"); !errors.Is(err, attendance.ErrClosed) {
		t.Fatalf("Record after close: expected ErrClosed, got %v", err)
	}
	if _, err := store.LoadToday(ctx); !errors.Is(err, attendance.ErrClosed) {
		t.Fatalf("LoadToday after close: expected ErrClosed, got %v", err)
	}
	if _, err := store.ByDate(ctx, "06/03/24"); !errors.Is(err, attendance.ErrClosed) {
		t.Fatalf("ByDate after close: expected ErrClosed, got %v", err)
	}
	if _, err := store.Lookup(ctx, []string{"06/03/24"}); !errors.Is(err, attendance.ErrClosed) {
		t.Fatalf("Lookup after close: expected ErrClosed, got %v", err)
	}
	if _, err := store.Dates(ctx, 5); !errors.Is(err, attendance.ErrClosed) {
		t.Fatalf("Dates after close: expected ErrClosed, got %v", err)
	}
	if _, err := store.BackupTo(ctx, t.TempDir()); !errors.Is(err, attendance.ErrClosed) {
		t.Fatalf("BackupTo after close: expected ErrClosed, got %v", err)
	}
}

func TestBackupToWritesSnapshot(t *testing.T) {
	clock := testsupport.NewClock(morning(9, 0))
	store := openStore(t, clock)
	ctx := context.Background()
	if _, err := store.Record(ctx, "Alice"); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "backups")
	path, err := store.BackupTo(ctx, dir)
	if err != nil {
		t.Fatalf("BackupTo: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected snapshot at %s: %v", path, err)
	}
	if _, ok := attendance.LastBackup(dir); !ok {
		t.Fatal("expected LastBackup to find the snapshot")
	}
	if _, err := store.BackupTo(ctx, dir); err == nil {
		t.Fatal("expected second snapshot with the same timestamp to fail")
	}
}
