package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sam/internal/logging"
	"sam/internal/settings"
)

type stubSettings struct {
	mu     sync.Mutex
	values settings.Values
}

func (s *stubSettings) Get() settings.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values
}

type fileSnapshotter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fileSnapshotter) BackupTo(_ context.Context, dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "attendance-"+time.Now().Format("20060102-150405.000000000")+".db")
	return path, os.WriteFile(path, []byte("db"), 0o644)
}

func (f *fileSnapshotter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type backupCounter struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (c *backupCounter) ObserveBackup(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failures++
	} else {
		c.successes++
	}
}

func TestBackupLoopSnapshotsWhenNoneExist(t *testing.T) {
	dir := t.TempDir()
	src := &stubSettings{values: settings.Defaults()}
	snap := &fileSnapshotter{}
	loop := newBackupLoop(snap, src, dir, 14, nil, logging.NewNop())

	loop.Start(context.Background())
	defer loop.Stop()

	waitFor(t, "first snapshot", func() bool { return snap.count() >= 1 })
	if d := loop.nextDelay(); d < 23*time.Hour {
		t.Fatalf("next delay after fresh snapshot = %v, want about 24h", d)
	}
}

func TestBackupLoopDelays(t *testing.T) {
	dir := t.TempDir()
	values := settings.Defaults()
	values.AutoBackup = false
	src := &stubSettings{values: values}
	loop := newBackupLoop(&fileSnapshotter{}, src, dir, 14, nil, logging.NewNop())

	if d := loop.nextDelay(); d != backupRecheck {
		t.Fatalf("disabled delay = %v, want %v", d, backupRecheck)
	}

	src.mu.Lock()
	src.values.AutoBackup = true
	src.mu.Unlock()
	if d := loop.nextDelay(); d != 0 {
		t.Fatalf("delay without snapshots = %v, want 0", d)
	}
}

func TestBackupFailureRetriesSooner(t *testing.T) {
	dir := t.TempDir()
	counter := &backupCounter{}
	snap := &fileSnapshotter{err: errors.New("disk full")}
	loop := newBackupLoop(snap, &stubSettings{values: settings.Defaults()}, dir, 14, counter, logging.NewNop())

	if _, err := loop.Snapshot(context.Background()); err == nil {
		t.Fatal("expected snapshot error")
	}
	if d := loop.nextDelay(); d != backupRetry {
		t.Fatalf("delay after failure = %v, want %v", d, backupRetry)
	}

	snap.mu.Lock()
	snap.err = nil
	snap.mu.Unlock()
	if _, err := loop.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if counter.failures != 1 || counter.successes != 1 {
		t.Fatalf("observer saw %d failures, %d successes", counter.failures, counter.successes)
	}
}

func TestBackupSnapshotPrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "attendance-20200101-000000.db")
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	loop := newBackupLoop(&fileSnapshotter{}, &stubSettings{values: settings.Defaults()}, dir, 14, nil, logging.NewNop())
	path, err := loop.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected stale snapshot pruned, stat err = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("new snapshot missing: %v", err)
	}
}
