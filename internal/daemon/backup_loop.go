package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sam/internal/attendance"
	"sam/internal/logging"
	"sam/internal/settings"
)

const (
	backupRecheck = time.Hour
	backupRetry   = 5 * time.Minute
)

type snapshotter interface {
	BackupTo(ctx context.Context, dir string) (string, error)
}

type backupObserver interface {
	ObserveBackup(err error)
}

// backupLoop writes periodic database snapshots while auto_backup is on
// and prunes snapshots older than the retention window.
type backupLoop struct {
	store         snapshotter
	settings      interface{ Get() settings.Values }
	dir           string
	retentionDays int
	observer      backupObserver
	logger        *slog.Logger
	now           func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	kick    chan struct{}
	retry   bool
	wg      sync.WaitGroup
}

func newBackupLoop(store snapshotter, src interface{ Get() settings.Values }, dir string, retentionDays int, observer backupObserver, logger *slog.Logger) *backupLoop {
	return &backupLoop{
		store:         store,
		settings:      src,
		dir:           dir,
		retentionDays: retentionDays,
		observer:      observer,
		logger:        logging.NewComponentLogger(logger, "backup"),
		now:           time.Now,
		kick:          make(chan struct{}, 1),
	}
}

func (b *backupLoop) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true
	b.wg.Add(1)
	go b.loop(runCtx)
}

func (b *backupLoop) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.running = false
	b.cancel = nil
	b.mu.Unlock()

	cancel()
	b.wg.Wait()
}

// Kick makes the loop recompute its next deadline, e.g. after a settings change.
func (b *backupLoop) Kick() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *backupLoop) loop(ctx context.Context) {
	defer b.wg.Done()
	for {
		timer := time.NewTimer(b.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-b.kick:
			timer.Stop()
			continue
		case <-timer.C:
		}
		if !b.settings.Get().AutoBackup {
			continue
		}
		if b.due() {
			_, _ = b.Snapshot(ctx)
		}
	}
}

func (b *backupLoop) nextDelay() time.Duration {
	values := b.settings.Get()
	if !values.AutoBackup || values.BackupEvery() <= 0 {
		return backupRecheck
	}
	b.mu.Lock()
	retry := b.retry
	b.mu.Unlock()
	if retry {
		return backupRetry
	}
	last, ok := attendance.LastBackup(b.dir)
	if !ok {
		return 0
	}
	return max(last.Add(values.BackupEvery()).Sub(b.now()), 0)
}

func (b *backupLoop) due() bool {
	b.mu.Lock()
	retry := b.retry
	b.mu.Unlock()
	if retry {
		return true
	}
	last, ok := attendance.LastBackup(b.dir)
	return !ok || !b.now().Before(last.Add(b.settings.Get().BackupEvery()))
}

// Snapshot writes one backup now and prunes old ones.
func (b *backupLoop) Snapshot(ctx context.Context) (string, error) {
	path, err := b.store.BackupTo(ctx, b.dir)
	if b.observer != nil {
		b.observer.ObserveBackup(err)
	}
	b.mu.Lock()
	b.retry = err != nil
	b.mu.Unlock()
	if err != nil {
		logging.WarnWithContext(b.logger, "database snapshot failed", "backup_failed",
			logging.Error(err),
			logging.String("dir", b.dir),
			logging.Duration("retry_in", backupRetry),
			logging.String(logging.FieldErrorHint, "check free space and permissions on backup_dir"),
		)
		return "", err
	}
	if removed := logging.CleanupOldLogs(b.logger, b.retentionDays, logging.RetentionTarget{
		Dir:     b.dir,
		Pattern: attendance.BackupPattern,
		Exclude: []string{path},
	}); removed > 0 {
		b.logger.Info("pruned old snapshots", logging.Int("removed", removed))
	}
	return path, nil
}
