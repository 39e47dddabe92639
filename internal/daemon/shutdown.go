package daemon

import (
	"errors"
	"time"

	"sam/internal/logging"
)

// OnWindowClosing handles the host window going away: UI delivery stops,
// shutdown is raised and Cleanup runs in the background. It never blocks.
func (d *Daemon) OnWindowClosing() {
	if d.state.MarkWindowClosed() {
		d.logger.Info("window closing",
			logging.String(logging.FieldEventType, "window_closing"),
		)
	}
	d.RequestShutdown()
}

// RequestShutdown raises the shutdown flag and starts Cleanup in the
// background.
func (d *Daemon) RequestShutdown() {
	if d.state.RequestShutdown() {
		d.logger.Info("shutdown requested",
			logging.String(logging.FieldEventType, "shutdown_requested"),
		)
	}
	go func() { _ = d.Cleanup() }()
}

// Done is closed once shutdown has been requested.
func (d *Daemon) Done() <-chan struct{} { return d.state.Done() }

// Cleanup releases every resource at most once. Concurrent and later
// callers block until the first run finishes and share its result.
func (d *Daemon) Cleanup() error {
	if !d.state.ClaimCleanup() {
		<-d.cleanupDone
		return d.cleanupErr
	}
	defer close(d.cleanupDone)

	d.state.RequestShutdown()
	started := time.Now()
	d.logger.Info("cleanup started",
		logging.String(logging.FieldEventType, "cleanup_started"),
	)

	var errs []error
	if err := d.capture.Stop(); err != nil {
		errs = append(errs, err)
	}
	d.bounded("camera monitor", d.monitor.Stop)
	d.bounded("rollover", d.rollover.Stop)
	d.bounded("backups", d.backups.Stop)
	d.api.stop()

	d.startMu.Lock()
	d.tasksClosed = true
	cancel := d.cancel
	d.startMu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.bounded("background tasks", d.tasks.Wait)

	d.hub.Close()
	if err := d.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.running.Swap(false) {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}

	d.cleanupErr = errors.Join(errs...)
	if d.cleanupErr != nil {
		logging.WarnWithContext(d.logger, "cleanup finished with errors", "cleanup_failed",
			logging.Error(d.cleanupErr),
			logging.Duration("elapsed", time.Since(started)),
		)
	} else {
		d.logger.Info("cleanup finished",
			logging.String(logging.FieldEventType, "cleanup_finished"),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return d.cleanupErr
}

// bounded runs stop and gives up waiting after taskJoinTimeout.
func (d *Daemon) bounded(name string, stop func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		stop()
	}()
	select {
	case <-done:
	case <-time.After(taskJoinTimeout):
		logging.WarnWithContext(d.logger, "component did not stop in time", "cleanup_join_timeout",
			logging.String("component", name),
			logging.Duration("timeout", taskJoinTimeout),
			logging.String(logging.FieldImpact, "shutdown continues without waiting"),
		)
	}
}
