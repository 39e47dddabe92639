// Package lifecycle holds the process-wide shutdown flags shared by the
// daemon, the capture loop and the UI notifier.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

// State tracks shutdown progress. Every flag only ever goes from false to
// true.
type State struct {
	shutdown     atomic.Bool
	windowClosed atomic.Bool
	cleanup      atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
}

// New returns a State with no flags raised.
func New() *State {
	return &State{done: make(chan struct{})}
}

// RequestShutdown raises the shutdown flag and closes Done. It reports
// whether this call was the one that raised it.
func (s *State) RequestShutdown() bool {
	first := s.shutdown.CompareAndSwap(false, true)
	s.doneOnce.Do(func() { close(s.done) })
	return first
}

// ShutdownRequested reports whether shutdown has begun.
func (s *State) ShutdownRequested() bool { return s.shutdown.Load() }

// Done is closed once shutdown is requested.
func (s *State) Done() <-chan struct{} { return s.done }

// MarkWindowClosed records that the UI surface is gone.
func (s *State) MarkWindowClosed() bool { return s.windowClosed.CompareAndSwap(false, true) }

// WindowClosed reports whether UI delivery should be skipped.
func (s *State) WindowClosed() bool { return s.windowClosed.Load() }

// ClaimCleanup returns true for exactly one caller.
func (s *State) ClaimCleanup() bool { return s.cleanup.CompareAndSwap(false, true) }

// CleanupClaimed reports whether teardown has started.
func (s *State) CleanupClaimed() bool { return s.cleanup.Load() }

// Context derives a context that is cancelled when parent ends or shutdown
// is requested.
func (s *State) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
