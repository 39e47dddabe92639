package testsupport

import (
	"sync"
	"testing"
	"time"

	"sam/internal/attendance"
	"sam/internal/config"
	"sam/internal/logging"
	"sam/internal/settings"
)

// MustLoadSettings loads the settings file named by cfg.
func MustLoadSettings(t testing.TB, cfg *config.Config) *settings.Store {
	t.Helper()

	store, err := settings.Load(cfg.Paths.SettingsFile, logging.NewNop())
	if err != nil {
		t.Fatalf("settings.Load: %v", err)
	}
	return store
}

// MustOpenStore opens an attendance.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, src attendance.SettingsSource, opts ...attendance.Option) *attendance.Store {
	t.Helper()

	store, err := attendance.Open(cfg, src, opts...)
	if err != nil {
		t.Fatalf("attendance.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
