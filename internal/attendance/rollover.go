package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sam/internal/logging"
)

// Rollover notices when the local calendar date changes and reloads today's
// records. It never deletes rows.
type Rollover struct {
	store    *Store
	interval time.Duration
	onNewDay func(Stats)
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	lastDay calendarDay
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// calendarDay is a local date independent of the configured date_format.
type calendarDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) calendarDay {
	y, m, d := t.Local().Date()
	return calendarDay{year: y, month: m, day: d}
}

func (c calendarDay) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", c.year, c.month, c.day)
}

// NewRollover builds a rollover checker. onNewDay may be nil.
func NewRollover(store *Store, interval time.Duration, onNewDay func(Stats), logger *slog.Logger) *Rollover {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Rollover{
		store:    store,
		interval: interval,
		onNewDay: onNewDay,
		logger:   logging.NewComponentLogger(logger, "rollover"),
	}
}

// Start records the current date and begins periodic checks.
func (r *Rollover) Start(ctx context.Context) error {
	if r == nil || r.store == nil {
		return errors.New("rollover unavailable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("rollover already running")
	}
	r.lastDay = dayOf(r.store.now())

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.loop(runCtx)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (r *Rollover) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *Rollover) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}

// Check runs one rollover comparison and reports whether the day changed.
// Panics from the callback are contained so the timer keeps running.
func (r *Rollover) Check(ctx context.Context) (changed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(r.logger, "rollover check panicked", "rollover_panic",
				logging.String("panic", fmt.Sprint(rec)),
			)
			changed = false
		}
	}()

	now := r.store.now()
	today := dayOf(now)
	r.mu.Lock()
	if today == r.lastDay {
		r.mu.Unlock()
		return false
	}
	previous := r.lastDay
	r.lastDay = today
	r.mu.Unlock()

	stats, err := r.store.LoadToday(ctx)
	if err != nil {
		logging.WarnWithContext(r.logger, "new day reload failed", "rollover_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "today's list shows stale rows until the next scan"),
		)
		stats = Stats{Date: r.store.settings.Get().FormatDate(now)}
	}
	r.logger.Info("new day started",
		logging.String("previous", previous.String()),
		logging.String(logging.FieldDate, today.String()),
		logging.Int("records", stats.Count),
		logging.String(logging.FieldEventType, "new_day"),
	)
	if r.onNewDay != nil {
		r.onNewDay(stats)
	}
	return true
}
