package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sam/internal/attendance"
	"sam/internal/config"
	"sam/internal/fileutil"
	"sam/internal/logging"
	"sam/internal/settings"
)

// Lookup resolves recorded times for a set of dates.
type Lookup interface {
	Lookup(ctx context.Context, dates []string) (map[attendance.Key]string, error)
}

// SettingsSource supplies date/time formats and the late cutoff.
type SettingsSource interface {
	Get() settings.Values
}

// Observer receives one call per finished report operation.
type Observer interface {
	ObserveReport(op string, changed int, err error, elapsed time.Duration)
}

// Result summarizes a report operation.
type Result struct {
	Changed    int    `json:"changed"`
	LateMarked int    `json:"late_marked"`
	Message    string `json:"message"`
	Path       string `json:"path"`
}

// Syncer edits one workbook. Edits are serialized; concurrent Open calls
// share a single run.
type Syncer struct {
	path        string
	markerImage string
	store       Lookup
	settings    SettingsSource
	viewer      Viewer
	observer    Observer
	logger      *slog.Logger

	mu    sync.Mutex
	group singleflight.Group

	// postSave runs after a successful save, before verification.
	postSave func(path string) error
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithViewer replaces the system viewer.
func WithViewer(v Viewer) Option {
	return func(s *Syncer) {
		if v != nil {
			s.viewer = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver reports operation outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Syncer) { s.observer = o }
}

// New binds a Syncer to the configured report file.
func New(cfg *config.Config, store Lookup, src SettingsSource, opts ...Option) *Syncer {
	s := &Syncer{
		path:        cfg.Paths.ReportFile,
		markerImage: cfg.Paths.LateMarkerImage,
		store:       store,
		settings:    src,
		viewer:      SystemViewer{},
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "report")
	return s
}

// Path returns the workbook path.
func (s *Syncer) Path() string { return s.path }

// UpdatePresence writes present/absent markers and returns the changed count.
func (s *Syncer) UpdatePresence(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe("presence", func() (Result, error) { return s.updatePresence(ctx) })
}

// UpdateLateArrivals flags records later than cutoff ("HH:MM"). An empty
// cutoff uses late_arrival_time.
func (s *Syncer) UpdateLateArrivals(ctx context.Context, cutoff string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe("late_arrivals", func() (Result, error) { return s.updateLateArrivals(ctx, cutoff) })
}

// Sync runs presence then late arrivals without opening a viewer.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe("sync", func() (Result, error) { return s.sync(ctx) })
}

// Open syncs the workbook and hands it to the viewer.
func (s *Syncer) Open(ctx context.Context) (Result, error) {
	v, err, shared := s.group.Do("open", func() (any, error) {
		s.mu.Lock()
		res, err := s.observe("open", func() (Result, error) { return s.sync(ctx) })
		s.mu.Unlock()
		if err != nil {
			return res, err
		}
		if err := s.viewer.View(ctx, s.path); err != nil {
			return res, fmt.Errorf("open viewer: %w", err)
		}
		res.Message = "Report updated successfully!"
		return res, nil
	})
	if shared {
		s.logger.Debug("report open joined an in-flight run")
	}
	res, _ := v.(Result)
	return res, err
}

func (s *Syncer) sync(ctx context.Context) (Result, error) {
	presence, err := s.updatePresence(ctx)
	if err != nil {
		return presence, err
	}
	late, err := s.updateLateArrivals(ctx, "")
	if err != nil {
		return Result{Changed: presence.Changed, Path: s.path}, err
	}
	return Result{
		Changed:    presence.Changed,
		LateMarked: late.LateMarked,
		Message:    presence.Message + "; " + late.Message,
		Path:       s.path,
	}, nil
}

func (s *Syncer) updatePresence(ctx context.Context) (Result, error) {
	var changed int
	err := s.withBackup("presence", func() error {
		n, err := s.edit(ctx, true, func(ed *editor) (int, error) { return ed.markPresence() })
		changed = n
		return err
	})
	if err != nil {
		return Result{Path: s.path}, err
	}
	msg := "Report already up-to-date"
	if changed > 0 {
		msg = fmt.Sprintf("Updated %d cells in report", changed)
	}
	return Result{Changed: changed, Message: msg, Path: s.path}, nil
}

func (s *Syncer) updateLateArrivals(ctx context.Context, cutoff string) (Result, error) {
	values := s.settings.Get()
	if cutoff == "" {
		cutoff = values.LateArrivalTime
	}
	minutes, ok := settings.ParseClock(cutoff)
	if !ok {
		return Result{Path: s.path}, &settings.ValidationError{
			Key:    "late_arrival_time",
			Reason: fmt.Sprintf("%q is not HH:MM", cutoff),
			Err:    settings.ErrInvalidValue,
		}
	}

	var marked int
	err := s.withBackup("late_arrivals", func() error {
		n, err := s.edit(ctx, false, func(ed *editor) (int, error) { return ed.markLate(minutes) })
		marked = n
		return err
	})
	if err != nil {
		return Result{Path: s.path}, err
	}
	msg := "No late arrivals found"
	if marked > 0 {
		msg = fmt.Sprintf("Added %d late arrival markers", marked)
	}
	return Result{LateMarked: marked, Message: msg, Path: s.path}, nil
}

func (s *Syncer) observe(op string, fn func() (Result, error)) (Result, error) {
	start := time.Now()
	res, err := fn()
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveReport(op, res.Changed+res.LateMarked, err, elapsed)
	}
	if err != nil {
		logging.WarnWithContext(s.logger, "report update failed", "report_failed",
			logging.String("op", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "close the workbook in other programs and retry"),
			logging.String(logging.FieldImpact, "report left at its previous contents"),
		)
		return res, err
	}
	s.logger.Info("report updated",
		logging.String(logging.FieldEventType, "report_updated"),
		logging.String("op", op),
		logging.Int("changed", res.Changed),
		logging.Int("late_marked", res.LateMarked),
		logging.Duration("elapsed", elapsed),
	)
	return res, nil
}

// withBackup snapshots the workbook, runs edit, and restores the snapshot
// when edit fails or panics. The snapshot is always removed.
func (s *Syncer) withBackup(op string, edit func() error) (err error) {
	if _, statErr := os.Stat(s.path); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrReportNotFound, s.path)
		}
		return &FileIntegrityError{Op: op, Err: statErr}
	}

	backup := s.path + ".backup"
	if copyErr := fileutil.CopyFileVerified(s.path, backup); copyErr != nil {
		_ = os.Remove(backup)
		return &FileIntegrityError{Op: op, Err: fmt.Errorf("backup: %w", copyErr)}
	}
	defer func() {
		if rmErr := os.Remove(backup); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("report backup not removed", logging.String("path", backup), logging.Error(rmErr))
		}
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during edit: %v", rec)
		}
		if err == nil {
			return
		}
		restoreErr := fileutil.CopyFile(backup, s.path)
		if restoreErr != nil {
			logging.ErrorWithContext(s.logger, "report restore failed", "report_restore_failed",
				logging.String("backup", backup),
				logging.Error(restoreErr),
				logging.String(logging.FieldErrorHint, "recover the workbook from the .backup copy manually"),
			)
		}
		if errors.Is(err, ErrNoDates) && restoreErr == nil {
			return
		}
		err = &FileIntegrityError{Op: op, Err: errors.Join(err, restoreErr), Restored: restoreErr == nil}
	}()

	return edit()
}
