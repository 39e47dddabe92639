package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"sam/internal/api"
	"sam/internal/attendance"
	"sam/internal/camera"
	"sam/internal/capture"
	"sam/internal/config"
	"sam/internal/lifecycle"
	"sam/internal/logging"
	"sam/internal/metrics"
	"sam/internal/notifications"
	"sam/internal/report"
	"sam/internal/settings"
	"sam/internal/symbol"
	"sam/internal/uievents"
)

const (
	uiEventCapacity = 256
	maxProbeDevices = 10
	taskJoinTimeout = 5 * time.Second
)

// Options overrides collaborators. Zero values select the production
// implementations.
type Options struct {
	Opener   capture.Opener
	Decoder  capture.Decoder
	Viewer   report.Viewer
	Notifier notifications.Service
	Metrics  *metrics.Metrics
}

// Daemon owns every long-lived component of the attendance process.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	prefs    *settings.Store
	store    *attendance.Store
	state    *lifecycle.State
	hub      *uievents.Hub
	ui       *uievents.Notifier
	capture  *capture.Loop
	report   *report.Syncer
	rollover *attendance.Rollover
	backups  *backupLoop
	monitor  *cameraMonitor
	api      *apiServer
	notifier notifications.Service
	metrics  *metrics.Metrics

	lockPath string
	lock     *flock.Flock

	startMu   sync.Mutex
	running   atomic.Bool
	startedAt atomic.Int64
	ctx       context.Context
	cancel    context.CancelFunc
	tasks     sync.WaitGroup

	// tasksClosed stops goTask from adding work once Cleanup waits on tasks.
	tasksClosed bool

	cleanupDone chan struct{}
	cleanupErr  error
}

// New constructs a daemon with initialized dependencies. The daemon takes
// ownership of store and closes it during Cleanup.
func New(cfg *config.Config, prefs *settings.Store, store *attendance.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || prefs == nil || store == nil {
		return nil, errors.New("daemon requires config, settings and attendance store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Opener == nil {
		opts.Opener = camera.NewOpener(cfg, logger)
	}
	if opts.Decoder == nil {
		opts.Decoder = symbol.NewQRDecoder()
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(cfg)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		prefs:       prefs,
		store:       store,
		state:       lifecycle.New(),
		hub:         uievents.NewHub(uiEventCapacity),
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		lockPath:    cfg.LockPath(),
		lock:        flock.New(cfg.LockPath()),
		cleanupDone: make(chan struct{}),
	}
	d.ui = uievents.NewNotifier(d.hub, d.state, logger)
	d.metrics.WatchUIEvents(d.ui.Dropped, d.ui.Failed)

	loop, err := capture.NewLoop(capture.Options{
		Opener:      opts.Opener,
		Decoder:     opts.Decoder,
		Recorder:    scanRecorder{d: d},
		Notifier:    d.ui,
		Settings:    prefs,
		Shutdown:    d.state,
		Observer:    d.metrics,
		Logger:      logger,
		JoinTimeout: cfg.JoinTimeout(),
		FrameStride: cfg.Camera.FrameStride,
	})
	if err != nil {
		return nil, fmt.Errorf("create capture loop: %w", err)
	}
	d.capture = loop

	reportOpts := []report.Option{report.WithLogger(logger), report.WithObserver(d.metrics)}
	if opts.Viewer != nil {
		reportOpts = append(reportOpts, report.WithViewer(opts.Viewer))
	}
	d.report = report.New(cfg, store, prefs, reportOpts...)
	d.rollover = attendance.NewRollover(store, cfg.RolloverInterval(), d.onNewDay, logger)
	d.backups = newBackupLoop(store, prefs, cfg.Paths.BackupDir, cfg.Workflow.BackupRetentionDays, d.metrics, logger)
	d.monitor = newCameraMonitor(cfg, logger, d.onCameraDevice)
	d.api = newAPIServer(cfg, d, logger)

	prefs.OnChange(d.applySetting)
	return d, nil
}

// Start acquires the single-instance lock and launches background services.
func (d *Daemon) Start(ctx context.Context) error {
	d.startMu.Lock()
	defer d.startMu.Unlock()

	if d.state.CleanupClaimed() {
		return capture.ErrShuttingDown
	}
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sam daemon instance is already running")
	}

	d.ctx, d.cancel = d.state.Context(ctx)
	if _, err := d.store.LoadToday(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "failed to load today's records", "today_load_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "today's list starts empty until the next scan"),
		)
	}

	if err := d.rollover.Start(d.ctx); err != nil {
		d.unwindStart()
		return fmt.Errorf("start rollover: %w", err)
	}
	d.backups.Start(d.ctx)
	if err := d.monitor.Start(d.ctx); err != nil {
		d.unwindStart()
		return fmt.Errorf("start camera monitor: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.unwindStart()
		return fmt.Errorf("start api server: %w", err)
	}

	d.startedAt.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("sam daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.String("report", d.report.Path()),
	)
	return nil
}

func (d *Daemon) unwindStart() {
	d.monitor.Stop()
	d.backups.Stop()
	d.rollover.Stop()
	if d.cancel != nil {
		d.cancel()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Running reports whether Start succeeded and Cleanup has not run.
func (d *Daemon) Running() bool { return d.running.Load() }

// Hub exposes the UI event buffer.
func (d *Daemon) Hub() *uievents.Hub { return d.hub }

// Metrics exposes the collector registry.
func (d *Daemon) Metrics() *metrics.Metrics { return d.metrics }

// State exposes the lifecycle flags.
func (d *Daemon) State() *lifecycle.State { return d.state }

// Status snapshots daemon, capture and attendance state.
func (d *Daemon) Status() api.DaemonStatus {
	camStatus := api.FromCaptureStatus(d.capture.Status())
	camStatus.Devices = camera.ListDevices(d.cfg.Camera.DevicePattern, maxProbeDevices)

	status := api.DaemonStatus{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		DatabasePath:      d.store.Path(),
		ReportPath:        d.report.Path(),
		SettingsPath:      d.prefs.Path(),
		LockFilePath:      d.lockPath,
		APIAddress:        d.api.address(),
		ShutdownRequested: d.state.ShutdownRequested(),
		WindowClosed:      d.state.WindowClosed(),
		Hotplug:           d.monitor.Running(),
		Camera:            camStatus,
		Today:             api.FromStats(d.store.Today(), camStatus.Active),
	}
	if started := d.startedAt.Load(); started > 0 {
		status.StartedAt = api.FormatTime(time.Unix(0, started))
	}
	if last, ok := attendance.LastBackup(d.cfg.Paths.BackupDir); ok {
		status.LastBackup = api.FormatTime(last)
	}
	return status
}

// goTask runs fn in the background and tracks it for Cleanup.
func (d *Daemon) goTask(name string, fn func(ctx context.Context)) {
	d.startMu.Lock()
	if d.tasksClosed {
		d.startMu.Unlock()
		return
	}
	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	d.tasks.Add(1)
	d.startMu.Unlock()

	go func() {
		defer d.tasks.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logging.ErrorWithContext(d.logger, "background task panicked", "task_panic",
					logging.String("task", name),
					logging.String("panic", fmt.Sprint(rec)),
				)
			}
		}()
		fn(ctx)
	}()
}
