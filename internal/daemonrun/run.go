package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"sam/internal/attendance"
	"sam/internal/camera"
	"sam/internal/config"
	"sam/internal/daemon"
	"sam/internal/ipc"
	"sam/internal/logging"
	"sam/internal/settings"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// StartCamera opens the camera as soon as the daemon is up.
	StartCamera bool
}

// Run starts the attendance daemon and blocks until a signal, an IPC or HTTP
// shutdown request, or the window closing. Cleanup always runs before Run
// returns.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName(time.Now()))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update sam.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "sam-*.log", Exclude: []string{logPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	prefs, err := settings.Load(cfg.Paths.SettingsFile, logger)
	if err != nil {
		logger.Error("load settings", logging.Error(err))
		return err
	}
	store, err := attendance.Open(cfg, prefs, attendance.WithLogger(logger))
	if err != nil {
		logger.Error("open attendance store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, prefs, store, logger, daemon.Options{})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() { _ = d.Cleanup() }()

	logStartupSnapshot(logger, cfg, prefs.Get())
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if opts.StartCamera {
		if resp := d.StartCamera(signalCtx); !resp.Success {
			logging.WarnWithContext(logger, "camera did not start", "camera_autostart_failed",
				logging.String("reason", resp.Message),
				logging.String(logging.FieldImpact, "scanning stays off until started manually"),
			)
		}
	}

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, shutting down")
	case <-d.Done():
		logger.Info("shutdown requested, exiting")
	}
	return d.Cleanup()
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config, values settings.Values) {
	_, reportErr := os.Stat(cfg.Paths.ReportFile)
	_, markerErr := os.Stat(cfg.Paths.LateMarkerImage)
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.Any("cameras", camera.ListDevices(cfg.Camera.DevicePattern, 10)),
		logging.Int(logging.FieldCameraIndex, values.CameraIndex),
		logging.Bool("report_present", reportErr == nil),
		logging.Bool("late_marker_present", markerErr == nil),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("auto_backup", values.AutoBackup),
		logging.Bool("auto_update_sf2", values.AutoUpdateSF2),
		logging.String("late_arrival_time", values.LateArrivalTime),
	)
}
