package preflight

import (
	"context"
	"path/filepath"

	"sam/internal/config"
)

// maxProbedCameras bounds the device scan in CheckCamera.
const maxProbedCameras = 10

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every check that applies to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Backup directory", cfg.Paths.BackupDir),
		CheckDirectoryAccess("Report directory", filepath.Dir(cfg.Paths.ReportFile)),
		CheckCamera(cfg.Camera.DevicePattern),
		CheckLateMarker(cfg.Paths.LateMarkerImage),
		CheckViewer(),
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}
