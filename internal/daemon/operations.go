package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"sam/internal/api"
	"sam/internal/notifications"
	"sam/internal/report"
)

// StartCamera opens the configured camera and begins scanning.
func (d *Daemon) StartCamera(ctx context.Context) api.Response {
	if err := d.capture.Start(ctx); err != nil {
		return api.FromError(err)
	}
	st := d.capture.Status()
	return api.WithData(api.Success(fmt.Sprintf("Camera %d started", st.Index)), api.FromCaptureStatus(st))
}

// StopCamera stops scanning. Stopping an idle camera succeeds.
func (d *Daemon) StopCamera() api.Response {
	if err := d.capture.Stop(); err != nil {
		return api.FromError(err)
	}
	return api.WithData(api.Success("Camera stopped"), api.FromCaptureStatus(d.capture.Status()))
}

// ToggleCamera starts an idle camera or stops a live one.
func (d *Daemon) ToggleCamera(ctx context.Context) api.Response {
	active, err := d.capture.Toggle(ctx)
	if err != nil {
		return api.FromError(err)
	}
	message := "Camera stopped"
	if active {
		message = "Camera started"
	}
	return api.WithData(api.Success(message), api.FromCaptureStatus(d.capture.Status()))
}

// ManualEntry records attendance for a typed name.
func (d *Daemon) ManualEntry(ctx context.Context, name string) api.Response {
	if strings.TrimSpace(name) == "" {
		return api.Response{Success: false, Kind: api.KindValidation, Message: "Name cannot be empty"}
	}
	res, err := d.recordAttendance(ctx, name)
	if err != nil {
		return api.FromError(err)
	}
	return api.FromResult(res, d.capture.Active())
}

// Today returns today's summary.
func (d *Daemon) Today() api.TodayStats {
	return api.FromStats(d.store.Today(), d.capture.Active())
}

// Attendance returns the rows recorded on date (configured date format).
// An empty date returns today's rows.
func (d *Daemon) Attendance(ctx context.Context, date string) ([]api.Record, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return d.Today().Records, nil
	}
	records, err := d.store.ByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return api.FromRecords(records), nil
}

// Settings returns the current settings keyed by their file names.
func (d *Daemon) Settings() map[string]any {
	return d.prefs.Get().Map()
}

// SetSetting changes one key.
func (d *Daemon) SetSetting(key string, value any) api.Response {
	if err := d.prefs.Set(key, value); err != nil {
		return api.FromError(err)
	}
	return api.WithData(api.Success(fmt.Sprintf("Setting %s updated", key)), d.Settings())
}

// UpdateSettings applies several keys atomically.
func (d *Daemon) UpdateSettings(updates map[string]any) api.Response {
	if len(updates) == 0 {
		return api.Response{Success: false, Kind: api.KindValidation, Message: "No settings provided"}
	}
	if err := d.prefs.UpdateMany(updates); err != nil {
		return api.FromError(err)
	}
	return api.WithData(api.Success(fmt.Sprintf("%d settings updated", len(updates))), d.Settings())
}

// ResetSettings restores the factory defaults.
func (d *Daemon) ResetSettings() api.Response {
	if err := d.prefs.Reset(); err != nil {
		return api.FromError(err)
	}
	return api.WithData(api.Success("Settings reset to defaults"), d.Settings())
}

// ExportSettings writes a settings backup into dir, defaulting to the
// directory of the settings file.
func (d *Daemon) ExportSettings(dir string) api.Response {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Dir(d.prefs.Path())
	}
	path, err := d.prefs.Export(dir)
	if err != nil {
		return api.FromError(err)
	}
	return api.WithData(api.Success("Settings exported to "+path), map[string]string{"path": path})
}

// ImportSettings applies recognized keys from a settings file.
func (d *Daemon) ImportSettings(path string) api.Response {
	applied, err := d.prefs.Import(path)
	if err != nil {
		return api.FromError(err)
	}
	return api.WithData(api.Success(fmt.Sprintf("Imported %d settings", applied)), d.Settings())
}

// OpenReport updates the workbook and opens it in the system viewer.
func (d *Daemon) OpenReport(ctx context.Context) api.Response {
	res, err := d.report.Open(ctx)
	return d.reportResponse(res, err)
}

// SyncReport updates the workbook without opening it.
func (d *Daemon) SyncReport(ctx context.Context) api.Response {
	res, err := d.report.Sync(ctx)
	return d.reportResponse(res, err)
}

func (d *Daemon) reportResponse(res report.Result, err error) api.Response {
	if err != nil {
		d.publish(notifications.EventError, notifications.Payload{"context": "report update", "error": err})
		return api.FromError(err)
	}
	if res.Changed > 0 || res.LateMarked > 0 {
		d.publish(notifications.EventReportUpdated, notifications.Payload{
			"changed":     res.Changed,
			"late_marked": res.LateMarked,
		})
	}
	return api.FromReport(res)
}

// TestNotification sends a test push notification synchronously.
func (d *Daemon) TestNotification(ctx context.Context) api.Response {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return api.Response{Success: false, Kind: api.KindValidation, Message: "ntfy topic not configured"}
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return api.FromError(err)
	}
	return api.Success("Test notification sent")
}
