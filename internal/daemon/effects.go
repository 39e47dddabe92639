package daemon

import (
	"context"
	"errors"

	"sam/internal/attendance"
	"sam/internal/logging"
	"sam/internal/notifications"
	"sam/internal/report"
	"sam/internal/settings"
)

// scanRecorder routes capture loop payloads through the daemon so camera
// and manual scans share the same side effects.
type scanRecorder struct{ d *Daemon }

func (r scanRecorder) Record(ctx context.Context, name string) (attendance.Result, error) {
	return r.d.recordAttendance(ctx, name)
}

func (d *Daemon) recordAttendance(ctx context.Context, name string) (attendance.Result, error) {
	res, err := d.store.Record(ctx, name)
	if err != nil {
		return res, err
	}
	if res.Outcome == attendance.OutcomeSuccess {
		d.ui.AttendanceTable(res.Stats)
		d.notifyIfLate(res.Record)
	}
	return res, nil
}

func (d *Daemon) notifyIfLate(rec attendance.Record) {
	values := d.prefs.Get()
	if !isLate(values, rec.Time) {
		return
	}
	d.publish(notifications.EventLateArrival, notifications.Payload{
		"name":   rec.Name,
		"time":   rec.Time,
		"date":   rec.Date,
		"cutoff": values.LateArrivalTime,
	})
}

// isLate reports whether a recorded time is strictly after the cutoff.
// Unparseable times are never late.
func isLate(values settings.Values, recorded string) bool {
	t, err := values.ParseTime(recorded)
	if err != nil {
		return false
	}
	seconds := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return seconds > values.LateCutoff()*60
}

// publish sends a push notification without blocking the caller.
func (d *Daemon) publish(event notifications.Event, payload notifications.Payload) {
	d.goTask("notify", func(ctx context.Context) {
		if err := d.notifier.Publish(ctx, event, payload); err != nil {
			d.logger.Debug("notification failed",
				logging.String("event", string(event)),
				logging.Error(err),
			)
		}
	})
}

func (d *Daemon) onNewDay(stats attendance.Stats) {
	d.metrics.IncrementRollover()
	d.ui.NewDay(stats)
	d.publish(notifications.EventNewDay, notifications.Payload{"date": stats.Date})

	if !d.prefs.Get().AutoUpdateSF2 {
		return
	}
	d.goTask("report_sync", func(ctx context.Context) {
		res, err := d.report.Sync(ctx)
		if err != nil {
			if errors.Is(err, report.ErrReportNotFound) {
				d.logger.Debug("no report to update after rollover", logging.String("path", d.report.Path()))
				return
			}
			logging.WarnWithContext(d.logger, "automatic report update failed", "report_auto_update_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "open the report manually to retry"),
			)
			d.publish(notifications.EventError, notifications.Payload{"context": "report update", "error": err})
			return
		}
		if res.Changed > 0 || res.LateMarked > 0 {
			d.publish(notifications.EventReportUpdated, notifications.Payload{
				"changed":     res.Changed,
				"late_marked": res.LateMarked,
			})
		}
	})
}

func (d *Daemon) onCameraDevice(action, device string) {
	d.ui.CameraDevice(action, device)
	if action != "remove" {
		return
	}
	st := d.capture.Status()
	if !st.Active || device != d.cfg.DevicePath(st.Index) {
		return
	}
	logging.WarnWithContext(d.logger, "active camera unplugged", "camera_unplugged",
		logging.String("device", device),
		logging.Int(logging.FieldCameraIndex, st.Index),
		logging.String(logging.FieldImpact, "scanning stopped until the camera is started again"),
	)
	_ = d.capture.Stop()
}

// applySetting runs the side effects of one changed key.
func (d *Daemon) applySetting(change settings.Change) {
	switch change.Key {
	case "window_always_on_top", "dark_mode", "font_size":
		d.ui.SettingsApplied(change.Key, change.New)
	case "camera_index":
		if !d.capture.Active() {
			return
		}
		d.goTask("camera_restart", func(ctx context.Context) {
			_ = d.capture.Stop()
			if err := d.capture.Start(ctx); err != nil {
				logging.WarnWithContext(d.logger, "camera restart after index change failed", "camera_restart_failed",
					logging.Any("camera_index", change.New),
					logging.Error(err),
				)
			}
		})
	case "auto_backup", "backup_interval":
		d.backups.Kick()
	}
}
