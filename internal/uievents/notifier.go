package uievents

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"sam/internal/attendance"
	"sam/internal/logging"
)

// WindowState is the part of the lifecycle the notifier needs.
type WindowState interface {
	WindowClosed() bool
	MarkWindowClosed() bool
}

// surfaceGoneMarkers are substrings of delivery errors that mean the UI
// surface has been torn down.
var surfaceGoneMarkers = []string{
	"disposed",
	"cannot access",
	"objectdisposed",
	"webview2",
	"marshalinvoke",
	"invoke",
	"shutdown",
	"closed",
}

// IsSurfaceGone reports whether err means the UI will never accept events again.
func IsSurfaceGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSurfaceDisposed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range surfaceGoneMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Notifier is the single path from the engine to the UI. Delivery failures
// are never returned to callers.
type Notifier struct {
	sink    Sink
	state   WindowState
	logger  *slog.Logger
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewNotifier wires a sink with the window state it degrades against.
func NewNotifier(sink Sink, state WindowState, logger *slog.Logger) *Notifier {
	return &Notifier{
		sink:   sink,
		state:  state,
		logger: logging.NewComponentLogger(logger, "ui-notifier"),
	}
}

// Emit delivers one event unless the window is already closed.
func (n *Notifier) Emit(kind Kind, payload any) {
	if n == nil || n.sink == nil {
		return
	}
	if n.state != nil && n.state.WindowClosed() {
		n.dropped.Add(1)
		return
	}
	err := n.sink.Deliver(Event{Kind: kind, Payload: payload})
	if err == nil {
		return
	}
	n.failed.Add(1)
	if IsSurfaceGone(err) {
		if n.state != nil && n.state.MarkWindowClosed() {
			n.logger.Debug("ui surface gone; further events skipped",
				logging.String("kind", string(kind)),
				logging.Error(err),
			)
		}
		return
	}
	n.logger.Debug("ui event delivery failed",
		logging.String("kind", string(kind)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "transport_degraded"),
	)
}

// Dropped counts events skipped because the window was closed.
func (n *Notifier) Dropped() uint64 {
	if n == nil {
		return 0
	}
	return n.dropped.Load()
}

// Failed counts deliveries the sink rejected.
func (n *Notifier) Failed() uint64 {
	if n == nil {
		return 0
	}
	return n.failed.Load()
}

// Frame forwards an encoded preview frame.
func (n *Notifier) Frame(jpeg []byte, width, height, detections int) {
	n.Emit(KindFrame, FramePayload{JPEG: jpeg, Width: width, Height: height, Detections: detections})
}

// ScanResult forwards the outcome of a scan.
func (n *Notifier) ScanResult(res attendance.Result) {
	n.Emit(KindScanResult, ScanPayload{
		Success: res.Outcome == attendance.OutcomeSuccess,
		Outcome: string(res.Outcome),
		Message: res.Message,
		Record:  res.Record,
		Stats:   res.Stats,
	})
}

// CameraStatus reports whether capture is active.
func (n *Notifier) CameraStatus(active bool, index int, err error) {
	payload := CameraStatusPayload{Active: active, Index: index}
	if err != nil {
		payload.Error = err.Error()
	}
	n.Emit(KindCameraStatus, payload)
}

// CameraDevice reports a hotplug event.
func (n *Notifier) CameraDevice(action, device string) {
	n.Emit(KindCameraDevice, CameraDevicePayload{Action: action, Device: device})
}

// NewDay announces a date rollover with the fresh (usually empty) list.
func (n *Notifier) NewDay(stats attendance.Stats) {
	n.Emit(KindNewDay, stats)
}

// AttendanceTable pushes the full list for today.
func (n *Notifier) AttendanceTable(stats attendance.Stats) {
	n.Emit(KindAttendanceTable, stats)
}

// SettingsApplied asks the UI to apply a presentation setting.
func (n *Notifier) SettingsApplied(key string, value any) {
	n.Emit(KindSettingsApplied, SettingsAppliedPayload{Key: key, Value: value})
}
