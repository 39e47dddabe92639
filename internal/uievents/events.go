// Package uievents carries typed notifications from the engine to the host
// UI and applies the delivery degradation policy once the window is gone.
package uievents

import (
	"time"

	"sam/internal/attendance"
)

// Kind names one event type in the closed set understood by the UI.
type Kind string

const (
	KindFrame           Kind = "frame"
	KindScanResult      Kind = "scan_result"
	KindCameraStatus    Kind = "camera_status"
	KindCameraDevice    Kind = "camera_device"
	KindNewDay          Kind = "new_day"
	KindSettingsApplied Kind = "settings_applied"
	KindAttendanceTable Kind = "attendance_table"
)

// Event is one delivered notification.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
}

// FramePayload is an annotated preview frame. JPEG is base64 in JSON.
type FramePayload struct {
	JPEG       []byte `json:"jpeg"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Detections int    `json:"detections"`
}

// ScanPayload reports the outcome of one decoded payload.
type ScanPayload struct {
	Success bool              `json:"success"`
	Outcome string            `json:"outcome"`
	Message string            `json:"message"`
	Record  attendance.Record `json:"record"`
	Stats   attendance.Stats  `json:"stats"`
}

// CameraStatusPayload reports capture activity.
type CameraStatusPayload struct {
	Active bool   `json:"active"`
	Index  int    `json:"index"`
	Error  string `json:"error,omitempty"`
}

// CameraDevicePayload reports a capture device appearing or disappearing.
type CameraDevicePayload struct {
	Action string `json:"action"`
	Device string `json:"device"`
}

// SettingsAppliedPayload asks the UI to apply a presentation setting.
type SettingsAppliedPayload struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
