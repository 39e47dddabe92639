// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates attendance, capture and report results into
// transport-friendly DTOs that the UI and CLI render without coupling to
// internal types.
//
// # Key Types
//
// Response: uniform envelope for every mutating operation. Success is false
// both for errors and for the duplicate business outcome; Kind carries the
// error classification so clients can branch without parsing messages.
//
// TodayStats, CameraStatus, DaemonStatus: read models for the status views.
//
// # Converters
//
// FromResult, FromError, FromReport, FromStats, FromCaptureStatus.
//
// ErrorKind maps typed errors (anything with an ErrorKind method) and the
// capture/report sentinels onto the stable kind strings listed below.
package api
