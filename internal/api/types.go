package api

import "encoding/json"

// Error kinds reported in Response.Kind.
const (
	KindValidation        = "validation"
	KindDeviceUnavailable = "device_unavailable"
	KindAlreadyActive     = "already_active"
	KindShuttingDown      = "shutting_down"
	KindDuplicate         = "duplicate"
	KindStorage           = "storage"
	KindFileIntegrity     = "file_integrity"
	KindNotFound          = "not_found"
	KindInternal          = "internal"
)

// Response is the result envelope for mutating operations.
type Response struct {
	Success bool            `json:"success"`
	Outcome string          `json:"outcome,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Message string          `json:"message"`
	Stats   *TodayStats     `json:"stats,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Record is one attendance row.
type Record struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Name string `json:"name"`
}

// TodayStats is the live attendance summary.
type TodayStats struct {
	Date         string   `json:"date"`
	ScanCount    int      `json:"scan_count"`
	CameraActive bool     `json:"camera_active"`
	Records      []Record `json:"records"`
}

// CameraStatus reports the capture loop.
type CameraStatus struct {
	State        string   `json:"state"`
	Active       bool     `json:"active"`
	Index        int      `json:"camera_index"`
	SessionID    string   `json:"session_id,omitempty"`
	Frames       uint64   `json:"frames"`
	DedupPending int      `json:"dedup_pending"`
	LastError    string   `json:"last_error,omitempty"`
	Devices      []string `json:"devices,omitempty"`
}

// ReportResult summarizes a report run.
type ReportResult struct {
	Changed    int    `json:"changed"`
	LateMarked int    `json:"late_marked"`
	Path       string `json:"path"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running           bool         `json:"running"`
	PID               int          `json:"pid"`
	StartedAt         string       `json:"started_at,omitempty"`
	DatabasePath      string       `json:"database_path"`
	ReportPath        string       `json:"report_path"`
	SettingsPath      string       `json:"settings_path"`
	LockFilePath      string       `json:"lock_path"`
	APIAddress        string       `json:"api_address,omitempty"`
	ShutdownRequested bool         `json:"shutdown_requested"`
	WindowClosed      bool         `json:"window_closed"`
	Hotplug           bool         `json:"hotplug"`
	LastBackup        string       `json:"last_backup,omitempty"`
	Camera            CameraStatus `json:"camera"`
	Today             TodayStats   `json:"today"`
}

// EventsResponse is one page of UI events.
type EventsResponse struct {
	Events []json.RawMessage `json:"events"`
	Next   uint64            `json:"next"`
}
