package ipc

import "sam/internal/api"

// Empty is the argument of methods that take no input.
type Empty struct{}

// StatusResponse is the daemon status snapshot.
type StatusResponse = api.DaemonStatus

// Response is the result envelope of mutating calls.
type Response = api.Response

// TodayResponse is today's attendance summary.
type TodayResponse = api.TodayStats

// ManualEntryRequest records attendance for a typed name.
type ManualEntryRequest struct {
	Name string `json:"name"`
}

// SettingsResponse carries the full settings map.
type SettingsResponse struct {
	Values map[string]any `json:"values"`
}

// SettingsSetRequest changes one key. Values may be sent as strings; the
// settings store coerces them per key.
type SettingsSetRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SettingsUpdateRequest changes several keys atomically.
type SettingsUpdateRequest struct {
	Values map[string]any `json:"values"`
}

// SettingsExportRequest names the export directory.
type SettingsExportRequest struct {
	Dir string `json:"dir"`
}

// SettingsImportRequest names the file to import.
type SettingsImportRequest struct {
	Path string `json:"path"`
}

// AttendanceRequest selects the records of one date, written in the
// configured date format. Empty means today.
type AttendanceRequest struct {
	Date string `json:"date"`
}

// AttendanceResponse lists the records of one date.
type AttendanceResponse struct {
	Records []api.Record `json:"records"`
}
