package api

import (
	"encoding/json"
	"errors"
	"time"

	"sam/internal/attendance"
	"sam/internal/capture"
	"sam/internal/report"
	"sam/internal/settings"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t for API payloads; the zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}

// FromRecords converts attendance rows.
func FromRecords(records []attendance.Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, Record(rec))
	}
	return out
}

// FromStats converts today's summary.
func FromStats(stats attendance.Stats, cameraActive bool) TodayStats {
	return TodayStats{
		Date:         stats.Date,
		ScanCount:    stats.Count,
		CameraActive: cameraActive,
		Records:      FromRecords(stats.Records),
	}
}

// FromResult converts a scan outcome. Duplicates are unsuccessful but are
// not errors.
func FromResult(res attendance.Result, cameraActive bool) Response {
	stats := FromStats(res.Stats, cameraActive)
	resp := Response{
		Success: res.Outcome == attendance.OutcomeSuccess,
		Outcome: string(res.Outcome),
		Message: res.Message,
		Stats:   &stats,
	}
	if res.Outcome == attendance.OutcomeDuplicate {
		resp.Kind = KindDuplicate
	}
	return resp
}

// FromReport converts a report run.
func FromReport(res report.Result) Response {
	data, _ := json.Marshal(ReportResult{Changed: res.Changed, LateMarked: res.LateMarked, Path: res.Path})
	return Response{Success: true, Message: res.Message, Data: data}
}

// FromCaptureStatus converts the capture loop snapshot.
func FromCaptureStatus(st capture.Status) CameraStatus {
	return CameraStatus{
		State:        st.State,
		Active:       st.Active,
		Index:        st.Index,
		SessionID:    st.SessionID,
		Frames:       st.Frames,
		DedupPending: st.Pending,
		LastError:    st.LastError,
	}
}

// Success builds a plain successful response.
func Success(message string) Response {
	return Response{Success: true, Message: message}
}

// WithData attaches a JSON payload to resp.
func WithData(resp Response, payload any) Response {
	if data, err := json.Marshal(payload); err == nil {
		resp.Data = data
	}
	return resp
}

// FromError converts a failure into a response.
func FromError(err error) Response {
	if err == nil {
		return Success("")
	}
	return Response{Success: false, Kind: ErrorKind(err), Message: err.Error()}
}

// ErrorKind classifies err for clients.
func ErrorKind(err error) string {
	var classified interface{ ErrorKind() string }
	if errors.As(err, &classified) {
		return classified.ErrorKind()
	}
	switch {
	case errors.Is(err, capture.ErrAlreadyActive):
		return KindAlreadyActive
	case errors.Is(err, capture.ErrShuttingDown):
		return KindShuttingDown
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, report.ErrReportNotFound):
		return KindNotFound
	case errors.Is(err, report.ErrNoDates),
		errors.Is(err, attendance.ErrEmptyName),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrInvalidValue),
		errors.Is(err, settings.ErrNoRecognizedKeys):
		return KindValidation
	case errors.Is(err, attendance.ErrClosed):
		return KindShuttingDown
	}
	return KindInternal
}
