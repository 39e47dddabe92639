package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType names the kind of event a line describes (e.g. scan_recorded).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSessionID identifies one camera capture session.
	FieldSessionID = "session_id"
	// FieldPayload is a decoded symbol payload (a student name).
	FieldPayload = "payload"
	// FieldCameraIndex is the configured capture device index.
	FieldCameraIndex = "camera_index"
	// FieldDate is an attendance date string in the configured format.
	FieldDate = "date"
)
