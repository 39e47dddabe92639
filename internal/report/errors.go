package report

import (
	"errors"
	"fmt"
)

var (
	// ErrReportNotFound is returned when the workbook does not exist.
	ErrReportNotFound = errors.New("report file not found")
	// ErrNoDates is returned when the header row holds no parseable date.
	ErrNoDates = errors.New("no valid dates found in report header")
)

// FileIntegrityError reports a failed edit and whether the backup was put back.
type FileIntegrityError struct {
	Op       string
	Err      error
	Restored bool
}

func (e *FileIntegrityError) Error() string {
	if e.Restored {
		return fmt.Sprintf("report %s failed (original restored): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("report %s failed: %v", e.Op, e.Err)
}

func (e *FileIntegrityError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for transport responses.
func (e *FileIntegrityError) ErrorKind() string { return "file_integrity" }
