package attendance

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyName rejects blank names before touching storage.
	ErrEmptyName = errors.New("name cannot be empty")
	// ErrClosed is returned by every query after Close.
	ErrClosed = errors.New("attendance store closed")
)

// StorageError wraps a database failure other than a uniqueness conflict.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("attendance %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for transport responses.
func (e *StorageError) ErrorKind() string { return "storage" }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	// A query racing Close surfaces the driver's closed error.
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return ErrClosed
	}
	return &StorageError{Op: op, Err: err}
}
