package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey reports a key outside the recognized settings set.
	ErrUnknownKey = errors.New("unknown setting")
	// ErrInvalidValue reports a value that cannot be coerced for its key.
	ErrInvalidValue = errors.New("invalid setting value")
	// ErrNoRecognizedKeys is returned by Import when the file holds no known keys.
	ErrNoRecognizedKeys = errors.New("no valid settings found")
)

// ValidationError describes why a single key was rejected.
type ValidationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Key, e.Err, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for transport responses.
func (e *ValidationError) ErrorKind() string { return "validation" }
