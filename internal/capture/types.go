package capture

import (
	"context"
	"errors"
	"image"

	"sam/internal/attendance"
	"sam/internal/settings"
)

var (
	// ErrAlreadyActive is returned by Start when a loop is live.
	ErrAlreadyActive = errors.New("camera already active")
	// ErrShuttingDown is returned by Start once shutdown has begun.
	ErrShuttingDown = errors.New("application is shutting down")
	// ErrDeviceUnavailable wraps failures to open the capture device.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
)

// Device is an open capture device.
type Device interface {
	// ReadFrame blocks until a frame is available or ctx ends.
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener opens the device at a camera index.
type Opener interface {
	Open(index int) (Device, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(index int) (Device, error)

func (f OpenerFunc) Open(index int) (Device, error) { return f(index) }

// Detection is one decoded symbol and where it was found.
type Detection struct {
	Payload string
	Bounds  image.Rectangle
}

// Decoder finds symbols in a frame. A frame with no symbol returns (nil, nil).
type Decoder interface {
	Decode(img image.Image) ([]Detection, error)
}

// Recorder persists one scan.
type Recorder interface {
	Record(ctx context.Context, name string) (attendance.Result, error)
}

// Notifier receives UI-facing updates.
type Notifier interface {
	Frame(jpeg []byte, width, height, detections int)
	ScanResult(res attendance.Result)
	CameraStatus(active bool, index int, err error)
}

// SettingsSource supplies the current user settings.
type SettingsSource interface {
	Get() settings.Values
}

// ShutdownState reports whether the process is going down.
type ShutdownState interface {
	ShutdownRequested() bool
}

// Observer receives loop measurements.
type Observer interface {
	ObserveFrame(decodeFailed bool)
	ObserveScan(outcome string)
	ObserveSession(active bool)
}

type nopObserver struct{}

func (nopObserver) ObserveFrame(bool)   {}
func (nopObserver) ObserveScan(string)  {}
func (nopObserver) ObserveSession(bool) {}
