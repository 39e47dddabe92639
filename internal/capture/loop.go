package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sam/internal/logging"
)

const (
	defaultJoinTimeout = 2 * time.Second
	defaultFrameStride = 2
	recordTimeout      = 5 * time.Second
)

// Options wires a Loop to its collaborators. Opener, Decoder, Recorder,
// Notifier and Settings are required.
type Options struct {
	Opener      Opener
	Decoder     Decoder
	Recorder    Recorder
	Notifier    Notifier
	Settings    SettingsSource
	Shutdown    ShutdownState
	Observer    Observer
	Logger      *slog.Logger
	JoinTimeout time.Duration
	// FrameStride sends every Nth frame to the notifier.
	FrameStride int
}

// Status is a point-in-time view of the loop.
type Status struct {
	State     string `json:"state"`
	Active    bool   `json:"active"`
	Index     int    `json:"camera_index"`
	SessionID string `json:"session_id,omitempty"`
	Frames    uint64 `json:"frames"`
	Pending   int    `json:"dedup_pending"`
	LastError string `json:"last_error,omitempty"`
}

// Loop is the capture state machine.
type Loop struct {
	opts   Options
	logger *slog.Logger
	dedup  *DedupSet

	ctl   sync.Mutex // serializes Start and Stop
	state atomic.Int32

	mu      sync.Mutex
	device  Device
	cancel  context.CancelFunc
	done    chan struct{}
	index   int
	session string
	lastErr error

	frames atomic.Uint64
}

// NewLoop validates opts and returns an idle loop.
func NewLoop(opts Options) (*Loop, error) {
	switch {
	case opts.Opener == nil:
		return nil, errors.New("capture: opener is required")
	case opts.Decoder == nil:
		return nil, errors.New("capture: decoder is required")
	case opts.Recorder == nil:
		return nil, errors.New("capture: recorder is required")
	case opts.Notifier == nil:
		return nil, errors.New("capture: notifier is required")
	case opts.Settings == nil:
		return nil, errors.New("capture: settings source is required")
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = defaultJoinTimeout
	}
	if opts.FrameStride <= 0 {
		opts.FrameStride = defaultFrameStride
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "capture"),
		dedup:  NewDedupSet(),
	}, nil
}

// State returns the current lifecycle position.
func (l *Loop) State() State { return State(l.state.Load()) }

// Active reports whether a loop is live.
func (l *Loop) Active() bool { return l.State() == StateRunning }

// Dedup exposes the suppression set.
func (l *Loop) Dedup() *DedupSet { return l.dedup }

// Start opens the configured camera and launches the frame loop.
func (l *Loop) Start(ctx context.Context) error {
	l.ctl.Lock()
	defer l.ctl.Unlock()

	if l.opts.Shutdown != nil && l.opts.Shutdown.ShutdownRequested() {
		return ErrShuttingDown
	}
	if l.State() != StateIdle {
		return ErrAlreadyActive
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	l.state.Store(int32(StateStarting))
	index := l.opts.Settings.Get().CameraIndex
	dev, err := l.opts.Opener.Open(index)
	if err != nil {
		l.state.Store(int32(StateIdle))
		l.setLastErr(err)
		logging.WarnWithContext(l.logger, "camera open failed", "camera_open_failed",
			logging.Int(logging.FieldCameraIndex, index),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the camera is connected and camera_index is correct"),
		)
		return fmt.Errorf("%w: camera %d: %w", ErrDeviceUnavailable, index, err)
	}

	l.dedup.Reset()
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	session := uuid.NewString()

	l.mu.Lock()
	l.device = dev
	l.cancel = cancel
	l.done = done
	l.index = index
	l.session = session
	l.lastErr = nil
	l.mu.Unlock()

	l.state.Store(int32(StateRunning))
	go l.run(runCtx, dev, done, session)

	l.logger.Info("camera started",
		logging.String(logging.FieldEventType, "camera_started"),
		logging.Int(logging.FieldCameraIndex, index),
		logging.String(logging.FieldSessionID, session),
	)
	l.opts.Observer.ObserveSession(true)
	l.opts.Notifier.CameraStatus(true, index, nil)
	return nil
}

// Stop ends the loop and releases the device. It is a no-op when idle.
func (l *Loop) Stop() error {
	l.ctl.Lock()
	defer l.ctl.Unlock()
	l.stopLocked(nil)
	return nil
}

// Toggle starts an idle loop or stops a live one.
func (l *Loop) Toggle(ctx context.Context) (bool, error) {
	if l.State() == StateIdle {
		if err := l.Start(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, l.Stop()
}

// Status snapshots the loop.
func (l *Loop) Status() Status {
	state := l.State()
	l.mu.Lock()
	defer l.mu.Unlock()
	status := Status{
		State:     state.String(),
		Active:    state == StateRunning,
		Index:     l.index,
		SessionID: l.session,
		Frames:    l.frames.Load(),
		Pending:   l.dedup.Len(),
	}
	if l.lastErr != nil {
		status.LastError = l.lastErr.Error()
	}
	return status
}

func (l *Loop) stopLocked(cause error) {
	if l.State() == StateIdle {
		return
	}
	l.state.Store(int32(StateStopping))

	l.mu.Lock()
	dev, cancel, done, index, session := l.device, l.cancel, l.done, l.index, l.session
	l.device, l.cancel, l.done, l.session = nil, nil, nil, ""
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(l.opts.JoinTimeout):
			logging.WarnWithContext(l.logger, "capture loop did not exit in time", "capture_join_timeout",
				logging.Duration("join_timeout", l.opts.JoinTimeout),
				logging.String(logging.FieldSessionID, session),
				logging.String(logging.FieldImpact, "device released while the loop is still unwinding"),
			)
		}
	}
	if dev != nil {
		if err := dev.Close(); err != nil {
			l.logger.Warn("camera close failed",
				logging.Int(logging.FieldCameraIndex, index),
				logging.Error(err),
			)
		}
	}
	l.dedup.Reset()
	l.state.Store(int32(StateIdle))

	l.logger.Info("camera stopped",
		logging.String(logging.FieldEventType, "camera_stopped"),
		logging.Int(logging.FieldCameraIndex, index),
		logging.String(logging.FieldSessionID, session),
	)
	l.opts.Observer.ObserveSession(false)
	l.opts.Notifier.CameraStatus(false, index, cause)
}

// stopAfterFailure tears down the session that failed unless it has already
// been stopped or replaced.
func (l *Loop) stopAfterFailure(session string, cause error) {
	l.ctl.Lock()
	defer l.ctl.Unlock()
	l.mu.Lock()
	current := l.session
	l.mu.Unlock()
	if current != session || l.State() != StateRunning {
		return
	}
	l.stopLocked(cause)
}

func (l *Loop) setLastErr(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}

func (l *Loop) run(ctx context.Context, dev Device, done chan struct{}, session string) {
	var failure error
	defer func() {
		if rec := recover(); rec != nil {
			failure = fmt.Errorf("capture loop panic: %v", rec)
		}
		close(done)
		if failure != nil && ctx.Err() == nil {
			l.setLastErr(failure)
			logging.ErrorWithContext(l.logger, "capture loop terminated", "capture_failed",
				logging.String(logging.FieldSessionID, session),
				logging.Error(failure),
				logging.String(logging.FieldImpact, "camera stopped; press start to retry"),
			)
			go l.stopAfterFailure(session, failure)
		}
	}()
	failure = l.loop(ctx, dev)
}

func (l *Loop) loop(ctx context.Context, dev Device) error {
	var frameNo uint64
	for {
		if ctx.Err() != nil {
			return nil
		}
		values := l.opts.Settings.Get()
		img, err := dev.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if img != nil {
			frameNo++
			l.frames.Add(1)
			l.processFrame(ctx, img, values.DedupWindow(), values.CameraQuality, frameNo)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(values.FrameDelay()):
		}
	}
}

func (l *Loop) processFrame(ctx context.Context, img image.Image, window time.Duration, quality int, frameNo uint64) {
	detections, err := l.opts.Decoder.Decode(img)
	l.opts.Observer.ObserveFrame(err != nil)
	if err != nil {
		l.logger.Debug("symbol decode failed", logging.Error(err))
		detections = nil
	}

	for _, det := range detections {
		payload := strings.TrimSpace(det.Payload)
		if payload == "" || !l.dedup.Add(payload, window) {
			continue
		}
		l.recordScan(ctx, payload)
	}

	if frameNo%uint64(l.opts.FrameStride) != 0 {
		return
	}
	annotated := Annotate(img, detections)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: quality}); err != nil {
		l.logger.Debug("frame encode failed", logging.Error(err))
		return
	}
	bounds := annotated.Bounds()
	l.opts.Notifier.Frame(buf.Bytes(), bounds.Dx(), bounds.Dy(), len(detections))
}

// recordScan runs detached from the loop context so a stop request does not
// abort an insert halfway.
func (l *Loop) recordScan(ctx context.Context, payload string) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	res, err := l.opts.Recorder.Record(recordCtx, payload)
	if err != nil {
		logging.WarnWithContext(l.logger, "scan not recorded", "scan_failed",
			logging.String("name", payload),
			logging.Error(err),
		)
		return
	}
	l.logger.Info("scan processed",
		logging.String(logging.FieldEventType, "scan_"+string(res.Outcome)),
		logging.String("name", res.Record.Name),
		logging.Int("scan_count", res.Stats.Count),
	)
	l.opts.Observer.ObserveScan(string(res.Outcome))
	l.opts.Notifier.ScanResult(res)
}
