package uievents

import (
	"errors"
	"testing"

	"sam/internal/lifecycle"
	"sam/internal/logging"
)

type recordingSink struct {
	err    error
	events []Event
}

func (s *recordingSink) Deliver(evt Event) error {
	s.events = append(s.events, evt)
	return s.err
}

func TestNotifierSkipsAfterWindowClosed(t *testing.T) {
	state := lifecycle.New()
	sink := &recordingSink{}
	n := NewNotifier(sink, state, logging.NewNop())

	n.CameraStatus(true, 0, nil)
	state.MarkWindowClosed()
	n.CameraStatus(false, 0, nil)
	n.Frame([]byte{1}, 1, 1, 0)

	if len(sink.events) != 1 {
		t.Fatalf("expected one delivered event, got %d", len(sink.events))
	}
	if n.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", n.Dropped())
	}
}

func TestNotifierMarksWindowClosedOnDisposedError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantClosed bool
	}{
		{"hub disposed", ErrSurfaceDisposed, true},
		{"webview", errors.New("WebView2 control is not available"), true},
		{"object disposed", errors.New("ObjectDisposedException: Cannot access a disposed object"), true},
		{"transient", errors.New("write: broken pipe"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := lifecycle.New()
			sink := &recordingSink{err: tc.err}
			n := NewNotifier(sink, state, logging.NewNop())

			n.SettingsApplied("dark_mode", true)
			if state.WindowClosed() != tc.wantClosed {
				t.Fatalf("window closed = %v, want %v", state.WindowClosed(), tc.wantClosed)
			}
			n.SettingsApplied("dark_mode", false)
			wantDeliveries := 2
			if tc.wantClosed {
				wantDeliveries = 1
			}
			if len(sink.events) != wantDeliveries {
				t.Fatalf("expected %d deliveries, got %d", wantDeliveries, len(sink.events))
			}
			if n.Failed() == 0 {
				t.Fatal("expected failure counter to move")
			}
		})
	}
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	n.CameraStatus(true, 0, nil)
	if n.Dropped() != 0 {
		t.Fatal("nil notifier should report zero")
	}
}
