package uievents

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHubFetchReturnsEventsAfterSince(t *testing.T) {
	hub := NewHub(4)
	for i := 0; i < 6; i++ {
		if err := hub.Deliver(Event{Kind: KindScanResult, Payload: i}); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	if hub.FirstSequence() != 3 {
		t.Fatalf("expected oldest buffered seq 3, got %d", hub.FirstSequence())
	}
	events, next, err := hub.Fetch(context.Background(), 4, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || events[0].Sequence != 5 || next != 6 {
		t.Fatalf("unexpected fetch: %+v next=%d", events, next)
	}

	events, next, _ = hub.Fetch(context.Background(), 0, 2, false)
	if len(events) != 2 || next != events[1].Sequence {
		t.Fatalf("expected truncated page to resume from last event, got next=%d events=%+v", next, events)
	}
}

func TestHubKeepsOnlyLatestFrame(t *testing.T) {
	hub := NewHub(2)
	_ = hub.Deliver(Event{Kind: KindScanResult})
	for i := 0; i < 10; i++ {
		_ = hub.Deliver(Event{Kind: KindFrame, Payload: i})
	}
	events, _, _ := hub.Fetch(context.Background(), 0, 0, false)
	if len(events) != 2 {
		t.Fatalf("expected scan result plus one frame, got %d", len(events))
	}
	if events[0].Kind != KindScanResult || events[1].Payload != 9 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestHubFetchWaitsForPublish(t *testing.T) {
	hub := NewHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = hub.Deliver(Event{Kind: KindNewDay})
	}()
	events, _, err := hub.Fetch(ctx, 0, 0, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].Kind != KindNewDay {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestHubCloseRejectsAndWakes(t *testing.T) {
	hub := NewHub(8)
	done := make(chan error, 1)
	go func() {
		_, _, err := hub.Fetch(context.Background(), 0, 0, true)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	hub.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrSurfaceDisposed) {
			t.Fatalf("expected ErrSurfaceDisposed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by Close")
	}
	if err := hub.Deliver(Event{Kind: KindFrame}); !errors.Is(err, ErrSurfaceDisposed) {
		t.Fatalf("expected ErrSurfaceDisposed after close, got %v", err)
	}
}
