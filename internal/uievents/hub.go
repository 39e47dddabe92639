package uievents

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrSurfaceDisposed is returned once the hub has been closed.
var ErrSurfaceDisposed = errors.New("ui surface disposed")

// Sink accepts events for the UI.
type Sink interface {
	Deliver(Event) error
}

// Hub stores recent events and wakes long-poll waiters when new ones arrive.
// Frames are not buffered: only the latest frame is kept so previews never
// push scan results out of the window.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	frame    *Event
	nextSeq  uint64
	closed   bool
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Deliver publishes evt. It fails with ErrSurfaceDisposed after Close.
func (h *Hub) Deliver(evt Event) error {
	if h == nil {
		return ErrSurfaceDisposed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrSurfaceDisposed
	}
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if evt.Kind == KindFrame {
		h.frame = &evt
	} else {
		if len(h.buffer) == h.capacity {
			copy(h.buffer, h.buffer[1:])
			h.buffer = h.buffer[:h.capacity-1]
		}
		h.buffer = append(h.buffer, evt)
	}
	h.cond.Broadcast()
	return nil
}

// Close wakes all waiters and rejects further deliveries.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns events with sequence greater than since. When wait is true,
// Fetch blocks until at least one event is available, the context ends, or
// the hub closes.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, ErrSurfaceDisposed
	}
	if limit <= 0 || limit > h.capacity+1 {
		limit = h.capacity + 1
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if h.closed {
			return nil, next, ErrSurfaceDisposed
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit buffered events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.buffer) {
		limit = len(h.buffer)
	}
	out := make([]Event, limit)
	copy(out, h.buffer[len(h.buffer)-limit:])
	return out, h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *Hub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	var out []Event
	for _, evt := range h.buffer {
		if evt.Sequence > since {
			out = append(out, evt)
		}
	}
	if h.frame != nil && h.frame.Sequence > since {
		out = append(out, *h.frame)
		sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	}
	if len(out) > limit {
		out = out[:limit]
		return out, out[len(out)-1].Sequence
	}
	return out, h.nextSeq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
