package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFlagsAreMonotonic(t *testing.T) {
	s := New()
	if s.ShutdownRequested() || s.WindowClosed() || s.CleanupClaimed() {
		t.Fatal("expected all flags clear")
	}
	if !s.RequestShutdown() {
		t.Fatal("first RequestShutdown should report true")
	}
	if s.RequestShutdown() {
		t.Fatal("second RequestShutdown should report false")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done should be closed")
	}
	if !s.MarkWindowClosed() || s.MarkWindowClosed() {
		t.Fatal("MarkWindowClosed should succeed exactly once")
	}
	if !s.WindowClosed() {
		t.Fatal("expected window closed")
	}
}

func TestClaimCleanupSingleWinner(t *testing.T) {
	s := New()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ClaimCleanup() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected one cleanup winner, got %d", wins)
	}
}

func TestContextCancelledOnShutdown(t *testing.T) {
	s := New()
	ctx, cancel := s.Context(context.Background())
	defer cancel()

	s.RequestShutdown()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by shutdown")
	}
}
