package infra

import (
	"context"
	"testing"
	"time"

	"math-solver-gateway/solver/domain"
)

func TestLimiterStore_SameClientSharesLimiter(t *testing.T) {
	s := NewLimiterStore(10, 1)

	if s.Get("10.0.0.1") != s.Get("10.0.0.1") {
		t.Fatalf("expected same limiter for same client")
	}
	if s.Get("10.0.0.1") == s.Get("10.0.0.2") {
		t.Fatalf("expected distinct limiters for distinct clients")
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 clients, got %d", s.Len())
	}
}

func TestLimiterStore_BurstOneRejectsSecondSubmission(t *testing.T) {
	s := NewLimiterStore(0.02, 1)

	lim := s.Get(domain.Key("k"))
	if !lim.Allow() {
		t.Fatalf("expected first submission to pass")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate submission to be limited (burst=1)")
	}
}

func TestLimiterStore_CleanupDropsIdleClients(t *testing.T) {
	s := NewLimiterStore(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get("k")
	time.Sleep(4 * time.Millisecond)
	s.Cleanup()

	if s.Len() != 0 {
		t.Fatalf("expected idle client to be removed, %d left", s.Len())
	}
	if s.Get("k") == before {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

func TestLimiterStore_JanitorRunsUntilCanceled(t *testing.T) {
	s := NewLimiterStore(10, 1, WithIdleTTL(time.Millisecond), WithCleanupEvery(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Get("k")
	s.StartJanitor(ctx)

	waitUntil(t, func() bool { return s.Len() == 0 })
}
