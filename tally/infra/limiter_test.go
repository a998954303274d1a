package infra_test

import (
	"context"
	"testing"
	"time"

	"vote-tally/tally/infra"
)

func TestLimiterStore_SameVoterSharesBucket(t *testing.T) {
	s := infra.NewLimiterStore(1, 2)
	if s.Get("a") != s.Get("a") {
		t.Fatalf("expected same limiter for same voter")
	}
	if s.Get("a") == s.Get("b") {
		t.Fatalf("expected different limiters for different voters")
	}
}

func TestLimiterStore_BurstThenRefuse(t *testing.T) {
	lim := infra.NewLimiterStore(0.001, 2).Get("voter")
	if !lim.Allow() || !lim.Allow() {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if lim.Allow() {
		t.Fatalf("expected third vote to be refused")
	}
}

func TestLimiterStore_CleanupDropsIdleVoters(t *testing.T) {
	s := infra.NewLimiterStore(1, 1, infra.WithIdleTTL(time.Millisecond))
	s.Get("gone")
	time.Sleep(5 * time.Millisecond)
	s.Cleanup()
	if s.Len() != 0 {
		t.Fatalf("expected idle voter to be removed, got %d entries", s.Len())
	}
}

func TestLimiterStore_JanitorRunsUntilCancelled(t *testing.T) {
	s := infra.NewLimiterStore(1, 1, infra.WithIdleTTL(time.Millisecond), infra.WithCleanupEvery(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx)

	s.Get("gone")
	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("janitor never removed idle voter")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
