package infra

import (
	"context"
	"testing"
	"time"

	"orders-gateway/middleware/orders/domain"
)

func TestShield_SameTenantSharesBucket(t *testing.T) {
	s := NewShield(10, 1)

	l1 := s.Get(domain.Key("tenant-A"))
	l2 := s.Get(domain.Key("tenant-A"))
	if l1 != l2 {
		t.Fatalf("expected same limiter for same tenant")
	}
	if s.Get(domain.Key("tenant-B")) == l1 {
		t.Fatalf("tenants must not share a bucket")
	}
}

func TestShield_BurstOneRejectsSecondImmediateAllow(t *testing.T) {
	s := NewShield(0.02, 1)

	lim := s.Get(domain.Key("tenant-A"))
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
	if d := s.RetryAfter(domain.Key("tenant-A")); d <= 0 {
		t.Fatalf("expected positive retry-after after exhausting burst, got %v", d)
	}
}

func TestShield_RetryAfterDoesNotConsume(t *testing.T) {
	s := NewShield(0.02, 1)

	if d := s.RetryAfter(domain.Key("tenant-C")); d != 0 {
		t.Fatalf("fresh bucket should have no delay, got %v", d)
	}
	if !s.Get(domain.Key("tenant-C")).Allow() {
		t.Fatalf("RetryAfter must not consume the token")
	}
}

func TestShield_CleanupRemovesIdleTenants(t *testing.T) {
	s := NewShield(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get(domain.Key("tenant-A"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	after := s.Get(domain.Key("tenant-A"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

func TestShield_JanitorStopsWithContext(t *testing.T) {
	s := NewShield(10, 1, WithIdleTTL(time.Millisecond), WithCleanupEvery(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := s.Get(domain.Key("tenant-A"))
	s.StartJanitor(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.entries)
		s.mu.Unlock()
		if n == 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if s.Get(domain.Key("tenant-A")) == before {
		t.Fatalf("janitor should have evicted the idle tenant")
	}
}
