package application

import (
	"testing"
	"time"

	"orders-gateway/middleware/orders/domain"
)

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow() bool { return f.allow }

type fakeLimiterStore struct {
	lim domain.Limiter
}

func (s fakeLimiterStore) Get(domain.Key) domain.Limiter { return s.lim }

type estimatingStore struct {
	fakeLimiterStore
	delay time.Duration
}

func (s estimatingStore) RetryAfter(domain.Key) time.Duration { return s.delay }

func TestShieldService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := ShieldService{}
	dec := svc.Decide("tenant-A")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestShieldService_Decide_AllowsWhenLimiterAllows(t *testing.T) {
	svc := ShieldService{Store: fakeLimiterStore{lim: fakeLimiter{allow: true}}, RetryAfter: 5 * time.Second}
	dec := svc.Decide("tenant-A")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestShieldService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := ShieldService{Store: fakeLimiterStore{lim: fakeLimiter{allow: false}}}
	dec := svc.Decide("tenant-A")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestShieldService_Decide_PrefersLimiterEstimate(t *testing.T) {
	store := estimatingStore{
		fakeLimiterStore: fakeLimiterStore{lim: fakeLimiter{allow: false}},
		delay:            2500 * time.Millisecond,
	}
	svc := ShieldService{Store: store, RetryAfter: time.Second}
	dec := svc.Decide("tenant-A")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected RetryAfter=2.5s, got %s", dec.RetryAfter)
	}
}
