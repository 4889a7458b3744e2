package orders

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orders-gateway/middleware/orders/domain"
	"orders-gateway/middleware/orders/infra"
)

type scriptedAdmitter struct {
	decisions []domain.Decision
	err       error
	calls     int
	lastKey   string
}

func (s *scriptedAdmitter) TryAdmit(_ context.Context, tenantID string) (domain.Decision, error) {
	s.lastKey = tenantID
	s.calls++
	if s.err != nil {
		return domain.Decision{}, s.err
	}
	d := s.decisions[0]
	if len(s.decisions) > 1 {
		s.decisions = s.decisions[1:]
	}
	return d, nil
}

func TestMiddleware_AllowsThenRejectsSameTenant(t *testing.T) {
	adm := &scriptedAdmitter{decisions: []domain.Decision{
		{Allowed: true, Limit: 5, Remaining: 0, Tier: domain.TierFree},
		{Allowed: false, Limit: 5, Tier: domain.TierFree, RetryAfter: 7 * time.Second},
	}}
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Admission:           adm,
		Stats:               stats,
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/v1/orders", nil)
	r1.Header.Set(HeaderTenantID, "tenant-A")
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("expected X-RateLimit-Limit 5, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining 0, got %q", got)
	}

	// 2) segunda bloqueia com Retry-After da janela
	r2 := httptest.NewRequest(http.MethodGet, "http://example/v1/orders", nil)
	r2.Header.Set(HeaderTenantID, "tenant-A")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "7" {
		t.Fatalf("expected Retry-After 7, got %q", got)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if adm.lastKey != "tenant-A" {
		t.Fatalf("expected tenant key, got %q", adm.lastKey)
	}
	if got := stats.Total(); got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestMiddleware_StoreOutageIs503(t *testing.T) {
	adm := &scriptedAdmitter{err: domain.StoreUnavailable("admission", context.DeadlineExceeded)}
	stats := infra.NewMemoryStatsStore()

	h := Middleware(Options{Admission: adm, Stats: stats})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next must not run when admission fails closed")
	}))

	r := httptest.NewRequest(http.MethodGet, "http://example/v1/orders", nil)
	r.Header.Set(HeaderTenantID, "tenant-A")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if got := stats.Total(); got.Allowed+got.Denied != 0 {
		t.Fatalf("failed admissions must not be counted: %+v", got)
	}
}

func TestMiddleware_DegradedAdmissionPassesWithoutStats(t *testing.T) {
	adm := &scriptedAdmitter{decisions: []domain.Decision{{Allowed: true, Degraded: true, Limit: 5}}}
	stats := infra.NewMemoryStatsStore()

	h := Middleware(Options{Admission: adm, Stats: stats})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "http://example/v1/orders", nil)
	r.Header.Set(HeaderTenantID, "tenant-A")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := stats.Total(); got.Allowed != 0 {
		t.Fatalf("degraded decisions are not counted: %+v", got)
	}
}
