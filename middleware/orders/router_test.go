package orders

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orders-gateway/middleware/orders/application"
	"orders-gateway/middleware/orders/domain"
	"orders-gateway/middleware/orders/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// início de uma janela de 10s
var fixedNow = time.Unix(1_700_000_000, 0)

type testStack struct {
	handler http.Handler
	mr      *miniredis.Miniredis
	cache   *application.IdempotencyCache
	metrics *infra.Metrics
}

func newTestStack(t *testing.T, auth Authenticator) *testStack {
	t.Helper()
	return newTestStackOn(t, miniredis.RunT(t), auth)
}

// newTestStackOn monta uma instância do gateway sobre um Redis compartilhado.
func newTestStackOn(t *testing.T, mr *miniredis.Miniredis, auth Authenticator) *testStack {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ledger := infra.NewRedisOrderRepository(rdb, 200*time.Millisecond)
	kv := infra.NewRedisStore(rdb, infra.WithOpTimeout(200*time.Millisecond))
	metrics := infra.NewMetrics()
	now := func() time.Time { return fixedNow }

	admission := &application.AdmissionController{
		Store:   kv,
		Plans:   infra.DefaultPlanDirectory(),
		Quotas:  domain.DefaultQuotas(),
		Now:     now,
		Metrics: metrics,
	}
	cache := &application.IdempotencyCache{Store: kv, Now: now, Metrics: metrics}

	h := NewRouter(RouterConfig{
		Creator: &application.WriteCoordinator{
			Admission: admission,
			Cache:     cache,
			Orders:    ledger,
			Now:       now,
		},
		Querier:   application.OrderReader{Orders: ledger},
		Admission: admission,
		Auth:      auth,
		Stats:     infra.NewMemoryStatsStore(),
		Health:    kv,
		Metrics:   metrics.Handler(),
		Observe:   metrics,
	})
	return &testStack{handler: h, mr: mr, cache: cache, metrics: metrics}
}

type call struct {
	method, path, tenant, key, auth, body string
}

func (s *testStack) do(c call) *httptest.ResponseRecorder {
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	r := httptest.NewRequest(c.method, c.path, body)
	if c.tenant != "" {
		r.Header.Set(HeaderTenantID, c.tenant)
	}
	if c.key != "" {
		r.Header.Set(HeaderIdempotencyKey, c.key)
	}
	if c.auth != "" {
		r.Header.Set(HeaderAuthorization, c.auth)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func create(tenant, key, body string) call {
	return call{method: http.MethodPost, path: "/v1/orders", tenant: tenant, key: key, auth: "Bearer ABCD_1234", body: body}
}

func get(tenant, path string) call {
	return call{method: http.MethodGet, path: path, tenant: tenant, auth: "Bearer ABCD_1234"}
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	require.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestRouter_CreateThenReplayIsByteIdentical(t *testing.T) {
	s := newTestStack(t, nil)

	first := s.do(create("tenant-C", "idem-001", `{"item":"Feed","amount":100}`))
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, "false", first.Header().Get("X-Idempotent-Replay"))
	require.Equal(t, "100", first.Header().Get("X-RateLimit-Limit"))

	var o domain.Order
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &o))
	require.Equal(t, "tenant-C", o.TenantID)
	require.Equal(t, "Feed", o.Item)
	require.Equal(t, 100.0, o.Amount)

	second := s.do(create("tenant-C", "idem-001", `{"item":"Feed","amount":100}`))
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "true", second.Header().Get("X-Idempotent-Replay"))
	require.True(t, bytes.Equal(first.Body.Bytes(), second.Body.Bytes()))

	require.Greater(t, s.mr.TTL(domain.IdempotencyKey("tenant-C", "idem-001")), 86000*time.Second)

	got := s.do(get("tenant-C", "/v1/orders/"+o.ID))
	require.Equal(t, http.StatusOK, got.Code)

	other := s.do(get("tenant-B", "/v1/orders/"+o.ID))
	require.Equal(t, http.StatusNotFound, other.Code)
	require.Equal(t, "https://example.com/problems/not-found", decodeProblem(t, other).Type)
}

func TestRouter_InstancesShareOrdersAndRecords(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newTestStackOn(t, mr, nil)
	b := newTestStackOn(t, mr, nil)

	created := a.do(create("tenant-C", "idem-shared", `{"item":"Feed","amount":100}`))
	require.Equal(t, http.StatusCreated, created.Code)
	var o domain.Order
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &o))

	replay := b.do(create("tenant-C", "idem-shared", `{"item":"Feed","amount":100}`))
	require.Equal(t, http.StatusOK, replay.Code)
	require.True(t, bytes.Equal(created.Body.Bytes(), replay.Body.Bytes()))

	got := b.do(get("tenant-C", "/v1/orders/"+o.ID))
	require.Equal(t, http.StatusOK, got.Code)

	w := b.do(get("tenant-C", "/v1/orders"))
	require.Equal(t, http.StatusOK, w.Code)
	var page ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	require.Equal(t, o.ID, page.Data[0].ID)
}

func TestRouter_HeaderValidation(t *testing.T) {
	s := newTestStack(t, APIKeyAuth("ABCD_1234"))
	body := `{"item":"Feed","amount":1}`

	w := s.do(call{method: http.MethodPost, path: "/v1/orders", key: "k", auth: "Bearer ABCD_1234", body: body})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "https://example.com/problems/missing-tenant", decodeProblem(t, w).Type)

	w = s.do(call{method: http.MethodPost, path: "/v1/orders", tenant: "tenant-A", key: "k", body: body})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(call{method: http.MethodPost, path: "/v1/orders", tenant: "tenant-A", key: "k", auth: "Bearer wrong", body: body})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(call{method: http.MethodPost, path: "/v1/orders", tenant: "tenant-A", auth: "Bearer ABCD_1234", body: body})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "https://example.com/problems/missing-idempotency-key", decodeProblem(t, w).Type)

	// nenhuma rejeição de cabeçalho consome cota
	require.False(t, s.mr.Exists(domain.RateWindowKey("tenant-A", fixedNow.Unix())))
}

func TestRouter_TenantWithSeparatorIsRejected(t *testing.T) {
	s := newTestStack(t, nil)
	body := `{"item":"Feed","amount":1}`

	w := s.do(create("acme", "team:order-1", body))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(create("acme:team", "order-1", body))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "https://example.com/problems/invalid-tenant", decodeProblem(t, w).Type)

	w = s.do(get("acme:team", "/v1/orders"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	// nada foi contado em nome do tenant inválido
	require.False(t, s.mr.Exists(domain.RateWindowKey("acme:team", fixedNow.Unix())))
	count, err := s.mr.Get(domain.RateWindowKey("acme", fixedNow.Unix()))
	require.NoError(t, err)
	require.Equal(t, "1", count)
}

func TestRouter_InvalidBodyIs422(t *testing.T) {
	s := newTestStack(t, nil)

	w := s.do(create("tenant-A", "k1", `{"item":"","amount":0}`))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	p := decodeProblem(t, w)
	require.Equal(t, "https://example.com/problems/validation-error", p.Type)
	require.Len(t, p.Errors, 2)

	w = s.do(create("tenant-A", "k2", `{"item":"Feed","amount":"100"}`))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "amount", decodeProblem(t, w).Errors[0].Name)

	w = s.do(create("tenant-A", "k3", `not json`))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouter_SixthCreateInWindowIs429(t *testing.T) {
	s := newTestStack(t, nil)

	for i := 0; i < 5; i++ {
		w := s.do(create("tenant-A", "rl-"+formatInt(i), `{"item":"Feed","amount":1}`))
		require.Equal(t, http.StatusCreated, w.Code)
		require.Equal(t, formatInt(4-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := s.do(create("tenant-A", "rl-5", `{"item":"Feed","amount":1}`))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "10", w.Header().Get("Retry-After"))
	p := decodeProblem(t, w)
	require.Equal(t, 10, p.RetryAfter)

	// outro tenant não é afetado
	w = s.do(create("tenant-B", "rl-5", `{"item":"Feed","amount":1}`))
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_InFlightClaimIs409(t *testing.T) {
	s := newTestStack(t, nil)
	s.cache.WaitBudget = 30 * time.Millisecond
	require.NoError(t, s.mr.Set(domain.IdempotencyKey("tenant-C", "busy"), "pending:other-instance"))

	w := s.do(create("tenant-C", "busy", `{"item":"Feed","amount":1}`))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.Equal(t, "https://example.com/problems/conflict-in-progress", decodeProblem(t, w).Type)
}

func TestRouter_StoreOutageIs503(t *testing.T) {
	s := newTestStack(t, nil)
	s.mr.Close()

	w := s.do(create("tenant-C", "down", `{"item":"Feed","amount":1}`))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "https://example.com/problems/store-unavailable", decodeProblem(t, w).Type)

	w = s.do(call{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(get("tenant-C", "/v1/orders"))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_ListPagesWithCursor(t *testing.T) {
	s := newTestStack(t, nil)
	for i := 0; i < 3; i++ {
		w := s.do(create("tenant-C", "list-"+formatInt(i), `{"item":"Feed","amount":1}`))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(get("tenant-C", "/v1/orders?limit=2"))
	require.Equal(t, http.StatusOK, w.Code)
	var page ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 2)
	require.NotEmpty(t, page.NextCursor)

	w = s.do(get("tenant-C", "/v1/orders?limit=2&cursor="+page.NextCursor))
	require.Equal(t, http.StatusOK, w.Code)
	var rest ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rest))
	require.Len(t, rest.Data, 1)
	require.Empty(t, rest.NextCursor)

	for _, q := range []string{"limit=0", "limit=101", "limit=abc", "cursor=nope"} {
		w = s.do(get("tenant-C", "/v1/orders?"+q))
		require.Equalf(t, http.StatusBadRequest, w.Code, "query %s", q)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestStack(t, nil)

	w := s.do(call{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, w.Code)

	s.do(create("tenant-C", "m1", `{"item":"Feed","amount":1}`))
	w = s.do(call{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `orders_idempotency_outcomes_total{outcome="created"} 1`)
	require.Contains(t, w.Body.String(), `orders_http_requests_total{code="201",method="POST",route="/v1/orders`)
}
