package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orders-gateway/middleware/orders/domain"
	"orders-gateway/middleware/orders/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisKV(t *testing.T) (*infra.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return infra.NewRedisStore(rdb), mr
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// downKV simula o store inalcançável.
type downKV struct {
	calls int
}

func (d *downKV) SetIfAbsent(context.Context, string, []byte, time.Duration) (bool, error) {
	d.calls++
	return false, domain.StoreUnavailable("set-if-absent", errConnRefused)
}

func (d *downKV) Get(context.Context, string) ([]byte, bool, error) {
	d.calls++
	return nil, false, domain.StoreUnavailable("get", errConnRefused)
}

func (d *downKV) SetOverwrite(context.Context, string, []byte, time.Duration) error {
	d.calls++
	return domain.StoreUnavailable("set", errConnRefused)
}

func (d *downKV) IncrementWithExpiry(context.Context, string, time.Duration) (int64, error) {
	d.calls++
	return 0, domain.StoreUnavailable("incr-with-expiry", errConnRefused)
}

func (d *downKV) DeleteIfEquals(context.Context, string, []byte) (bool, error) {
	d.calls++
	return false, domain.StoreUnavailable("delete-if-equals", errConnRefused)
}

func (d *downKV) TTL(context.Context, string) (time.Duration, bool, error) {
	d.calls++
	return 0, false, domain.StoreUnavailable("ttl", errConnRefused)
}

// finalizeFailsKV deixa o claim funcionar e falha só na gravação final.
type finalizeFailsKV struct {
	domain.KV
	deletes int
}

func (f *finalizeFailsKV) SetOverwrite(context.Context, string, []byte, time.Duration) error {
	return domain.StoreUnavailable("set", errConnRefused)
}

func (f *finalizeFailsKV) DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	f.deletes++
	return f.KV.DeleteIfEquals(ctx, key, value)
}

type memOrders struct {
	mu      sync.Mutex
	saved   []domain.Order
	saveErr error
}

func (m *memOrders) Save(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, o)
	return nil
}

func (m *memOrders) Get(_ context.Context, tenantID, id string) (domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.saved {
		if o.TenantID == tenantID && o.ID == id {
			return o, true, nil
		}
	}
	return domain.Order{}, false, nil
}

func (m *memOrders) List(_ context.Context, tenantID string, limit int, _ string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Order{}
	for _, o := range m.saved {
		if o.TenantID == tenantID && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// fakeClock é um relógio manual.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
