package infra

import (
	"context"
	"sync"
	"time"

	"orders-gateway/middleware/orders/domain"

	"golang.org/x/time/rate"
)

// Shield é um token bucket local por tenant (x/time/rate), com cache por
// chave e limpeza periódica.
//
// Ele só pode rejeitar mais cedo: a cota real é sempre contada no store
// compartilhado, e o estado daqui se perde em restart sem prejuízo.
type Shield struct {
	mu           sync.Mutex
	entries      map[string]*shieldEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type shieldEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type ShieldOption func(*Shield)

func WithIdleTTL(d time.Duration) ShieldOption {
	return func(s *Shield) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) ShieldOption {
	return func(s *Shield) { s.cleanupEvery = d }
}

func NewShield(rps float64, burst int, opts ...ShieldOption) *Shield {
	s := &Shield{
		entries:      make(map[string]*shieldEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implementa domain.LimiterStore.
func (s *Shield) Get(key domain.Key) domain.Limiter {
	return s.limiter(string(key))
}

// RetryAfter estima quando o próximo token do tenant estará disponível.
func (s *Shield) RetryAfter(key domain.Key) time.Duration {
	// Tokens() só observa; Reserve+Cancel consumiria o token quando o atraso é 0.
	tokens := s.limiter(string(key)).Tokens()
	if tokens >= 1 {
		return 0
	}
	if s.rps <= 0 {
		return time.Second
	}
	return time.Duration((1 - tokens) / float64(s.rps) * float64(time.Second))
}

func (s *Shield) limiter(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &shieldEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *Shield) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa tenants inativos periodicamente.
// Pare cancelando o contexto.
func (s *Shield) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
