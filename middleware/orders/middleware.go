package orders

import (
	"log/slog"
	"net/http"
	"time"

	"orders-gateway/middleware/orders/application"
	"orders-gateway/middleware/orders/domain"
)

type KeyFunc func(r *http.Request) string

// Options configura o middleware de admissão das rotas de leitura.
// A escrita passa pela admissão dentro do WriteCoordinator.
type Options struct {
	Admission application.Admitter
	Stats     domain.StatsStore
	KeyFn     KeyFunc
	Logger    *slog.Logger
	// AddRateLimitHeaders inclui X-RateLimit-Limit/Remaining (padrão true via NewRouter).
	AddRateLimitHeaders bool
}

// TenantKeyFunc usa o X-Tenant-Id como chave da cota.
func TenantKeyFunc() KeyFunc {
	return func(r *http.Request) string { return tenantID(r) }
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = TenantKeyFunc()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec, err := opts.Admission.TryAdmit(r.Context(), key)
			if err != nil {
				writeError(w, r, opts.Logger, err)
				return
			}
			if opts.AddRateLimitHeaders {
				setRateLimitHeaders(w, dec)
			}
			recordStats(r, opts.Stats, opts.Logger, key, dec)

			if !dec.Allowed {
				writeError(w, r, opts.Logger, domain.RateLimited(dec.RetryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, dec domain.Decision) {
	if dec.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
	w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	if !dec.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", formatInt(int(dec.ResetAt.Unix())))
	}
}

// recordStats é best-effort: erro só vira log.
func recordStats(r *http.Request, stats domain.StatsStore, logger *slog.Logger, key string, dec domain.Decision) {
	if stats == nil || dec.Degraded {
		return
	}
	err := stats.Record(r.Context(), domain.StatsEvent{
		Key:     domain.Key(key),
		Tier:    dec.Tier,
		Allowed: dec.Allowed,
		Method:  r.Method,
		Path:    routePattern(r),
		At:      time.Now(),
	})
	if err != nil {
		logger.Warn("failed to record admission stats", "err", err)
	}
}
