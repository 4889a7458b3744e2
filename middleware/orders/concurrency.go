package orders

import (
	"net/http"
	"time"

	"orders-gateway/middleware/orders/application"
	"orders-gateway/middleware/orders/domain"
	"orders-gateway/middleware/orders/infra"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
	// Pool substitui o semáforo padrão (infra.NewChanPool(Max)).
	Pool domain.SlotPool
}

// ConcurrencyMiddleware limita requisições simultâneas da instância.
// Pool cheio durante todo o AcquireTimeout vira 503.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		opts.Pool = infra.NewChanPool(opts.Max)
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, outcome := svc.Acquire(r.Context())
			switch outcome {
			case application.Acquired:
			case application.Canceled:
				// cliente já foi embora
				return
			default:
				writeProblem(w, r, http.StatusServiceUnavailable, "overloaded", "Server is at capacity, try again later.", time.Second, nil)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
