package orders

import (
	"log/slog"
	"net/http"
	"time"

	"orders-gateway/middleware/orders/application"
	"orders-gateway/middleware/orders/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestObserver recebe uma observação por requisição (ex: infra.Metrics).
type RequestObserver interface {
	ObserveRequest(method, route string, code int)
}

// RouterConfig reúne as dependências do adapter HTTP.
type RouterConfig struct {
	Creator   OrderCreator
	Querier   OrderQuerier
	Admission application.Admitter

	Auth        Authenticator
	Shield      domain.LimiterStore
	Concurrency ConcurrencyOptions

	Stats   domain.StatsStore
	Health  Pinger
	Metrics http.Handler
	Observe RequestObserver
	Logger  *slog.Logger
}

// NewRouter monta as rotas:
//
//	POST /v1/orders        criação idempotente
//	GET  /v1/orders/{id}   consulta
//	GET  /v1/orders        listagem (limit, cursor)
//	GET  /healthz          ping no store
//	GET  /metrics          Prometheus (se configurado)
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{
		creator: cfg.Creator,
		querier: cfg.Querier,
		health:  cfg.Health,
		stats:   cfg.Stats,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger, cfg.Observe))

	r.Get("/healthz", h.healthz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	writes := Pipeline{RequireTenant(), RequireAuth(cfg.Auth), RequireIdempotencyKey()}
	reads := Pipeline{RequireTenant(), RequireAuth(cfg.Auth)}
	if cfg.Shield != nil {
		writes = append(writes, Shield(cfg.Shield))
		reads = append(reads, Shield(cfg.Shield))
	}
	admit := Middleware(Options{
		Admission:           cfg.Admission,
		Stats:               cfg.Stats,
		Logger:              logger,
		AddRateLimitHeaders: true,
	})

	r.Route("/v1/orders", func(r chi.Router) {
		r.Use(ConcurrencyMiddleware(cfg.Concurrency))

		r.With(writes.Middleware()).Post("/", h.createOrder)
		r.With(reads.Middleware(), admit).Get("/", h.listOrders)
		r.With(reads.Middleware(), admit).Get("/{id}", h.getOrder)
	})
	return r
}

// RequestLogger escreve uma linha por requisição e alimenta o observer.
func RequestLogger(logger *slog.Logger, obs RequestObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			if obs != nil {
				obs.ObserveRequest(r.Method, route, status)
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"tenant", tenantID(r),
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// routePattern devolve o padrão chi (baixa cardinalidade) ou o path cru.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
