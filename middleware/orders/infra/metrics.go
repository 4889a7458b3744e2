package infra

import (
	"net/http"
	"strconv"
	"time"

	"orders-gateway/middleware/orders/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implementa domain.Metrics com Prometheus.
//
// Labels são de baixa cardinalidade (tier, outcome, op); tenant nunca vira label.
type Metrics struct {
	reg *prometheus.Registry

	admissions  *prometheus.CounterVec
	idempotency *prometheus.CounterVec
	claimWait   prometheus.Histogram
	storeErrors *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

// NewMetrics registra as métricas em um registry próprio (evita colisão com o
// DefaultRegisterer em testes).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_admission_decisions_total",
			Help: "Tenant admission decisions by plan tier and outcome",
		}, []string{"tier", "outcome"}),
		idempotency: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_idempotency_outcomes_total",
			Help: "Idempotent create outcomes (created, replayed, conflict, error)",
		}, []string{"outcome"}),
		claimWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orders_idempotency_wait_seconds",
			Help:    "Time spent waiting for a concurrent claimant to finish",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_store_errors_total",
			Help: "Shared store failures seen by the core, by component",
		}, []string{"component"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(m.admissions, m.idempotency, m.claimWait, m.storeErrors, m.requests)
	return m
}

func (m *Metrics) ObserveAdmission(tier domain.Tier, outcome string) {
	m.admissions.WithLabelValues(tier.String(), outcome).Inc()
}

func (m *Metrics) ObserveIdempotency(outcome string, waited time.Duration) {
	m.idempotency.WithLabelValues(outcome).Inc()
	if waited > 0 {
		m.claimWait.Observe(waited.Seconds())
	}
}

func (m *Metrics) ObserveStoreError(component string) {
	m.storeErrors.WithLabelValues(component).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, code int) {
	if code <= 0 {
		code = http.StatusOK
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// TrackPool expõe ocupação e capacidade do semáforo de concorrência.
func (m *Metrics) TrackPool(p *ChanPool) {
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "orders_inflight_requests",
			Help: "Requests currently holding a concurrency slot",
		}, func() float64 { return float64(p.InUse()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "orders_inflight_capacity",
			Help: "Concurrency slots available to this instance",
		}, func() float64 { return float64(p.Capacity()) }),
	)
}

// Handler expõe /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
