package application

import (
	"time"

	"orders-gateway/middleware/orders/domain"
)

// retryAfterEstimator é implementado por limiters locais que sabem quando o
// próximo token estará disponível (ex: infra.Shield).
type retryAfterEstimator interface {
	RetryAfter(domain.Key) time.Duration
}

// ShieldService decide com o limiter local da instância, antes de gastar um
// round-trip no store compartilhado.
//
// Ele só rejeita; admitir aqui não significa nada além de "siga para a
// admissão real".
type ShieldService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s ShieldService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if est, ok := s.Store.(retryAfterEstimator); ok {
		if d := est.RetryAfter(key); d > 0 {
			retry = d
		}
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
