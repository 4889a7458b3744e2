package application

import (
	"context"
	"time"

	"orders-gateway/middleware/orders/domain"
)

// AcquireOutcome diferencia falta de vaga de cliente que desistiu.
type AcquireOutcome int

const (
	Acquired AcquireOutcome = iota
	// TimedOut: o pool ficou cheio durante todo o AcquireTimeout (vira 503).
	TimedOut
	// Canceled: o contexto da requisição terminou antes (cliente foi embora).
	Canceled
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas da
// instância com timeout, sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Só quando o outcome é Acquired o release deve ser chamado.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), AcquireOutcome) {
	if s.Pool == nil {
		return func() {}, Acquired
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	switch {
	case ok:
		return release, Acquired
	case ctx.Err() != nil:
		return nil, Canceled
	default:
		return nil, TimedOut
	}
}
