package infra

import (
	"context"

	"orders-gateway/middleware/orders/domain"
)

// ChanPool é um semáforo simples baseado em channel.
type ChanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool com capacidade `max`.
func NewChanPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

var _ domain.SlotPool = (*ChanPool)(nil)

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InUse é usado para o gauge de requisições em andamento.
func (p *ChanPool) InUse() int { return len(p.sem) }

func (p *ChanPool) Capacity() int { return cap(p.sem) }
