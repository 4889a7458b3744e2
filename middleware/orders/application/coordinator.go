package application

import (
	"context"
	"time"

	"orders-gateway/middleware/orders/domain"

	"github.com/google/uuid"
)

// Admitter é o contrato do AdmissionController visto pelo coordenador.
type Admitter interface {
	TryAdmit(ctx context.Context, tenantID string) (domain.Decision, error)
}

// Claimer é o contrato do IdempotencyCache visto pelo coordenador.
type Claimer interface {
	ClaimOrFetch(ctx context.Context, tenantID, idempotencyKey string, compute ComputeFunc) (Result, error)
}

// CreateResult é o que a camada HTTP precisa para responder:
// Created=true vira 201, replay vira 200 com o mesmo Body.
type CreateResult struct {
	Order    domain.Order
	Body     []byte
	Created  bool
	Decision domain.Decision
}

// WriteCoordinator compõe admissão e idempotência em volta da criação do pedido.
//
// Não acessa o store diretamente; atomicidade e espera ficam no cache e no
// controlador de admissão.
type WriteCoordinator struct {
	Admission Admitter
	Cache     Claimer
	// Orders recebe o pedido dentro do computeFn (opcional).
	Orders domain.OrderRepository

	NewID func() string
	Now   func() time.Time
}

func (w *WriteCoordinator) HandleCreate(ctx context.Context, tenantID, idempotencyKey string, in domain.CreateInput) (CreateResult, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return CreateResult{}, domain.Wrap(domain.CodeInvalidInput, "invalid order: "+errs[0].Name+" "+errs[0].Reason, nil)
	}

	// 1) cota do tenant
	dec, err := w.Admission.TryAdmit(ctx, tenantID)
	if err != nil {
		return CreateResult{Decision: dec}, err
	}
	if !dec.Allowed {
		return CreateResult{Decision: dec}, domain.RateLimited(dec.RetryAfter)
	}

	// 2) claim ou replay
	res, err := w.Cache.ClaimOrFetch(ctx, tenantID, idempotencyKey, func(ctx context.Context) (domain.Order, error) {
		order := domain.Order{
			ID:        w.newID(),
			TenantID:  tenantID,
			Item:      in.Item,
			Amount:    in.Amount,
			CreatedAt: w.now().UTC(),
		}
		if w.Orders != nil {
			if err := w.Orders.Save(ctx, order); err != nil {
				return domain.Order{}, err
			}
		}
		return order, nil
	})
	if err != nil {
		return CreateResult{Decision: dec}, err
	}

	// 3) novo vs replay
	return CreateResult{
		Order:    res.Order,
		Body:     res.Body,
		Created:  res.Created,
		Decision: dec,
	}, nil
}

func (w *WriteCoordinator) newID() string {
	if w.NewID != nil {
		return w.NewID()
	}
	return uuid.NewString()
}

func (w *WriteCoordinator) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
