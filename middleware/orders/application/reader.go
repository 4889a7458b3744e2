package application

import (
	"context"

	"orders-gateway/middleware/orders/domain"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// OrderReader atende consultas ao livro-razão, sempre dentro do tenant.
type OrderReader struct {
	Orders domain.OrderRepository
}

func (r OrderReader) Get(ctx context.Context, tenantID, id string) (domain.Order, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return domain.Order{}, err
	}
	o, found, err := r.Orders.Get(ctx, tenantID, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !found {
		return domain.Order{}, domain.Wrap(domain.CodeNotFound, "order not found", nil)
	}
	return o, nil
}

// List valida limit (1..100, padrão 10) e cursor (uuid de um pedido).
func (r OrderReader) List(ctx context.Context, tenantID string, limit int, cursor string) ([]domain.Order, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 0 || limit > MaxListLimit {
		return nil, domain.Wrap(domain.CodeInvalidInput, "limit must be between 1 and 100", nil)
	}
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, domain.Wrap(domain.CodeInvalidInput, "cursor must be a uuid", err)
		}
	}
	return r.Orders.List(ctx, tenantID, limit, cursor)
}
