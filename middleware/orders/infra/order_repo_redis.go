package infra

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"orders-gateway/middleware/orders/domain"

	"github.com/redis/go-redis/v9"
)

// RedisOrderRepository é o livro-razão dos pedidos no mesmo Redis do KV, então
// todas as instâncias enxergam os mesmos pedidos.
//
// Layout por tenant:
//
//	order:{tenant}:{id}   JSON do pedido
//	orders:{tenant}       sorted set id -> sequência (ordem de criação)
//	orders:{tenant}:seq   contador da sequência
//
// Pedidos não expiram.
type RedisOrderRepository struct {
	rdb       redis.Cmdable
	opTimeout time.Duration
}

// NewRedisOrderRepository usa opTimeout por chamada (0 usa 500ms, como o RedisStore).
func NewRedisOrderRepository(rdb redis.Cmdable, opTimeout time.Duration) *RedisOrderRepository {
	if opTimeout <= 0 {
		opTimeout = 500 * time.Millisecond
	}
	return &RedisOrderRepository{rdb: rdb, opTimeout: opTimeout}
}

// Grava o pedido e o índice juntos; um id já gravado não gera nova sequência.
var saveOrder = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
local seq = redis.call('INCR', KEYS[3])
redis.call('SET', KEYS[1], ARGV[2])
redis.call('ZADD', KEYS[2], seq, ARGV[1])
return 1
`)

func orderKey(tenantID, id string) string  { return "order:" + tenantID + ":" + id }
func orderIndexKey(tenantID string) string { return "orders:" + tenantID }
func orderSeqKey(tenantID string) string   { return "orders:" + tenantID + ":seq" }

func (r *RedisOrderRepository) Save(ctx context.Context, o domain.Order) error {
	if err := domain.ValidateTenantID(o.TenantID); err != nil {
		return err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	keys := []string{orderKey(o.TenantID, o.ID), orderIndexKey(o.TenantID), orderSeqKey(o.TenantID)}
	if err := saveOrder.Run(ctx, r.rdb, keys, o.ID, data).Err(); err != nil {
		return domain.StoreUnavailable("order-save", err)
	}
	return nil
}

func (r *RedisOrderRepository) Get(ctx context.Context, tenantID, id string) (domain.Order, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	b, err := r.rdb.Get(ctx, orderKey(tenantID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, domain.StoreUnavailable("order-get", err)
	}
	var o domain.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}

// List devolve até limit pedidos do tenant em ordem de criação, começando
// depois do pedido cursor (quando informado).
func (r *RedisOrderRepository) List(ctx context.Context, tenantID string, limit int, cursor string) ([]domain.Order, error) {
	out := []domain.Order{}
	if limit <= 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	index := orderIndexKey(tenantID)
	from := "-inf"
	if cursor != "" {
		score, err := r.rdb.ZScore(ctx, index, cursor).Result()
		if errors.Is(err, redis.Nil) {
			return nil, domain.Wrap(domain.CodeNotFound, "cursor not found", nil)
		}
		if err != nil {
			return nil, domain.StoreUnavailable("order-list", err)
		}
		from = "(" + strconv.FormatFloat(score, 'f', -1, 64)
	}

	ids, err := r.rdb.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min:   from,
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, domain.StoreUnavailable("order-list", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = orderKey(tenantID, id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, domain.StoreUnavailable("order-list", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("order index points to missing record: " + ids[i])
		}
		var o domain.Order
		if err := json.Unmarshal([]byte(s), &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
