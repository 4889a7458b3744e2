package infra

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"orders-gateway/middleware/orders/domain"

	bolt "go.etcd.io/bbolt"
)

var (
	ordersBucket = []byte("orders")
	// por tenant: "seq" (sequência -> pedido) e "ids" (id -> sequência)
	seqBucket = []byte("seq")
	idsBucket = []byte("ids")
)

// BoltOrderRepository é o livro-razão em arquivo local (ORDERS_BACKEND=bolt).
//
// O arquivo é da instância: serve para rodar uma instância só (dev, demo).
// Com várias instâncias atrás de um balanceador use o RedisOrderRepository,
// senão um GET pode cair numa instância que não viu o pedido.
//
// Ele só é escrito de dentro do computeFn do cache de idempotência, então já
// recebe no máximo um pedido por (tenant, chave). Save é idempotente por id.
type BoltOrderRepository struct {
	db *bolt.DB
}

func OpenBoltOrderRepository(path string) (*BoltOrderRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ordersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltOrderRepository{db: db}, nil
}

func (r *BoltOrderRepository) Close() error { return r.db.Close() }

func (r *BoltOrderRepository) Save(ctx context.Context, o domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		tb, err := tx.Bucket(ordersBucket).CreateBucketIfNotExists([]byte(o.TenantID))
		if err != nil {
			return err
		}
		seqs, err := tb.CreateBucketIfNotExists(seqBucket)
		if err != nil {
			return err
		}
		ids, err := tb.CreateBucketIfNotExists(idsBucket)
		if err != nil {
			return err
		}
		if ids.Get([]byte(o.ID)) != nil {
			return nil
		}
		n, err := seqs.NextSequence()
		if err != nil {
			return err
		}
		k := seqKey(n)
		if err := seqs.Put(k, data); err != nil {
			return err
		}
		return ids.Put([]byte(o.ID), k)
	})
}

func (r *BoltOrderRepository) Get(ctx context.Context, tenantID, id string) (domain.Order, bool, error) {
	var (
		o     domain.Order
		found bool
	)
	if err := ctx.Err(); err != nil {
		return o, false, err
	}
	err := r.db.View(func(tx *bolt.Tx) error {
		tb := tx.Bucket(ordersBucket).Bucket([]byte(tenantID))
		if tb == nil {
			return nil
		}
		k := tb.Bucket(idsBucket).Get([]byte(id))
		if k == nil {
			return nil
		}
		v := tb.Bucket(seqBucket).Get(k)
		if v == nil {
			return errors.New("order index points to missing record")
		}
		found = true
		return json.Unmarshal(v, &o)
	})
	return o, found, err
}

// List devolve até limit pedidos do tenant em ordem de criação, começando
// depois do pedido cursor (quando informado).
func (r *BoltOrderRepository) List(ctx context.Context, tenantID string, limit int, cursor string) ([]domain.Order, error) {
	out := []domain.Order{}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := r.db.View(func(tx *bolt.Tx) error {
		tb := tx.Bucket(ordersBucket).Bucket([]byte(tenantID))
		if tb == nil {
			return nil
		}
		c := tb.Bucket(seqBucket).Cursor()

		var k, v []byte
		if cursor != "" {
			after := tb.Bucket(idsBucket).Get([]byte(cursor))
			if after == nil {
				return domain.Wrap(domain.CodeNotFound, "cursor not found", nil)
			}
			k, v = c.Seek(after)
			if k != nil {
				k, v = c.Next()
			}
		} else {
			k, v = c.First()
		}

		for ; k != nil && len(out) < limit; k, v = c.Next() {
			var o domain.Order
			if err := json.Unmarshal(v, &o); err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func seqKey(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}
