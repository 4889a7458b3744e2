package infra

import (
	"context"
	"errors"
	"time"

	"orders-gateway/middleware/orders/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStore implementa domain.KV sobre Redis (go-redis v9).
//
// Cada operação é um único round-trip com timeout próprio; qualquer falha de
// rede/timeout vira domain.CodeStoreUnavailable. Não existe fallback em memória.
type RedisStore struct {
	rdb       redis.Cmdable
	opTimeout time.Duration
}

type RedisStoreOption func(*RedisStore)

// WithOpTimeout limita cada chamada ao Redis (padrão 500ms).
func WithOpTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

func NewRedisStore(rdb redis.Cmdable, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:       rdb,
		opTimeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// INCR + EXPIRE só na criação: o TTL não é renovado a cada request, então a
// janela reseta de forma determinística.
var incrWithExpiry = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return n
`)

var deleteIfEquals = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	ok, err := s.rdb.SetNX(ctx, key, value, wholeSeconds(ttl)).Result()
	if err != nil {
		return false, domain.StoreUnavailable("set-if-absent", err)
	}
	return ok, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.StoreUnavailable("get", err)
	}
	return b, true, nil
}

func (s *RedisStore) SetOverwrite(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.rdb.Set(ctx, key, value, wholeSeconds(ttl)).Err(); err != nil {
		return domain.StoreUnavailable("set", err)
	}
	return nil
}

func (s *RedisStore) IncrementWithExpiry(ctx context.Context, key string, ttlOnCreate time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	secs := int64(wholeSeconds(ttlOnCreate) / time.Second)
	n, err := incrWithExpiry.Run(ctx, s.rdb, []string{key}, secs).Int64()
	if err != nil {
		return 0, domain.StoreUnavailable("incr-with-expiry", err)
	}
	return n, nil
}

func (s *RedisStore) DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	n, err := deleteIfEquals.Run(ctx, s.rdb, []string{key}, value).Int64()
	if err != nil {
		return false, domain.StoreUnavailable("delete-if-equals", err)
	}
	return n == 1, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, domain.StoreUnavailable("ttl", err)
	}
	// go-redis devolve -2 (sem chave) e -1 (sem expiração) sem escalar.
	switch d {
	case -2:
		return 0, false, nil
	case -1:
		return 0, true, nil
	}
	return d, true, nil
}

// Ping é usado pelo /healthz.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return domain.StoreUnavailable("ping", err)
	}
	return nil
}

// wholeSeconds arredonda para cima para segundos inteiros (mínimo 1s).
func wholeSeconds(d time.Duration) time.Duration {
	secs := domain.CeilSeconds(d)
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
