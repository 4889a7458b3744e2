package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"orders-gateway/middleware/orders/domain"

	"github.com/google/uuid"
)

// Valor provisório gravado enquanto o dono do claim executa a criação.
// Um pedido final é sempre um objeto JSON, então nunca começa com este prefixo.
var placeholderPrefix = []byte("pending:")

// ComputeFunc é a operação de domínio executada apenas pelo dono do claim.
type ComputeFunc func(ctx context.Context) (domain.Order, error)

// Result é o pedido e os bytes exatamente como estão no store; replays devolvem
// Body sem re-serializar.
type Result struct {
	Order   domain.Order
	Body    []byte
	Created bool
}

// IdempotencyCache garante no máximo uma criação por (tenant, chave).
//
// O único ponto de serialização é o SetIfAbsent do store: quem vê "ausente"
// cria; todos os outros leem o registro (ou esperam o placeholder resolver).
type IdempotencyCache struct {
	Store domain.KV
	// TTL do registro, contado a partir do claim (padrão 24h).
	TTL time.Duration
	// WaitBudget é a espera máxima por um claim concorrente (padrão 2s).
	WaitBudget time.Duration
	// InitialBackoff/MaxBackoff controlam o polling exponencial (padrão 10ms/250ms).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Now      func() time.Time
	NewToken func() string
	Logger   *slog.Logger
	Metrics  domain.Metrics
}

const (
	DefaultRecordTTL      = 24 * time.Hour
	DefaultWaitBudget     = 2 * time.Second
	defaultInitialBackoff = 10 * time.Millisecond
	defaultMaxBackoff     = 250 * time.Millisecond
	conflictRetryAfter    = 1 * time.Second
)

// ClaimOrFetch devolve o pedido do registro existente ou, se a chave estiver
// livre, executa compute e grava o resultado.
func (c *IdempotencyCache) ClaimOrFetch(ctx context.Context, tenantID, idempotencyKey string, compute ComputeFunc) (Result, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return Result{}, domain.Wrap(domain.CodeInvalidInput, "idempotency key is required", nil)
	}

	key := domain.IdempotencyKey(tenantID, idempotencyKey)
	// a espera usa o relógio real; Now só ancora o TTL
	started := time.Now()
	deadline := started.Add(c.waitBudget())
	backoff := c.initialBackoff()
	var waited time.Duration

	for {
		placeholder := append(append([]byte{}, placeholderPrefix...), c.newToken()...)
		claimedAt := c.now()
		ok, err := c.Store.SetIfAbsent(ctx, key, placeholder, c.ttl())
		if err != nil {
			return Result{}, c.storeFailure("claim", err)
		}
		if ok {
			return c.create(ctx, key, placeholder, claimedAt, compute)
		}

		for {
			val, found, err := c.Store.Get(ctx, key)
			if err != nil {
				return Result{}, c.storeFailure("fetch", err)
			}
			if !found {
				// expirou ou o dono liberou o claim: tenta reivindicar de novo
				break
			}
			if !bytes.HasPrefix(val, placeholderPrefix) {
				res, err := decodeRecord(val)
				if err != nil {
					c.metrics().ObserveIdempotency("error", 0)
					return Result{}, err
				}
				c.metrics().ObserveIdempotency("replayed", waited)
				return res, nil
			}

			now := time.Now()
			if !now.Before(deadline) {
				c.metrics().ObserveIdempotency("conflict", now.Sub(started))
				return Result{}, domain.ConflictInProgress(conflictRetryAfter)
			}
			if err := sleepCtx(ctx, minDuration(backoff, deadline.Sub(now))); err != nil {
				c.metrics().ObserveIdempotency("conflict", time.Since(started))
				return Result{}, &domain.Error{
					Code:       domain.CodeConflictInProgress,
					Message:    domain.ErrConflictInProgress.Message,
					RetryAfter: conflictRetryAfter,
					Err:        err,
				}
			}
			waited = time.Since(started)
			backoff = minDuration(backoff*2, c.maxBackoff())
		}

		if !time.Now().Before(deadline) {
			c.metrics().ObserveIdempotency("conflict", time.Since(started))
			return Result{}, domain.ConflictInProgress(conflictRetryAfter)
		}
	}
}

func (c *IdempotencyCache) create(ctx context.Context, key string, placeholder []byte, claimedAt time.Time, compute ComputeFunc) (Result, error) {
	order, err := compute(ctx)
	if err != nil {
		c.release(ctx, key, placeholder)
		c.metrics().ObserveIdempotency("error", 0)
		return Result{}, err
	}

	body, err := json.Marshal(order)
	if err != nil {
		c.release(ctx, key, placeholder)
		c.metrics().ObserveIdempotency("error", 0)
		return Result{}, err
	}

	// a expiração continua ancorada no instante do claim
	remaining := c.ttl() - c.now().Sub(claimedAt)
	if remaining < time.Second {
		remaining = time.Second
	}
	if err := c.Store.SetOverwrite(ctx, key, body, remaining); err != nil {
		// O pedido já foi criado: o placeholder fica até expirar para que
		// nenhum retry crie um segundo pedido.
		c.logger().Error("idempotency record not finalized; key stays claimed",
			"key", key, "order_id", order.ID, "err", err)
		return Result{}, c.storeFailure("finalize", err)
	}

	c.metrics().ObserveIdempotency("created", 0)
	return Result{Order: order, Body: body, Created: true}, nil
}

// release devolve a chave somente se ela ainda guarda o nosso placeholder.
func (c *IdempotencyCache) release(ctx context.Context, key string, placeholder []byte) {
	if _, err := c.Store.DeleteIfEquals(context.WithoutCancel(ctx), key, placeholder); err != nil {
		c.logger().Warn("failed to release idempotency claim; key blocked until ttl",
			"key", key, "err", err)
	}
}

func (c *IdempotencyCache) storeFailure(op string, err error) error {
	c.metrics().ObserveStoreError("idempotency")
	c.metrics().ObserveIdempotency("error", 0)
	return asStoreUnavailable("idempotency "+op, err)
}

func decodeRecord(val []byte) (Result, error) {
	var o domain.Order
	if err := json.Unmarshal(val, &o); err != nil {
		return Result{}, errors.Join(errors.New("corrupt idempotency record"), err)
	}
	return Result{Order: o, Body: val, Created: false}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func (c *IdempotencyCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultRecordTTL
}

func (c *IdempotencyCache) waitBudget() time.Duration {
	if c.WaitBudget > 0 {
		return c.WaitBudget
	}
	return DefaultWaitBudget
}

func (c *IdempotencyCache) initialBackoff() time.Duration {
	if c.InitialBackoff > 0 {
		return c.InitialBackoff
	}
	return defaultInitialBackoff
}

func (c *IdempotencyCache) maxBackoff() time.Duration {
	if c.MaxBackoff > 0 {
		return c.MaxBackoff
	}
	return defaultMaxBackoff
}

func (c *IdempotencyCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *IdempotencyCache) newToken() string {
	if c.NewToken != nil {
		return c.NewToken()
	}
	return uuid.NewString()
}

func (c *IdempotencyCache) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *IdempotencyCache) metrics() domain.Metrics {
	if c.Metrics != nil {
		return c.Metrics
	}
	return domain.NopMetrics{}
}
