package domain

import (
	"context"
	"strings"
	"time"
)

// KV é o store externo compartilhado entre todas as instâncias.
//
// Toda a correção do núcleo vem da atomicidade destas primitivas; nenhuma
// implementação pode responder a partir de cópia local em memória.
// Erros de rede/timeout devem ser devolvidos (o chamador decide a política).
type KV interface {
	// SetIfAbsent grava value com TTL somente se key não existir.
	// Retorna true se e somente se esta chamada criou a chave.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Get retorna (value, true) ou (nil, false) quando a chave não existe ou expirou.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetOverwrite grava value com TTL incondicionalmente.
	SetOverwrite(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// IncrementWithExpiry incrementa o contador e aplica o TTL apenas quando
	// o contador é criado (o TTL nunca é renovado por incrementos seguintes).
	IncrementWithExpiry(ctx context.Context, key string, ttlOnCreate time.Duration) (int64, error)

	// DeleteIfEquals remove key apenas se o valor atual for exatamente value.
	DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error)

	// TTL retorna o tempo restante da chave; (0, false) se ela não existe.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}

// KeySeparator separa os segmentos das chaves do store. O tenant é sempre o
// segundo segmento, então ele não pode conter o separador: com "acme:team"
// aceito, idem:acme:team:k seria a mesma chave de (acme, "team:k").
const KeySeparator = ":"

// ValidateTenantID rejeita tenant vazio ou com o separador de chaves.
func ValidateTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return Wrap(CodeInvalidInput, "tenant id is required", nil)
	}
	if strings.Contains(tenantID, KeySeparator) {
		return Wrap(CodeInvalidInput, "tenant id must not contain '"+KeySeparator+"'", nil)
	}
	return nil
}

// Layout das chaves no store.
func IdempotencyKey(tenantID, idempotencyKey string) string {
	return "idem:" + tenantID + ":" + idempotencyKey
}

func RateWindowKey(tenantID string, windowID int64) string {
	return "rate:" + tenantID + ":" + formatInt64(windowID)
}
