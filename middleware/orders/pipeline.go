package orders

import (
	"net/http"
	"strings"
	"time"

	"orders-gateway/middleware/orders/application"
	"orders-gateway/middleware/orders/domain"
)

const (
	HeaderTenantID       = "X-Tenant-Id"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderAuthorization  = "Authorization"
)

// OutcomeKind etiqueta o resultado de um validador.
type OutcomeKind int

const (
	Allow OutcomeKind = iota
	RejectMissingTenant
	RejectUnauthorized
	RejectForbidden
	RejectMissingIdempotencyKey
	RejectShielded
	RejectInvalidTenant
)

// Outcome é o resultado de um validador: Allow ou uma rejeição específica.
type Outcome struct {
	Kind       OutcomeKind
	Detail     string
	RetryAfter time.Duration
}

func allow() Outcome { return Outcome{Kind: Allow} }

// Status é o status HTTP de uma rejeição (200 para Allow).
func (o Outcome) Status() int {
	switch o.Kind {
	case RejectMissingTenant, RejectInvalidTenant, RejectMissingIdempotencyKey:
		return http.StatusBadRequest
	case RejectUnauthorized:
		return http.StatusUnauthorized
	case RejectForbidden:
		return http.StatusForbidden
	case RejectShielded:
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

func (o Outcome) code() string {
	switch o.Kind {
	case RejectMissingTenant:
		return "missing-tenant"
	case RejectInvalidTenant:
		return "invalid-tenant"
	case RejectUnauthorized:
		return "unauthorized"
	case RejectForbidden:
		return "forbidden"
	case RejectMissingIdempotencyKey:
		return "missing-idempotency-key"
	case RejectShielded:
		return "rate-limited"
	default:
		return ""
	}
}

// Validator é uma etapa do pipeline de cabeçalhos.
type Validator interface {
	Validate(r *http.Request) Outcome
}

type ValidatorFunc func(r *http.Request) Outcome

func (f ValidatorFunc) Validate(r *http.Request) Outcome { return f(r) }

// Pipeline roda os validadores em ordem e para na primeira rejeição.
type Pipeline []Validator

func (p Pipeline) Run(r *http.Request) Outcome {
	for _, v := range p {
		if out := v.Validate(r); out.Kind != Allow {
			return out
		}
	}
	return allow()
}

// Middleware responde a primeira rejeição como problem+json.
func (p Pipeline) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if out := p.Run(r); out.Kind != Allow {
				writeProblem(w, r, out.Status(), out.code(), out.Detail, out.RetryAfter, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tenantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderTenantID))
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
}

func RequireTenant() Validator {
	return ValidatorFunc(func(r *http.Request) Outcome {
		tenant := tenantID(r)
		if tenant == "" {
			return Outcome{Kind: RejectMissingTenant, Detail: "X-Tenant-Id header required."}
		}
		if domain.ValidateTenantID(tenant) != nil {
			return Outcome{Kind: RejectInvalidTenant, Detail: "X-Tenant-Id must not contain '" + domain.KeySeparator + "'."}
		}
		return allow()
	})
}

// RequireAuth exige "Authorization: Bearer <token>" e delega a validação do
// token ao Authenticator (nil aceita qualquer bearer).
func RequireAuth(auth Authenticator) Validator {
	if auth == nil {
		auth = AcceptAnyBearer()
	}
	return ValidatorFunc(func(r *http.Request) Outcome {
		token, ok := bearerToken(r.Header.Get(HeaderAuthorization))
		if !ok {
			return Outcome{Kind: RejectUnauthorized, Detail: "Missing or invalid Authorization header."}
		}
		if err := auth.Authenticate(token, tenantID(r)); err != nil {
			kind := RejectForbidden
			if domain.CodeOf(err) == domain.CodeUnauthorized {
				kind = RejectUnauthorized
			}
			return Outcome{Kind: kind, Detail: messageOf(err)}
		}
		return allow()
	})
}

func RequireIdempotencyKey() Validator {
	return ValidatorFunc(func(r *http.Request) Outcome {
		if idempotencyKey(r) == "" {
			return Outcome{Kind: RejectMissingIdempotencyKey, Detail: "Idempotency-Key header required."}
		}
		return allow()
	})
}

// Shield consulta o token bucket local da instância antes do store
// compartilhado. Store nil desliga a etapa.
func Shield(store domain.LimiterStore) Validator {
	svc := application.ShieldService{Store: store}
	return ValidatorFunc(func(r *http.Request) Outcome {
		if store == nil {
			return allow()
		}
		dec := svc.Decide(domain.Key(tenantID(r)))
		if !dec.Allowed {
			return Outcome{Kind: RejectShielded, Detail: "Too many requests.", RetryAfter: dec.RetryAfter}
		}
		return allow()
	})
}
