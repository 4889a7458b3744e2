package domain

// Camada de domínio da admissão por tenant.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Usado apenas pelo escudo local por instância (token bucket); a cota real do
// tenant é sempre decidida no store compartilhado.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: tenant).
type LimiterStore interface {
	Get(Key) Limiter
}

// FailureMode define o que a admissão faz quando o store está indisponível.
type FailureMode int

const (
	// FailClosed nega a requisição (padrão; protege o backend).
	FailClosed FailureMode = iota
	// FailOpen admite a requisição sem contar (decisão marcada como Degraded).
	FailOpen
)

func (m FailureMode) String() string {
	if m == FailOpen {
		return "open"
	}
	return "closed"
}

// ParseFailureMode aceita "closed" e "open".
func ParseFailureMode(s string) (FailureMode, bool) {
	switch s {
	case "", "closed":
		return FailClosed, true
	case "open":
		return FailOpen, true
	default:
		return FailClosed, false
	}
}

type Decision struct {
	Allowed bool
	// Remaining é max - contador quando admitido; 0 quando negado.
	Remaining int
	Limit     int
	Tier      Tier
	// RetryAfter é o tempo até o fim da janela atual quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	ResetAt    time.Time
	// Degraded indica admissão sem contagem (store fora + FailOpen).
	Degraded bool
}

// RetryAfterSeconds arredonda para cima, com mínimo de 1s quando há espera.
func (d Decision) RetryAfterSeconds() int {
	return CeilSeconds(d.RetryAfter)
}

// CeilSeconds converte para segundos inteiros arredondando para cima.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
