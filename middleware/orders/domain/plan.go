package domain

import (
	"strings"
	"time"
)

// Tier é o plano de assinatura de um tenant.
//
// TierUnknown é um caso explícito (tenant não cadastrado) e sempre recebe a
// cota mais restritiva; não existe fallthrough silencioso.
type Tier int

const (
	TierUnknown Tier = iota
	TierFree
	TierPro
	TierEnterprise
)

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPro:
		return "pro"
	case TierEnterprise:
		return "enterprise"
	default:
		return "unknown"
	}
}

// ParseTier converte o nome do plano; nomes desconhecidos viram TierUnknown.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return TierFree
	case "pro":
		return TierPro
	case "enterprise":
		return TierEnterprise
	default:
		return TierUnknown
	}
}

// Quota é o par (maxRequests, windowDuration) de um plano.
type Quota struct {
	MaxRequests int
	Window      time.Duration
}

// QuotaTable mapeia cada plano conhecido para sua cota.
type QuotaTable map[Tier]Quota

// DefaultQuotas são as cotas padrão (janela fixa de 10s).
func DefaultQuotas() QuotaTable {
	return QuotaTable{
		TierFree:       {MaxRequests: 5, Window: 10 * time.Second},
		TierPro:        {MaxRequests: 20, Window: 10 * time.Second},
		TierEnterprise: {MaxRequests: 100, Window: 10 * time.Second},
	}
}

// For é total: TierUnknown (ou um plano sem cota) recebe a cota mais restritiva.
func (q QuotaTable) For(t Tier) Quota {
	if t != TierUnknown {
		if quota, ok := q[t]; ok {
			return quota
		}
	}
	return q.Strictest()
}

// Strictest retorna a cota com menor taxa (requests por segundo).
func (q QuotaTable) Strictest() Quota {
	var best Quota
	found := false
	for _, quota := range q {
		if quota.MaxRequests <= 0 || quota.Window <= 0 {
			continue
		}
		if !found || rateOf(quota) < rateOf(best) {
			best = quota
			found = true
		}
	}
	if !found {
		return DefaultQuotas()[TierFree]
	}
	return best
}

func rateOf(q Quota) float64 { return float64(q.MaxRequests) / q.Window.Seconds() }

// PlanResolver é uma função total de tenant para plano.
type PlanResolver interface {
	Resolve(tenantID string) Tier
}

// PlanResolverFunc adapta uma função comum.
type PlanResolverFunc func(tenantID string) Tier

func (f PlanResolverFunc) Resolve(tenantID string) Tier { return f(tenantID) }
