package infra

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"orders-gateway/middleware/orders/domain"

	"gopkg.in/yaml.v3"
)

// PlanDirectory é o mapeamento tenant -> plano (estático ou de mudança lenta).
//
// Resolve é total: tenant ausente devolve domain.TierUnknown, que a tabela de
// cotas trata como o plano mais restritivo.
type PlanDirectory struct {
	mu      sync.RWMutex
	tenants map[string]domain.Tier
}

func NewPlanDirectory(tenants map[string]domain.Tier) *PlanDirectory {
	d := &PlanDirectory{}
	d.Replace(tenants)
	return d
}

// DefaultPlanDirectory traz os tenants de demonstração.
func DefaultPlanDirectory() *PlanDirectory {
	return NewPlanDirectory(map[string]domain.Tier{
		"tenant-A": domain.TierFree,
		"tenant-B": domain.TierPro,
		"tenant-C": domain.TierEnterprise,
	})
}

func (d *PlanDirectory) Resolve(tenantID string) domain.Tier {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if t, ok := d.tenants[tenantID]; ok {
		return t
	}
	return domain.TierUnknown
}

// Replace troca o mapeamento inteiro (ex.: recarga do arquivo de planos).
func (d *PlanDirectory) Replace(tenants map[string]domain.Tier) {
	cp := make(map[string]domain.Tier, len(tenants))
	for k, v := range tenants {
		cp[k] = v
	}
	d.mu.Lock()
	d.tenants = cp
	d.mu.Unlock()
}

// PlansFile é o formato YAML de PLANS_FILE:
//
//	quotas:
//	  free:       {max_requests: 5, window: 10s}
//	  pro:        {max_requests: 20, window: 10s}
//	  enterprise: {max_requests: 100, window: 10s}
//	tenants:
//	  tenant-A: free
//	  tenant-B: pro
type PlansFile struct {
	Quotas  map[string]QuotaSpec `yaml:"quotas"`
	Tenants map[string]string    `yaml:"tenants"`
}

type QuotaSpec struct {
	MaxRequests int    `yaml:"max_requests"`
	Window      string `yaml:"window"`
}

// LoadPlansFile lê o arquivo e devolve o diretório e a tabela de cotas.
// Quotas omitidas no arquivo mantêm o valor padrão.
func LoadPlansFile(path string) (*PlanDirectory, domain.QuotaTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read plans file: %w", err)
	}
	return ParsePlans(raw)
}

func ParsePlans(raw []byte) (*PlanDirectory, domain.QuotaTable, error) {
	var f PlansFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("parse plans: %w", err)
	}

	quotas := domain.DefaultQuotas()
	for name, spec := range f.Quotas {
		tier := domain.ParseTier(name)
		if tier == domain.TierUnknown {
			return nil, nil, fmt.Errorf("plans: unknown tier %q in quotas", name)
		}
		window, err := time.ParseDuration(strings.TrimSpace(spec.Window))
		if err != nil {
			return nil, nil, fmt.Errorf("plans: tier %s: invalid window %q: %w", name, spec.Window, err)
		}
		if window < time.Second || window%time.Second != 0 {
			return nil, nil, fmt.Errorf("plans: tier %s: window must be whole seconds >= 1s, got %s", name, window)
		}
		if spec.MaxRequests <= 0 {
			return nil, nil, fmt.Errorf("plans: tier %s: max_requests must be > 0", name)
		}
		quotas[tier] = domain.Quota{MaxRequests: spec.MaxRequests, Window: window}
	}

	tenants := make(map[string]domain.Tier, len(f.Tenants))
	for tenant, name := range f.Tenants {
		tier := domain.ParseTier(name)
		if tier == domain.TierUnknown {
			return nil, nil, fmt.Errorf("plans: tenant %s: unknown tier %q", tenant, name)
		}
		tenants[tenant] = tier
	}
	return NewPlanDirectory(tenants), quotas, nil
}
