package application

import (
	"context"
	"log/slog"
	"time"

	"orders-gateway/middleware/orders/domain"
)

// AdmissionController aplica a cota do plano do tenant em janela fixa.
//
// O contador vive no store compartilhado (rate:{tenant}:{janela}); nada aqui
// guarda estado entre requisições.
type AdmissionController struct {
	Store  domain.KV
	Plans  domain.PlanResolver
	Quotas domain.QuotaTable
	// FailureMode é a política explícita para store indisponível (padrão FailClosed).
	FailureMode domain.FailureMode

	Now     func() time.Time
	Logger  *slog.Logger
	Metrics domain.Metrics
}

// TryAdmit conta a requisição na janela atual do tenant e decide.
//
// Com o store fora: FailClosed devolve erro CodeStoreUnavailable (negado);
// FailOpen devolve uma decisão admitida com Degraded=true.
func (c *AdmissionController) TryAdmit(ctx context.Context, tenantID string) (domain.Decision, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return domain.Decision{}, err
	}

	tier := domain.TierUnknown
	if c.Plans != nil {
		tier = c.Plans.Resolve(tenantID)
	}
	quotas := c.Quotas
	if quotas == nil {
		quotas = domain.DefaultQuotas()
	}
	quota := quotas.For(tier)

	now := c.now()
	start, end := windowBounds(now, quota.Window)
	dec := domain.Decision{
		Limit:   quota.MaxRequests,
		Tier:    tier,
		ResetAt: end,
	}

	count, err := c.Store.IncrementWithExpiry(ctx, domain.RateWindowKey(tenantID, start.Unix()), quota.Window)
	if err != nil {
		c.metrics().ObserveStoreError("admission")
		if c.FailureMode == domain.FailOpen {
			c.logger().Warn("admission store unavailable, admitting without counting",
				"tenant", tenantID, "tier", tier.String(), "err", err)
			c.metrics().ObserveAdmission(tier, "degraded")
			dec.Allowed = true
			dec.Degraded = true
			return dec, nil
		}
		c.logger().Error("admission store unavailable, denying",
			"tenant", tenantID, "tier", tier.String(), "err", err)
		c.metrics().ObserveAdmission(tier, "error")
		return dec, asStoreUnavailable("admission", err)
	}

	if count > int64(quota.MaxRequests) {
		dec.RetryAfter = retryAfter(now, end)
		c.metrics().ObserveAdmission(tier, "denied")
		return dec, nil
	}

	dec.Allowed = true
	dec.Remaining = quota.MaxRequests - int(count)
	c.metrics().ObserveAdmission(tier, "allowed")
	return dec, nil
}

// windowBounds trunca now para o início da janela fixa (alinhada ao epoch Unix).
func windowBounds(now time.Time, window time.Duration) (time.Time, time.Time) {
	if window <= 0 {
		window = time.Second
	}
	id := now.UnixNano() / int64(window)
	start := time.Unix(0, id*int64(window))
	return start, start.Add(window)
}

// retryAfter é o tempo até o fim da janela, em segundos inteiros (mínimo 1s).
func retryAfter(now, end time.Time) time.Duration {
	secs := domain.CeilSeconds(end.Sub(now))
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func (c *AdmissionController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *AdmissionController) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *AdmissionController) metrics() domain.Metrics {
	if c.Metrics != nil {
		return c.Metrics
	}
	return domain.NopMetrics{}
}

// asStoreUnavailable mantém erros já etiquetados e etiqueta o resto.
func asStoreUnavailable(op string, err error) error {
	if domain.CodeOf(err) != "" {
		return err
	}
	return domain.StoreUnavailable(op, err)
}
