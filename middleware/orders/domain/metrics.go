package domain

import "time"

// Metrics recebe observações do núcleo. Implementações não podem bloquear.
type Metrics interface {
	// outcome: allowed, denied, degraded, error
	ObserveAdmission(tier Tier, outcome string)
	// outcome: created, replayed, conflict, error
	ObserveIdempotency(outcome string, waited time.Duration)
	ObserveStoreError(component string)
}

type NopMetrics struct{}

func (NopMetrics) ObserveAdmission(Tier, string)            {}
func (NopMetrics) ObserveIdempotency(string, time.Duration) {}
func (NopMetrics) ObserveStoreError(string)                 {}
