// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisStore: domain.KV sobre Redis (SET NX, GET, SET EX, Lua para INCR+EXPIRE)
//   - PlanDirectory / LoadPlansFile: planos por tenant em YAML
//   - RedisOrderRepository: registro dos pedidos no Redis compartilhado (padrão)
//   - BoltOrderRepository: registro em arquivo local (bbolt), só para uma instância
//   - RedisStatsStore / MemoryStatsStore: contadores best-effort de decisões
//   - Metrics: Prometheus
//   - Shield: token bucket local por tenant usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
package infra
