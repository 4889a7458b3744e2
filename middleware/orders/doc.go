// Package orders fornece o adapter HTTP (chi + net/http) para criação idempotente
// de pedidos com cota por tenant.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (admissão, claim idempotente, coordenação) sem net/http
//   - infra: implementações concretas (Redis, bolt, planos YAML, Prometheus, token bucket local)
//   - orders (este pacote): pipeline de validação, handlers, tradução de erros para problem+json
//
// Fluxo de um POST /v1/orders:
//
//  1. Pipeline de validadores (tenant, auth, Idempotency-Key, escudo local)
//  2. Corpo validado (422 em caso de erro)
//  3. WriteCoordinator: admissão no store compartilhado e claim da chave
//  4. 201 com o pedido novo ou 200 com os bytes gravados na primeira criação
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como REDIS_ADDR, AUTH_MODE, ADMISSION_FAILURE_MODE e CONCURRENCY_MAX.
package orders
