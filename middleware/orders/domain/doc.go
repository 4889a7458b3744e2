// Package domain define contratos e tipos de domínio para pedidos idempotentes,
// cotas por tenant e limite de concorrência.
//
// Este pacote não depende de net/http, do Redis nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura.
package domain
