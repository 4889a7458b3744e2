// Package application contém os casos de uso do gateway de pedidos:
// admissão por tenant, cache de idempotência e o coordenador de escrita.
//
// Ele depende apenas do pacote domain e não conhece net/http nem Redis.
// Ex.: WriteCoordinator.HandleCreate(...) devolve o pedido e se ele é novo ou replay.
package application
