package domain

import "context"

// SlotPool limita quantas requisições uma instância processa ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar; ao adquirir,
// devolve um release que deve ser chamado exatamente uma vez.
// É proteção local da instância e não tem relação com a cota do tenant.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
