package domain

import "context"

// SlotPool representa um recurso com capacidade finita.
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
// Com capacidade 1 é o lock de exclusão mútua compartilhado pelos workers.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
