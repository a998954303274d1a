package infra

import (
	"context"

	"vote-tally/tally/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool simples baseado em channel com capacidade `max`.
func NewChanPool(max int) domain.SlotPool {
	if max <= 0 {
		max = 1
	}
	return &chanPool{sem: make(chan struct{}, max)}
}

// NewProcessLock cria o lock de exclusão mútua do processo (pool de 1 vaga).
// Deve ser criado uma vez no início do processo e compartilhado por todos os workers.
func NewProcessLock() domain.SlotPool {
	return NewChanPool(1)
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
