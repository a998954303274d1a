package application

import (
	"context"
	"errors"
	"fmt"

	"vote-tally/tally/domain"
)

var (
	ErrNoStore         = errors.New("increment: counter store not configured")
	ErrNoLock          = errors.New("increment: lock not configured")
	ErrLockNotAcquired = errors.New("increment: lock not acquired")
)

// DefaultCASAttempts é o limite de tentativas do CASIncrementService quando
// MaxAttempts <= 0.
const DefaultCASAttempts = 64

// Incrementer aplica exatamente um +1 na contagem de um candidato.
type Incrementer interface {
	Apply(ctx context.Context, id domain.CandidateID) (domain.VoteCount, error)
}

// IncrementService faz o read-modify-write dentro de uma seção crítica.
//
// Lock deve ser o MESMO SlotPool (capacidade 1) para todos os workers do processo:
// é ele que serializa os incrementos. Ele não serializa outro processo apontando
// para o mesmo store; para isso use CASIncrementService.
type IncrementService struct {
	Store domain.CounterStore
	Lock  domain.SlotPool
}

// Apply entra na seção crítica, lê a contagem atual e grava count+1.
// Chave inexistente é o primeiro voto: grava 1.
// O lock é liberado em todos os caminhos de saída, inclusive erro.
func (s IncrementService) Apply(ctx context.Context, id domain.CandidateID) (domain.VoteCount, error) {
	if s.Store == nil {
		return 0, ErrNoStore
	}
	if s.Lock == nil {
		return 0, ErrNoLock
	}

	release, ok := s.Lock.Acquire(ctx)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrLockNotAcquired, context.Cause(ctx))
	}
	defer release()

	return incrementLocked(ctx, s.Store, id.Key())
}

func incrementLocked(ctx context.Context, store domain.CounterStore, key string) (domain.VoteCount, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		if err := store.Put(ctx, key, domain.EncodeCount(1)); err != nil {
			return 0, fmt.Errorf("put %s: %w", key, err)
		}
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}

	count, err := domain.DecodeCount(raw)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	next, err := count.Next()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	if err := store.Put(ctx, key, domain.EncodeCount(next)); err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	return next, nil
}
