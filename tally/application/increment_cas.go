package application

import (
	"context"
	"errors"
	"fmt"

	"vote-tally/tally/domain"
)

// CASIncrementService incrementa sem lock de processo: lê valor+revisão e só grava
// se a revisão não mudou, repetindo em caso de conflito. Seguro com qualquer número
// de processos apontando para o mesmo store.
type CASIncrementService struct {
	Store       domain.VersionedStore
	MaxAttempts int
}

func (s CASIncrementService) Apply(ctx context.Context, id domain.CandidateID) (domain.VoteCount, error) {
	if s.Store == nil {
		return 0, ErrNoStore
	}
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultCASAttempts
	}

	key := id.Key()
	for range attempts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		next, err := s.try(ctx, key)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		return next, err
	}
	return 0, fmt.Errorf("increment %s: %w after %d attempts", key, domain.ErrConflict, attempts)
}

func (s CASIncrementService) try(ctx context.Context, key string) (domain.VoteCount, error) {
	entry, err := s.Store.Entry(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		if _, err := s.Store.Create(ctx, key, domain.EncodeCount(1)); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}

	count, err := domain.DecodeCount(entry.Value)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	next, err := count.Next()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	if _, err := s.Store.Update(ctx, key, domain.EncodeCount(next), entry.Revision); err != nil {
		return 0, err
	}
	return next, nil
}
