package application

import (
	"context"
	"fmt"

	"vote-tally/tally/domain"
)

// AggregateService monta o snapshot de apuração varrendo o store inteiro.
//
// O snapshot NÃO é uma visão atômica: as chaves são listadas e lidas uma a uma,
// então um voto aplicado durante a varredura pode ou não aparecer.
type AggregateService struct {
	Store domain.CounterStore
}

// Snapshot devolve rótulo -> contagem de todos os candidatos.
// Qualquer erro (inclusive chave que sumiu entre listar e ler) aborta o snapshot
// inteiro; nunca devolve um mapa parcial.
func (s AggregateService) Snapshot(ctx context.Context) (domain.TallySnapshot, error) {
	if s.Store == nil {
		return nil, ErrNoStore
	}

	snap := domain.TallySnapshot{}
	for key, err := range s.Store.Keys(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list keys: %w", err)
		}
		id, err := domain.CandidateFromKey(key)
		if err != nil {
			return nil, err
		}
		raw, err := s.Store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		count, err := domain.DecodeCount(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		snap[id.Label()] = count
	}
	return snap, nil
}
