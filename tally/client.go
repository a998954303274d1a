package tally

import (
	"context"
	"encoding/json"
	"fmt"

	"vote-tally/tally/domain"
)

// Tally é uma resposta de apuração decodificada.
type Tally struct {
	Snapshot domain.TallySnapshot
	// Instance é o agregador que respondeu, quando informado.
	Instance string
}

// CastVote publica um evento "cast vote" para o candidato.
func CastVote(ctx context.Context, bus domain.Bus, subject string, id domain.CandidateID) error {
	return bus.Publish(ctx, orDefault(subject, DefaultCastSubject), id.Payload())
}

// FetchTally faz o request de apuração e decodifica a primeira resposta.
func FetchTally(ctx context.Context, bus domain.Bus, subject string) (Tally, error) {
	reply, err := bus.Request(ctx, orDefault(subject, DefaultTallySubject), nil)
	if err != nil {
		return Tally{}, err
	}
	snap, err := DecodeTally(reply.Data)
	if err != nil {
		return Tally{}, err
	}
	return Tally{Snapshot: snap, Instance: reply.Header[InstanceHeader]}, nil
}

// DecodeTally lê o JSON {"Candidate-<id>": contagem}.
func DecodeTally(data []byte) (domain.TallySnapshot, error) {
	snap := domain.TallySnapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode tally: %w", err)
	}
	return snap, nil
}
