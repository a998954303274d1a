package domain

import (
	"context"
	"time"
)

// StatsEvent representa o resultado do processamento de um voto por um worker.
//
// Observação: cuidado com cardinalidade ao rastrear por candidato.
type StatsEvent struct {
	Worker    string
	Candidate CandidateID
	Applied   bool

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas dos workers.
// Quem chama trata erro como best-effort (não derruba o processamento).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
