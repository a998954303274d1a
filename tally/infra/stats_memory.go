package infra

import (
	"context"
	"sync"

	"vote-tally/tally/domain"
)

type Counters struct {
	Applied int64
	Failed  int64
}

func (c *Counters) add(applied bool) {
	if applied {
		c.Applied++
		return
	}
	c.Failed++
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu          sync.Mutex
	total       Counters
	byWorker    map[string]Counters
	byCandidate map[domain.CandidateID]Counters

	trackCandidates bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackCandidates(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackCandidates = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byWorker:    make(map[string]Counters),
		byCandidate: make(map[domain.CandidateID]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Applied)
	w := s.byWorker[ev.Worker]
	w.add(ev.Applied)
	s.byWorker[ev.Worker] = w
	if s.trackCandidates {
		c := s.byCandidate[ev.Candidate]
		c.add(ev.Applied)
		s.byCandidate[ev.Candidate] = c
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByWorker() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byWorker))
	for k, v := range s.byWorker {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByCandidate() map[domain.CandidateID]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.CandidateID]Counters, len(s.byCandidate))
	for k, v := range s.byCandidate {
		out[k] = v
	}
	return out
}
