package infra

import (
	"context"
	"iter"
	"sort"
	"sync"

	"vote-tally/tally/domain"
)

// MemoryCounterStore é um VersionedStore em memória.
// Útil para testes e desenvolvimento; não é durável.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	rev     uint64

	fault func(op, key string) error
}

type memoryEntry struct {
	value []byte
	rev   uint64
}

type MemoryStoreOption func(*MemoryCounterStore)

// WithFault injeta falhas: fn é chamada antes de cada operação ("get", "put",
// "create", "update") e, se devolver erro, a operação falha com ele.
func WithFault(fn func(op, key string) error) MemoryStoreOption {
	return func(s *MemoryCounterStore) { s.fault = fn }
}

func NewMemoryCounterStore(opts ...MemoryStoreOption) *MemoryCounterStore {
	s := &MemoryCounterStore{entries: make(map[string]memoryEntry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryCounterStore) check(op, key string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, key)
}

func (s *MemoryCounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := s.entry(ctx, "get", key)
	return e.Value, err
}

func (s *MemoryCounterStore) Entry(ctx context.Context, key string) (domain.Entry, error) {
	return s.entry(ctx, "get", key)
}

func (s *MemoryCounterStore) entry(ctx context.Context, op, key string) (domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entry{}, err
	}
	if err := s.check(op, key); err != nil {
		return domain.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return domain.Entry{}, domain.ErrNotFound
	}
	return domain.Entry{Value: append([]byte(nil), e.value...), Revision: e.rev}, nil
}

func (s *MemoryCounterStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.check("put", key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeLocked(key, value)
	return nil
}

func (s *MemoryCounterStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.check("create", key); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return 0, domain.ErrConflict
	}
	return s.storeLocked(key, value), nil
}

func (s *MemoryCounterStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.check("update", key); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; !ok || e.rev != revision {
		return 0, domain.ErrConflict
	}
	return s.storeLocked(key, value), nil
}

func (s *MemoryCounterStore) storeLocked(key string, value []byte) uint64 {
	s.rev++
	s.entries[key] = memoryEntry{value: append([]byte(nil), value...), rev: s.rev}
	return s.rev
}

// Keys lista as chaves existentes no momento da chamada, em ordem.
func (s *MemoryCounterStore) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}
		s.mu.Lock()
		keys := make([]string, 0, len(s.entries))
		for k := range s.entries {
			keys = append(keys, k)
		}
		s.mu.Unlock()
		sort.Strings(keys)

		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Delete remove a chave fora do fluxo de votos (manutenção). Pode ser chamado
// de dentro do hook de WithFault: o hook roda sem o mutex travado.
func (s *MemoryCounterStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
