package application

import (
	"context"
	"errors"
	"iter"
	"runtime"
	"sort"
	"sync"

	"vote-tally/tally/domain"
)

type fakeEntry struct {
	value []byte
	rev   uint64
}

// fakeStore é um CounterStore/VersionedStore em memória com ganchos de falha.
// Get e Put são atômicos individualmente, mas o read-modify-write não é.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string]fakeEntry
	rev     uint64
	failGet func(key string) error
	failPut func(key string) error
	onKey   func(key string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]fakeEntry)}
}

func (s *fakeStore) seed(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rev++
	s.data[key] = fakeEntry{value: value, rev: s.rev}
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := s.Entry(ctx, key)
	return e.Value, err
}

func (s *fakeStore) Entry(_ context.Context, key string) (domain.Entry, error) {
	if s.failGet != nil {
		if err := s.failGet(key); err != nil {
			return domain.Entry{}, err
		}
	}
	s.mu.Lock()
	e, ok := s.data[key]
	s.mu.Unlock()
	// abre espaço para outra goroutine entrar entre a leitura e a escrita
	runtime.Gosched()
	if !ok {
		return domain.Entry{}, domain.ErrNotFound
	}
	return domain.Entry{Value: append([]byte(nil), e.value...), Revision: e.rev}, nil
}

func (s *fakeStore) Put(_ context.Context, key string, value []byte) error {
	if s.failPut != nil {
		if err := s.failPut(key); err != nil {
			return err
		}
	}
	s.seed(key, append([]byte(nil), value...))
	return nil
}

func (s *fakeStore) Create(_ context.Context, key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return 0, domain.ErrConflict
	}
	s.rev++
	s.data[key] = fakeEntry{value: append([]byte(nil), value...), rev: s.rev}
	return s.rev, nil
}

func (s *fakeStore) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok || e.rev != revision {
		return 0, domain.ErrConflict
	}
	s.rev++
	s.data[key] = fakeEntry{value: append([]byte(nil), value...), rev: s.rev}
	return s.rev, nil
}

func (s *fakeStore) Keys(_ context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		keys := make([]string, 0, len(s.data))
		for k := range s.data {
			keys = append(keys, k)
		}
		s.mu.Unlock()
		sort.Strings(keys)
		for _, k := range keys {
			if s.onKey != nil {
				s.onKey(k)
			}
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (s *fakeStore) count(key string) domain.VoteCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := domain.DecodeCount(s.data[key].value)
	if err != nil {
		return 0
	}
	return c
}

// chanLock é um SlotPool de capacidade 1.
type chanLock chan struct{}

func newChanLock() chanLock { return make(chanLock, 1) }

func (l chanLock) Acquire(ctx context.Context) (func(), bool) {
	select {
	case l <- struct{}{}:
		return func() { <-l }, true
	case <-ctx.Done():
		return nil, false
	}
}

var errStoreDown = errors.New("store down")
