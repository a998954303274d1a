package infra

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"iter"
	"time"

	"vote-tally/tally/domain"

	bolt "go.etcd.io/bbolt"
)

var revisionsBucket = []byte("revisions")

// BoltCounterStore é um CounterStore local e durável em arquivo (bbolt).
// Cada escrita grava o valor e uma revisão (NextSequence do bucket de revisões),
// o que permite compare-and-swap dentro de uma única transação Update.
type BoltCounterStore struct {
	db       *bolt.DB
	bucket   []byte
	pageSize int
}

type BoltStoreOption func(*BoltCounterStore)

func WithBoltBucket(name string) BoltStoreOption {
	return func(s *BoltCounterStore) { s.bucket = []byte(name) }
}

// WithPageSize define quantas chaves cada transação de leitura entrega em Keys.
func WithPageSize(n int) BoltStoreOption {
	return func(s *BoltCounterStore) { s.pageSize = n }
}

func OpenBoltCounterStore(path string, opts ...BoltStoreOption) (*BoltCounterStore, error) {
	s := &BoltCounterStore{
		bucket:   []byte("votes"),
		pageSize: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pageSize <= 0 {
		s.pageSize = 256
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(revisionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *BoltCounterStore) Close() error { return s.db.Close() }

func (s *BoltCounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := s.Entry(ctx, key)
	return e.Value, err
}

func (s *BoltCounterStore) Entry(ctx context.Context, key string) (domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entry{}, err
	}
	var e domain.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		// valores do bbolt só valem dentro da transação
		e.Value = append([]byte(nil), v...)
		e.Revision = readRevision(tx, key)
		return nil
	})
	return e, err
}

func (s *BoltCounterStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := s.write(tx, key, value)
		return err
	})
}

func (s *BoltCounterStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var rev uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket).Get([]byte(key)) != nil {
			return fmt.Errorf("%w: %s already exists", domain.ErrConflict, key)
		}
		var err error
		rev, err = s.write(tx, key, value)
		return err
	})
	return rev, err
}

func (s *BoltCounterStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var rev uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket).Get([]byte(key)) == nil || readRevision(tx, key) != revision {
			return fmt.Errorf("%w: %s moved past revision %d", domain.ErrConflict, key, revision)
		}
		var err error
		rev, err = s.write(tx, key, value)
		return err
	})
	return rev, err
}

func (s *BoltCounterStore) write(tx *bolt.Tx, key string, value []byte) (uint64, error) {
	revs := tx.Bucket(revisionsBucket)
	rev, err := revs.NextSequence()
	if err != nil {
		return 0, err
	}
	if err := tx.Bucket(s.bucket).Put([]byte(key), value); err != nil {
		return 0, err
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, rev)
	if err := revs.Put([]byte(key), b); err != nil {
		return 0, err
	}
	return rev, nil
}

func readRevision(tx *bolt.Tx, key string) uint64 {
	b := tx.Bucket(revisionsBucket).Get([]byte(key))
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Keys lê as chaves em páginas, uma transação de leitura por página, para não
// segurar uma transação aberta enquanto o consumidor processa cada chave.
func (s *BoltCounterStore) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var after []byte
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			page, err := s.page(after)
			if err != nil {
				yield("", err)
				return
			}
			for _, k := range page {
				if !yield(k, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			after = []byte(page[len(page)-1])
		}
	}
}

func (s *BoltCounterStore) page(after []byte) ([]string, error) {
	keys := make([]string, 0, s.pageSize)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		var k []byte
		if after == nil {
			k, _ = c.First()
		} else {
			k, _ = c.Seek(after)
			if k != nil && bytes.Equal(k, after) {
				k, _ = c.Next()
			}
		}
		for ; k != nil && len(keys) < s.pageSize; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}
