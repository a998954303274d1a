package infra

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"vote-tally/tally/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore guarda cada contagem como string binária de 4 bytes em
// `<prefix>:<candidato>`. Não usa INCR de propósito: o valor segue o mesmo
// formato dos outros stores e o incremento fica a cargo da camada application.
//
// Também é um VersionedStore: cada escrita faz INCR em `<prefix>#rev:<candidato>`
// na mesma transação, e Create/Update usam WATCH + MULTI sobre as duas chaves.
// O padrão do SCAN (`<prefix>:*`) não enxerga as chaves de revisão.
type RedisCounterStore struct {
	rdb *redis.Client

	prefix    string
	scanCount int64
}

type RedisStoreOption func(*RedisCounterStore)

func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisCounterStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// WithScanCount é a dica de COUNT passada ao SCAN em cada página.
func WithScanCount(n int64) RedisStoreOption {
	return func(s *RedisCounterStore) { s.scanCount = n }
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:       rdb,
		prefix:    "votes",
		scanCount: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) key(k string) string { return s.prefix + ":" + k }

func (s *RedisCounterStore) revKey(k string) string { return s.prefix + "#rev:" + k }

func (s *RedisCounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *RedisCounterStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(key), value, 0)
		p.Incr(ctx, s.revKey(key))
		return nil
	})
	return err
}

// Entry lê valor e revisão numa única transação.
func (s *RedisCounterStore) Entry(ctx context.Context, key string) (domain.Entry, error) {
	var (
		val *redis.StringCmd
		rev *redis.StringCmd
	)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		val = p.Get(ctx, s.key(key))
		rev = p.Get(ctx, s.revKey(key))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Entry{}, err
	}

	b, err := val.Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Entry{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return domain.Entry{}, err
	}
	r, err := readRev(rev)
	if err != nil {
		return domain.Entry{}, err
	}
	return domain.Entry{Value: b, Revision: r}, nil
}

func (s *RedisCounterStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	vk := s.key(key)
	var rev uint64
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, vk).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s already exists", domain.ErrConflict, key)
		}
		rev, err = s.write(ctx, tx, key, value)
		return err
	}, vk)
	return rev, casError(err, key)
}

func (s *RedisCounterStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	vk, rk := s.key(key), s.revKey(key)
	var rev uint64
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, vk).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s does not exist", domain.ErrConflict, key)
		}
		cur, err := readRev(tx.Get(ctx, rk))
		if err != nil {
			return err
		}
		if cur != revision {
			return fmt.Errorf("%w: %s moved past revision %d", domain.ErrConflict, key, revision)
		}
		rev, err = s.write(ctx, tx, key, value)
		return err
	}, vk, rk)
	return rev, casError(err, key)
}

// write grava valor + nova revisão no MULTI/EXEC da transação observada.
func (s *RedisCounterStore) write(ctx context.Context, tx *redis.Tx, key string, value []byte) (uint64, error) {
	var incr *redis.IntCmd
	_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(key), value, 0)
		incr = p.Incr(ctx, s.revKey(key))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// readRev trata revisão ausente como 0 (valor gravado antes das revisões).
func readRev(cmd *redis.StringCmd) (uint64, error) {
	r, err := cmd.Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return r, err
}

// casError traduz a transação abortada pelo WATCH em ErrConflict.
func casError(err error, key string) error {
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s changed during transaction", domain.ErrConflict, key)
	}
	return err
}

// Keys percorre o keyspace com SCAN, página por página.
// SCAN pode repetir uma chave; quem consome deve tolerar isso.
func (s *RedisCounterStore) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		it := s.rdb.Scan(ctx, 0, s.prefix+":*", s.scanCount).Iterator()
		for it.Next(ctx) {
			if !yield(strings.TrimPrefix(it.Val(), s.prefix+":"), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield("", err)
		}
	}
}
