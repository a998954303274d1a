package infra

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"vote-tally/tally/domain"

	"github.com/nats-io/nats.go"
)

// NATSCounterStore usa um bucket JetStream Key-Value como CounterStore.
// As revisões nativas do bucket viram o token do compare-and-swap.
type NATSCounterStore struct {
	kv nats.KeyValue
}

func NewNATSCounterStore(kv nats.KeyValue) *NATSCounterStore {
	return &NATSCounterStore{kv: kv}
}

// OpenNATSBucket faz bind no bucket existente ou cria com histórico 1.
func OpenNATSBucket(js nats.JetStreamContext, bucket string) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("bind bucket %s: %w", bucket, err)
	}
	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
		Storage: nats.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func (s *NATSCounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := s.Entry(ctx, key)
	return e.Value, err
}

func (s *NATSCounterStore) Entry(ctx context.Context, key string) (domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entry{}, err
	}
	e, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return domain.Entry{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return domain.Entry{}, err
	}
	return domain.Entry{Value: e.Value(), Revision: e.Revision()}, nil
}

func (s *NATSCounterStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.kv.Put(key, value)
	return err
}

func (s *NATSCounterStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rev, err := s.kv.Create(key, value)
	if wrongRevision(err) {
		return 0, fmt.Errorf("%w: %s already exists", domain.ErrConflict, key)
	}
	return rev, err
}

func (s *NATSCounterStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rev, err := s.kv.Update(key, value, revision)
	if wrongRevision(err) {
		return 0, fmt.Errorf("%w: %s moved past revision %d", domain.ErrConflict, key, revision)
	}
	return rev, err
}

// Keys usa ListKeys, que entrega as chaves por um channel à medida que chegam
// do servidor. Ao parar antes do fim o channel é drenado: a goroutine do
// lister só termina depois de entregar tudo o que já estava a caminho.
func (s *NATSCounterStore) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		lister, err := s.kv.ListKeys(nats.Context(ctx))
		if err != nil {
			yield("", fmt.Errorf("list keys: %w", err))
			return
		}
		defer func() {
			_ = lister.Stop()
			for range lister.Keys() {
			}
		}()

		for k := range lister.Keys() {
			if !yield(k, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield("", err)
		}
	}
}

func wrongRevision(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, nats.ErrKeyExists) {
		return true
	}
	var apiErr *nats.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence
}
