package infra_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"vote-tally/tally/domain"
)

func collectKeys(t *testing.T, store domain.CounterStore) []string {
	t.Helper()
	var keys []string
	for k, err := range store.Keys(context.Background()) {
		if err != nil {
			t.Fatalf("list keys: %v", err)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// runCounterStoreKit é o contrato comum a todo CounterStore.
// Espera um store vazio.
func runCounterStoreKit(t *testing.T, store domain.CounterStore) {
	ctx := context.Background()

	t.Run("EmptyStoreHasNoKeys", func(t *testing.T) {
		if keys := collectKeys(t, store); len(keys) != 0 {
			t.Fatalf("expected no keys, got %v", keys)
		}
	})

	t.Run("MissingKeyIsNotFound", func(t *testing.T) {
		if _, err := store.Get(ctx, "404"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutThenGetAndOverwrite", func(t *testing.T) {
		if err := store.Put(ctx, "1", domain.EncodeCount(1)); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := store.Put(ctx, "1", domain.EncodeCount(2)); err != nil {
			t.Fatalf("put: %v", err)
		}
		raw, err := store.Get(ctx, "1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if c, err := domain.DecodeCount(raw); err != nil || c != 2 {
			t.Fatalf("expected 2, got %d (%v)", c, err)
		}
	})

	t.Run("KeysListsEveryKeyAndRestarts", func(t *testing.T) {
		for i := 2; i <= 5; i++ {
			if err := store.Put(ctx, fmt.Sprint(i), domain.EncodeCount(1)); err != nil {
				t.Fatalf("put: %v", err)
			}
		}
		want := []string{"1", "2", "3", "4", "5"}
		for range 2 {
			got := collectKeys(t, store)
			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Fatalf("expected %v, got %v", want, got)
			}
		}
	})

	t.Run("KeysCanStopEarly", func(t *testing.T) {
		n := 0
		for _, err := range store.Keys(ctx) {
			if err != nil {
				t.Fatalf("list keys: %v", err)
			}
			n++
			break
		}
		if n != 1 {
			t.Fatalf("expected to stop after one key, got %d", n)
		}
	})
}

// runVersionedStoreKit cobre o compare-and-swap. Espera um store vazio.
func runVersionedStoreKit(t *testing.T, store domain.VersionedStore) {
	ctx := context.Background()

	rev, err := store.Create(ctx, "7", domain.EncodeCount(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, "7", domain.EncodeCount(1)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on second create, got %v", err)
	}

	e, err := store.Entry(ctx, "7")
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if e.Revision != rev {
		t.Fatalf("expected revision %d, got %d", rev, e.Revision)
	}

	next, err := store.Update(ctx, "7", domain.EncodeCount(2), rev)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if next == rev {
		t.Fatalf("expected revision to move past %d", rev)
	}
	if _, err := store.Update(ctx, "7", domain.EncodeCount(3), rev); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on stale revision, got %v", err)
	}

	raw, err := store.Get(ctx, "7")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c, _ := domain.DecodeCount(raw); c != 2 {
		t.Fatalf("expected 2 after stale update, got %d", c)
	}
}
