package infra_test

import (
	"context"
	"errors"
	"testing"

	"vote-tally/tally/domain"
	"vote-tally/tally/infra"
)

func TestMemoryCounterStore_Kit(t *testing.T) {
	runCounterStoreKit(t, infra.NewMemoryCounterStore())
}

func TestMemoryCounterStore_VersionedKit(t *testing.T) {
	runVersionedStoreKit(t, infra.NewMemoryCounterStore())
}

func TestMemoryCounterStore_FaultInjection(t *testing.T) {
	boom := errors.New("boom")
	store := infra.NewMemoryCounterStore(infra.WithFault(func(op, key string) error {
		if op == "put" && key == "1" {
			return boom
		}
		return nil
	}))

	if err := store.Put(context.Background(), "1", domain.EncodeCount(1)); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if err := store.Put(context.Background(), "2", domain.EncodeCount(1)); err != nil {
		t.Fatalf("expected other keys unaffected, got %v", err)
	}
}

func TestMemoryCounterStore_GetReturnsCopy(t *testing.T) {
	store := infra.NewMemoryCounterStore()
	ctx := context.Background()
	_ = store.Put(ctx, "1", domain.EncodeCount(5))

	raw, _ := store.Get(ctx, "1")
	raw[0] = 99

	again, _ := store.Get(ctx, "1")
	if c, _ := domain.DecodeCount(again); c != 5 {
		t.Fatalf("expected stored value to be isolated from callers, got %d", c)
	}
}
