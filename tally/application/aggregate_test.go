package application

import (
	"context"
	"errors"
	"testing"

	"vote-tally/tally/domain"
)

func TestAggregateService_SnapshotIsComplete(t *testing.T) {
	store := newFakeStore()
	inc := IncrementService{Store: store, Lock: newChanLock()}
	votes := map[domain.CandidateID]int{3: 2, 7: 5, 9: 1}
	for id, n := range votes {
		for range n {
			if _, err := inc.Apply(context.Background(), id); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}

	snap, err := AggregateService{Store: store}.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.TallySnapshot{"Candidate-3": 2, "Candidate-7": 5, "Candidate-9": 1}
	if len(snap) != len(want) {
		t.Fatalf("expected %v, got %v", want, snap)
	}
	for label, count := range want {
		if snap[label] != count {
			t.Fatalf("expected %s=%d, got %v", label, count, snap)
		}
	}
}

func TestAggregateService_EmptyStoreGivesEmptySnapshot(t *testing.T) {
	snap, err := AggregateService{Store: newFakeStore()}.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap == nil || len(snap) != 0 {
		t.Fatalf("expected empty non-nil snapshot, got %v", snap)
	}
}

func TestAggregateService_KeyVanishingMidScanAbortsSnapshot(t *testing.T) {
	store := newFakeStore()
	store.seed("1", domain.EncodeCount(1))
	store.seed("2", domain.EncodeCount(1))
	// "2" some depois de listado e antes de ser lido
	store.onKey = func(key string) {
		if key == "2" {
			store.mu.Lock()
			delete(store.data, "2")
			store.mu.Unlock()
		}
	}

	snap, err := AggregateService{Store: store}.Snapshot(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if snap != nil {
		t.Fatalf("expected no partial snapshot, got %v", snap)
	}
}

func TestAggregateService_CorruptValueAbortsSnapshot(t *testing.T) {
	store := newFakeStore()
	store.seed("1", domain.EncodeCount(3))
	store.seed("2", []byte("xx"))

	if _, err := (AggregateService{Store: store}).Snapshot(context.Background()); !errors.Is(err, domain.ErrCorruptCount) {
		t.Fatalf("expected ErrCorruptCount, got %v", err)
	}
}

func TestAggregateService_ForeignKeyAbortsSnapshot(t *testing.T) {
	store := newFakeStore()
	store.seed("meta", domain.EncodeCount(3))

	if _, err := (AggregateService{Store: store}).Snapshot(context.Background()); !errors.Is(err, domain.ErrMalformedKey) {
		t.Fatalf("expected ErrMalformedKey, got %v", err)
	}
}
