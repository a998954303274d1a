package tally

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"vote-tally/tally/application"
	"vote-tally/tally/domain"
	"vote-tally/tally/infra"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type rig struct {
	ctx   context.Context
	bus   domain.Bus
	store *infra.MemoryCounterStore
	stats *infra.MemoryStatsStore
}

// newMemoryRig sobe dois workers (mesmo lock) e um agregador broadcast sobre
// bus e store em memória.
func newMemoryRig(t *testing.T, opts ...infra.MemoryStoreOption) *rig {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := &rig{
		ctx:   ctx,
		bus:   infra.NewMemoryBus(infra.WithBusLogger(quietLogger())),
		store: infra.NewMemoryCounterStore(opts...),
		stats: infra.NewMemoryStatsStore(),
	}
	startProcess(t, ctx, r.bus, r.store, application.IncrementService{Store: r.store, Lock: infra.NewProcessLock()}, r.stats)
	return r
}

func startProcess(t *testing.T, ctx context.Context, bus domain.Bus, store domain.CounterStore, inc application.Incrementer, stats domain.StatsStore) {
	t.Helper()
	_, err := StartWorkers(ctx, bus, 2, Worker{
		Incrementer: inc,
		Stats:       stats,
		Logger:      quietLogger(),
	})
	if err != nil {
		t.Fatalf("start workers: %v", err)
	}
	agg := Aggregator{
		Snapshots: application.AggregateService{Store: store},
		Instance:  "test",
		Logger:    quietLogger(),
	}
	if err := agg.Start(ctx, bus); err != nil {
		t.Fatalf("start aggregator: %v", err)
	}
}

// cast usa t.Errorf para poder rodar fora da goroutine do teste.
func cast(t *testing.T, ctx context.Context, bus domain.Bus, id domain.CandidateID, n int) {
	t.Helper()
	for range n {
		if err := CastVote(ctx, bus, "", id); err != nil {
			t.Errorf("cast vote: %v", err)
			return
		}
	}
}

func fetch(t *testing.T, ctx context.Context, bus domain.Bus) Tally {
	t.Helper()
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	tl, err := FetchTally(rctx, bus, "")
	if err != nil {
		t.Fatalf("fetch tally: %v", err)
	}
	return tl
}

// waitTally repete o request até want ser satisfeito.
func waitTally(t *testing.T, ctx context.Context, bus domain.Bus, want domain.TallySnapshot) domain.TallySnapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		snap := fetch(t, ctx, bus).Snapshot
		if sameSnapshot(snap, want) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected tally %v, last reply %v", want, snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func sameSnapshot(a, b domain.TallySnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range b {
		if got, ok := a[k]; !ok || got != v {
			return false
		}
	}
	return true
}
