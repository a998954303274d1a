package infra_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vote-tally/tally/domain"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// runBusKit é o contrato comum a todo Bus.
func runBusKit(t *testing.T, newBus func(t *testing.T) domain.Bus) {
	t.Run("ConsumerGroupDeliversEachMessageOnce", func(t *testing.T) {
		bus := newBus(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var a, b atomic.Int64
		counter := func(c *atomic.Int64) domain.Handler {
			return func(context.Context, domain.Message) error { c.Add(1); return nil }
		}
		if err := bus.QueueSubscribe(ctx, "cast", "g", counter(&a)); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if err := bus.QueueSubscribe(ctx, "cast", "g", counter(&b)); err != nil {
			t.Fatalf("subscribe: %v", err)
		}

		const n = 200
		for range n {
			if err := bus.Publish(ctx, "cast", []byte("1")); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
		waitFor(t, "all messages", func() bool { return a.Load()+b.Load() >= n })
		time.Sleep(20 * time.Millisecond)
		if got := a.Load() + b.Load(); got != n {
			t.Fatalf("expected exactly %d deliveries across the group, got %d", n, got)
		}
	})

	t.Run("BroadcastReachesEverySubscriber", func(t *testing.T) {
		bus := newBus(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var a, b atomic.Int64
		_ = bus.Subscribe(ctx, "news", func(context.Context, domain.Message) error { a.Add(1); return nil })
		_ = bus.Subscribe(ctx, "news", func(context.Context, domain.Message) error { b.Add(1); return nil })

		for range 3 {
			_ = bus.Publish(ctx, "news", nil)
		}
		waitFor(t, "broadcast", func() bool { return a.Load() == 3 && b.Load() == 3 })
	})

	t.Run("RequestGetsReplyWithHeader", func(t *testing.T) {
		bus := newBus(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_ = bus.Subscribe(ctx, "ask", func(ctx context.Context, m domain.Message) error {
			return m.Respond(ctx, append([]byte("re:"), m.Data...), map[string]string{"Answered-By": "kit"})
		})

		rctx, rcancel := context.WithTimeout(ctx, 2*time.Second)
		defer rcancel()
		r, err := bus.Request(rctx, "ask", []byte("q"))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if string(r.Data) != "re:q" {
			t.Fatalf("expected re:q, got %q", r.Data)
		}
		if r.Header["Answered-By"] != "kit" {
			t.Fatalf("expected reply header, got %v", r.Header)
		}
	})

	t.Run("RequestWithoutRespondersIsNoReply", func(t *testing.T) {
		bus := newBus(t)
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if _, err := bus.Request(ctx, "nobody", nil); !errors.Is(err, domain.ErrNoReply) {
			t.Fatalf("expected ErrNoReply, got %v", err)
		}
	})

	t.Run("HandlerErrorKeepsSubscriptionAlive", func(t *testing.T) {
		bus := newBus(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		var seen []string
		_ = bus.QueueSubscribe(ctx, "flaky", "g", func(_ context.Context, m domain.Message) error {
			mu.Lock()
			seen = append(seen, string(m.Data))
			mu.Unlock()
			if string(m.Data) == "bad" {
				return errors.New("bad message")
			}
			return nil
		})

		_ = bus.Publish(ctx, "flaky", []byte("bad"))
		_ = bus.Publish(ctx, "flaky", []byte("good"))
		waitFor(t, "both messages", func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(seen) == 2
		})
	})

	t.Run("CancelledSubscriptionStopsReceiving", func(t *testing.T) {
		bus := newBus(t)
		ctx, cancel := context.WithCancel(context.Background())

		var n atomic.Int64
		_ = bus.Subscribe(ctx, "bye", func(context.Context, domain.Message) error { n.Add(1); return nil })
		cancel()
		time.Sleep(50 * time.Millisecond)

		_ = bus.Publish(context.Background(), "bye", nil)
		time.Sleep(50 * time.Millisecond)
		if n.Load() != 0 {
			t.Fatalf("expected no deliveries after cancel, got %d", n.Load())
		}
	})

	t.Run("QueueSubscribeRequiresGroup", func(t *testing.T) {
		bus := newBus(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		err := bus.QueueSubscribe(ctx, "cast", "", func(context.Context, domain.Message) error { return nil })
		if !errors.Is(err, domain.ErrNoConsumerGroup) {
			t.Fatalf("expected ErrNoConsumerGroup, got %v", err)
		}
	})

	t.Run("CancelledGroupMemberLeavesRotation", func(t *testing.T) {
		bus := newBus(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		goneCtx, gone := context.WithCancel(ctx)

		var live atomic.Int64
		if err := bus.QueueSubscribe(goneCtx, "cast", "g", func(context.Context, domain.Message) error { return nil }); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if err := bus.QueueSubscribe(ctx, "cast", "g", func(context.Context, domain.Message) error {
			live.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		gone()
		// a saída do membro cancelado é assíncrona
		time.Sleep(50 * time.Millisecond)

		for range 10 {
			if err := bus.Publish(ctx, "cast", []byte("1")); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
		waitFor(t, "all messages on the live member", func() bool { return live.Load() == 10 })
	})
}
