package infra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"vote-tally/tally/domain"
)

// MemoryBus é um Bus em processo: consumer groups com round-robin, assinaturas
// broadcast e request/reply por inbox. Útil para testes e desenvolvimento.
type MemoryBus struct {
	mu     sync.Mutex
	topics map[string]*memoryTopic
	buffer int
	logger *slog.Logger
}

type memoryTopic struct {
	broadcast []*memorySub
	groups    map[string]*memoryGroup
}

type memoryGroup struct {
	members []*memorySub
	next    int
}

type memorySub struct {
	ch   chan domain.Message
	done chan struct{}
}

type MemoryBusOption func(*MemoryBus)

// WithBuffer define o buffer de cada assinatura (padrão 128).
func WithBuffer(n int) MemoryBusOption {
	return func(b *MemoryBus) { b.buffer = n }
}

func WithBusLogger(logger *slog.Logger) MemoryBusOption {
	return func(b *MemoryBus) { b.logger = logger }
}

func NewMemoryBus(opts ...MemoryBusOption) *MemoryBus {
	b := &MemoryBus{
		topics: make(map[string]*memoryTopic),
		buffer: 128,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	return b.deliver(ctx, domain.NewMessage(subject, data, nil, nil))
}

// Request publica e espera a primeira resposta. Sem assinantes, falha na hora
// com domain.ErrNoReply.
func (b *MemoryBus) Request(ctx context.Context, subject string, data []byte) (domain.Reply, error) {
	replies := make(chan domain.Reply, 1)
	respond := func(ctx context.Context, data []byte, header map[string]string) error {
		select {
		case replies <- domain.Reply{Data: data, Header: header}:
		default:
			// já existe resposta; as demais são descartadas
		}
		return nil
	}

	if b.targets(subject) == 0 {
		return domain.Reply{}, fmt.Errorf("%w: no responders on %s", domain.ErrNoReply, subject)
	}
	if err := b.deliver(ctx, domain.NewMessage(subject, data, nil, respond)); err != nil {
		return domain.Reply{}, err
	}

	select {
	case r := <-replies:
		return r, nil
	case <-ctx.Done():
		return domain.Reply{}, fmt.Errorf("%w: %v", domain.ErrNoReply, ctx.Err())
	}
}

func (b *MemoryBus) Subscribe(ctx context.Context, subject string, h domain.Handler) error {
	sub := b.newSub()
	b.mu.Lock()
	t := b.topic(subject)
	t.broadcast = append(t.broadcast, sub)
	b.mu.Unlock()

	go b.loop(ctx, subject, "", sub, h)
	return nil
}

// QueueSubscribe exige um grupo nomeado; broadcast é Subscribe.
func (b *MemoryBus) QueueSubscribe(ctx context.Context, subject, group string, h domain.Handler) error {
	if group == "" {
		return fmt.Errorf("queue subscribe %s: %w", subject, domain.ErrNoConsumerGroup)
	}
	sub := b.newSub()
	b.mu.Lock()
	t := b.topic(subject)
	g, ok := t.groups[group]
	if !ok {
		g = &memoryGroup{}
		t.groups[group] = g
	}
	g.members = append(g.members, sub)
	b.mu.Unlock()

	go b.loop(ctx, subject, group, sub, h)
	return nil
}

func (b *MemoryBus) newSub() *memorySub {
	return &memorySub{ch: make(chan domain.Message, b.buffer), done: make(chan struct{})}
}

// topic deve ser chamado com b.mu travado.
func (b *MemoryBus) topic(subject string) *memoryTopic {
	t, ok := b.topics[subject]
	if !ok {
		t = &memoryTopic{groups: make(map[string]*memoryGroup)}
		b.topics[subject] = t
	}
	return t
}

func (b *MemoryBus) targets(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[subject]
	if !ok {
		return 0
	}
	n := len(t.broadcast)
	for _, g := range t.groups {
		if len(g.members) > 0 {
			n++
		}
	}
	return n
}

func (b *MemoryBus) deliver(ctx context.Context, msg domain.Message) error {
	b.mu.Lock()
	var subs []*memorySub
	if t, ok := b.topics[msg.Subject]; ok {
		subs = append(subs, t.broadcast...)
		for _, g := range t.groups {
			if len(g.members) == 0 {
				continue
			}
			subs = append(subs, g.members[g.next%len(g.members)])
			g.next++
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.done:
			// assinante encerrou entre o snapshot e o envio
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBus) loop(ctx context.Context, subject, group string, sub *memorySub, h domain.Handler) {
	logger := resolveLogger(b.logger)
	defer b.remove(subject, group, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.ch:
			if err := h(ctx, msg); err != nil {
				logger.Error("subscription handler failed",
					"event", "memory_bus_handler_failed",
					"module", logModule,
					"layer", "infra",
					"subject", subject,
					"consumer_group", group,
					"error", err.Error(),
				)
			}
		}
	}
}

func (b *MemoryBus) remove(subject, group string, target *memorySub) {
	close(target.done)

	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[subject]
	if !ok {
		return
	}
	if group == "" {
		t.broadcast = without(t.broadcast, target)
		return
	}
	if g, ok := t.groups[group]; ok {
		g.members = without(g.members, target)
	}
}

func without(items []*memorySub, target *memorySub) []*memorySub {
	out := make([]*memorySub, 0, len(items))
	for _, item := range items {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}
