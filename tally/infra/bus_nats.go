package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vote-tally/tally/domain"

	"github.com/nats-io/nats.go"
)

// NATSBus adapta uma conexão NATS ao domain.Bus.
//
// Consumer group = queue group do NATS. Cada assinatura usa callback assíncrono:
// o cliente entrega as mensagens de uma assinatura em sequência, uma por vez.
type NATSBus struct {
	nc     *nats.Conn
	logger *slog.Logger
}

type NATSBusOption func(*NATSBus)

func WithNATSLogger(logger *slog.Logger) NATSBusOption {
	return func(b *NATSBus) { b.logger = logger }
}

func NewNATSBus(nc *nats.Conn, opts ...NATSBusOption) *NATSBus {
	b := &NATSBus{nc: nc}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.nc.Publish(subject, data)
}

func (b *NATSBus) Request(ctx context.Context, subject string, data []byte) (domain.Reply, error) {
	m, err := b.nc.RequestWithContext(ctx, subject, data)
	if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.Reply{}, fmt.Errorf("%w: %s: %v", domain.ErrNoReply, subject, err)
	}
	if err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Data: m.Data, Header: flattenHeader(m.Header)}, nil
}

func (b *NATSBus) Subscribe(ctx context.Context, subject string, h domain.Handler) error {
	return b.subscribe(ctx, subject, "", h)
}

func (b *NATSBus) QueueSubscribe(ctx context.Context, subject, group string, h domain.Handler) error {
	if group == "" {
		return fmt.Errorf("queue subscribe %s: %w", subject, domain.ErrNoConsumerGroup)
	}
	return b.subscribe(ctx, subject, group, h)
}

func (b *NATSBus) subscribe(ctx context.Context, subject, group string, h domain.Handler) error {
	logger := resolveLogger(b.logger)
	cb := func(m *nats.Msg) {
		if err := h(ctx, b.toMessage(m)); err != nil {
			logger.Error("subscription handler failed",
				"event", "nats_bus_handler_failed",
				"module", logModule,
				"layer", "infra",
				"subject", subject,
				"consumer_group", group,
				"error", err.Error(),
			)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group == "" {
		sub, err = b.nc.Subscribe(subject, cb)
	} else {
		sub, err = b.nc.QueueSubscribe(subject, group, cb)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	// garante que o servidor registrou a assinatura antes de devolver
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flush %s: %w", subject, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (b *NATSBus) toMessage(m *nats.Msg) domain.Message {
	var respond func(context.Context, []byte, map[string]string) error
	if m.Reply != "" {
		respond = func(_ context.Context, data []byte, header map[string]string) error {
			reply := nats.NewMsg(m.Reply)
			reply.Data = data
			for k, v := range header {
				reply.Header.Set(k, v)
			}
			return b.nc.PublishMsg(reply)
		}
	}
	return domain.NewMessage(m.Subject, m.Data, flattenHeader(m.Header), respond)
}

func flattenHeader(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
