package tally

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"vote-tally/tally/domain"
)

var ErrNoSnapshots = errors.New("aggregator: snapshot source not configured")

// Snapshotter monta um snapshot completo da apuração.
type Snapshotter interface {
	Snapshot(ctx context.Context) (domain.TallySnapshot, error)
}

// Aggregator responde pedidos "fetch tally".
//
// Com Group vazio a assinatura é broadcast: se houver várias instâncias, TODAS
// respondem a cada pedido e quem coleta várias respostas recebe duplicatas.
// Com Group preenchido só um membro do grupo responde.
type Aggregator struct {
	Subject   string
	Group     string
	Snapshots Snapshotter
	Instance  string
	Logger    *slog.Logger
}

func (a Aggregator) Start(ctx context.Context, bus domain.Bus) error {
	if a.Snapshots == nil {
		return ErrNoSnapshots
	}
	subject := orDefault(a.Subject, DefaultTallySubject)

	var err error
	if a.Group == "" {
		err = bus.Subscribe(ctx, subject, a.Handle)
	} else {
		err = bus.QueueSubscribe(ctx, subject, a.Group, a.Handle)
	}
	if err != nil {
		return fmt.Errorf("aggregator: %w", err)
	}
	resolveLogger(a.Logger).Info("tally aggregator subscribed",
		"event", "tally_aggregator_started",
		"module", logModule,
		"layer", "worker",
		"subject", subject,
		"consumer_group", a.Group,
		"instance", a.Instance,
	)
	return nil
}

// Handle monta o snapshot e responde. Qualquer erro aborta a resposta: nunca
// envia um mapa parcial.
func (a Aggregator) Handle(ctx context.Context, msg domain.Message) error {
	logger := resolveLogger(a.Logger)
	if !msg.CanRespond() {
		logger.Debug("fetch tally without reply subject ignored",
			"event", "tally_fetch_ignored",
			"module", logModule,
			"layer", "worker",
		)
		return nil
	}
	logger.Info("received candidate fetch request",
		"event", "tally_fetch_received",
		"module", logModule,
		"layer", "worker",
		"instance", a.Instance,
	)

	snap, err := a.Snapshots.Snapshot(ctx)
	if err != nil {
		logger.Error("tally snapshot failed",
			"event", "tally_snapshot_failed",
			"module", logModule,
			"layer", "worker",
			"instance", a.Instance,
			"error", err.Error(),
		)
		return err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode tally: %w", err)
	}

	var header map[string]string
	if a.Instance != "" {
		header = map[string]string{InstanceHeader: a.Instance}
	}
	if err := msg.Respond(ctx, body, header); err != nil {
		return fmt.Errorf("reply tally: %w", err)
	}
	logger.Info("request processed",
		"event", "tally_fetch_replied",
		"module", logModule,
		"layer", "worker",
		"instance", a.Instance,
		"candidates", len(snap),
	)
	return nil
}
