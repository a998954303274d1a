package tally

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vote-tally/tally/application"
	"vote-tally/tally/domain"
)

var ErrNoIncrementer = errors.New("worker: incrementer not configured")

// Worker é um membro do consumer group de "cast vote".
// Cada mensagem recebida vira exatamente um Apply no Incrementer.
type Worker struct {
	ID          string
	Subject     string
	Group       string
	Incrementer application.Incrementer
	Stats       domain.StatsStore
	Logger      *slog.Logger
}

// Start registra o worker no consumer group. A assinatura vive até o ctx encerrar.
func (w Worker) Start(ctx context.Context, bus domain.Bus) error {
	if w.Incrementer == nil {
		return ErrNoIncrementer
	}
	subject := orDefault(w.Subject, DefaultCastSubject)
	group := orDefault(w.Group, DefaultConsumerGroup)

	if err := bus.QueueSubscribe(ctx, subject, group, w.Handle); err != nil {
		return fmt.Errorf("worker %s: %w", w.ID, err)
	}
	resolveLogger(w.Logger).Info("vote worker subscribed",
		"event", "tally_worker_started",
		"module", logModule,
		"layer", "worker",
		"worker", w.ID,
		"subject", subject,
		"consumer_group", group,
	)
	return nil
}

// Handle processa um evento "cast vote". Payload inválido e falhas do store
// voltam como erro; "não encontrado" já foi tratado no Incrementer.
func (w Worker) Handle(ctx context.Context, msg domain.Message) error {
	logger := resolveLogger(w.Logger)

	id, err := domain.ParseCandidateID(msg.Data)
	if err != nil {
		logger.Error("cast vote payload rejected",
			"event", "tally_worker_payload_rejected",
			"module", logModule,
			"layer", "worker",
			"worker", w.ID,
			"error", err.Error(),
		)
		return err
	}

	logger.Debug("storing vote",
		"event", "tally_vote_storing",
		"module", logModule,
		"layer", "worker",
		"worker", w.ID,
		"candidate", uint64(id),
	)
	count, err := w.Incrementer.Apply(ctx, id)
	w.record(ctx, id, err == nil)
	if err != nil {
		logger.Error("vote increment failed",
			"event", "tally_vote_failed",
			"module", logModule,
			"layer", "worker",
			"worker", w.ID,
			"candidate", uint64(id),
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("vote saved",
		"event", "tally_vote_saved",
		"module", logModule,
		"layer", "worker",
		"worker", w.ID,
		"candidate", uint64(id),
		"count", uint32(count),
	)
	return nil
}

func (w Worker) record(ctx context.Context, id domain.CandidateID, applied bool) {
	if w.Stats == nil {
		return
	}
	err := w.Stats.Record(ctx, domain.StatsEvent{
		Worker:    w.ID,
		Candidate: id,
		Applied:   applied,
		At:        time.Now(),
	})
	if err != nil {
		resolveLogger(w.Logger).Warn("worker stats record failed",
			"event", "tally_stats_failed",
			"module", logModule,
			"layer", "worker",
			"worker", w.ID,
			"error", err.Error(),
		)
	}
}

// StartWorkers sobe n workers a partir de template. Todos compartilham o mesmo
// Incrementer e, portanto, o mesmo lock de processo.
func StartWorkers(ctx context.Context, bus domain.Bus, n int, template Worker) ([]Worker, error) {
	if n <= 0 {
		n = 1
	}
	prefix := orDefault(template.ID, "worker")
	workers := make([]Worker, 0, n)
	for i := 1; i <= n; i++ {
		w := template
		w.ID = fmt.Sprintf("%s-%d", prefix, i)
		if err := w.Start(ctx, bus); err != nil {
			return workers, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}
