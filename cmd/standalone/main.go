package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vote-tally/gateway"
	"vote-tally/tally"
	"vote-tally/tally/application"
	"vote-tally/tally/infra"
)

func main() {
	// Exemplo: tudo num processo só, sem NATS. Bus e store em memória,
	// dois workers, um agregador e a borda HTTP na frente.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	bus := infra.NewMemoryBus(infra.WithBusLogger(logger))
	store := infra.NewMemoryCounterStore()

	if _, err := tally.StartWorkers(ctx, bus, 2, tally.Worker{
		Incrementer: application.IncrementService{Store: store, Lock: infra.NewProcessLock()},
		Logger:      logger,
	}); err != nil {
		log.Fatalf("workers error: %v", err)
	}
	agg := tally.Aggregator{
		Snapshots: application.AggregateService{Store: store},
		Instance:  "standalone",
		Logger:    logger,
	}
	if err := agg.Start(ctx, bus); err != nil {
		log.Fatalf("aggregator error: %v", err)
	}

	limiters := infra.NewLimiterStore(5, 10)
	limiters.StartJanitor(ctx)

	h := gateway.Handler{Bus: bus, Logger: logger}.Routes()
	h = gateway.Concurrency(gateway.ConcurrencyOptions{Max: 50})(h)
	h = gateway.RateLimit(gateway.RateLimitOptions{
		Store:               limiters,
		KeyHeader:           "X-Voter-Id", // ou vazio para usar IP
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
	})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("standalone vote server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
