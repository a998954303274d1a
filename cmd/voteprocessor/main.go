package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vote-tally/tally"
	"vote-tally/tally/application"
	"vote-tally/tally/domain"
	"vote-tally/tally/infra"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))
	instance := uuid.NewString()

	natsURL := cfg.natsURL
	if cfg.natsEmbedded {
		storeDir, removeDir, err := embeddedStoreDir(cfg.natsStoreDir)
		if err != nil {
			log.Fatalf("embedded nats store dir error: %v", err)
		}
		defer removeDir()
		srv, err := infra.StartEmbeddedNATS(cfg.natsEmbeddedHost, cfg.natsEmbeddedPort, storeDir)
		if err != nil {
			log.Fatalf("embedded nats error: %v", err)
		}
		defer func() {
			srv.Shutdown()
			srv.WaitForShutdown()
		}()
		natsURL = srv.ClientURL()
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("voteprocessor-"+instance),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Fatalf("nats connect error: %v", err)
	}
	defer nc.Close()

	store, closeStore, err := openStore(ctx, cfg, nc)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer closeStore()

	inc, err := newIncrementer(cfg, store)
	if err != nil {
		log.Fatalf("increment strategy error: %v", err)
	}

	stats, memStats, closeStats, err := openStats(cfg)
	if err != nil {
		log.Fatalf("stats error: %v", err)
	}
	defer closeStats()

	bus := infra.NewNATSBus(nc, infra.WithNATSLogger(logger))

	var start errgroup.Group
	start.Go(func() error {
		_, err := tally.StartWorkers(ctx, bus, cfg.workers, tally.Worker{
			ID:          "worker-" + instance[:8],
			Subject:     cfg.castSubject,
			Group:       cfg.consumerGroup,
			Incrementer: inc,
			Stats:       stats,
			Logger:      logger,
		})
		return err
	})
	start.Go(func() error {
		return tally.Aggregator{
			Subject:   cfg.tallySubject,
			Group:     cfg.aggregatorGroup,
			Snapshots: application.AggregateService{Store: store},
			Instance:  instance,
			Logger:    logger,
		}.Start(ctx, bus)
	})
	if err := start.Wait(); err != nil {
		log.Fatalf("subscribe error: %v", err)
	}

	log.Printf("nats: url=%s embedded=%v", natsURL, cfg.natsEmbedded)
	log.Printf("store: backend=%s bucket=%q strategy=%s", cfg.storeBackend, cfg.storeBucket, cfg.incrementStrategy)
	log.Printf("workers: n=%d subject=%q group=%q", cfg.workers, cfg.castSubject, cfg.consumerGroup)
	log.Printf("aggregator: subject=%q group=%q instance=%s", cfg.tallySubject, cfg.aggregatorGroup, instance)
	log.Printf("Vote Processor Service is ready.")

	g, gctx := errgroup.WithContext(ctx)
	if memStats != nil && cfg.statsLogEvery > 0 {
		g.Go(func() error {
			logStats(gctx, logger, memStats, cfg.statsLogEvery)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	_ = g.Wait()
	log.Printf("shutting down")
}

// embeddedStoreDir devolve o diretório do JetStream embutido. Sem NATS_STORE_DIR
// cada instância ganha um diretório temporário próprio, removido no shutdown.
func embeddedStoreDir(configured string) (string, func(), error) {
	if configured != "" {
		return configured, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "voteprocessor-jetstream-")
	if err != nil {
		return "", nil, err
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func openStore(ctx context.Context, cfg config, nc *nats.Conn) (domain.CounterStore, func(), error) {
	switch cfg.storeBackend {
	case "nats":
		js, err := nc.JetStream()
		if err != nil {
			return nil, nil, fmt.Errorf("jetstream: %w", err)
		}
		kv, err := infra.OpenNATSBucket(js, cfg.storeBucket)
		if err != nil {
			return nil, nil, err
		}
		return infra.NewNATSCounterStore(kv), func() {}, nil

	case "redis":
		rdb, err := pingRedis(ctx, cfg.redisAddr, cfg.redisPassword, cfg.redisDB)
		if err != nil {
			return nil, nil, err
		}
		store := infra.NewRedisCounterStore(rdb, infra.WithKeyPrefix(cfg.redisPrefix))
		return store, func() { _ = rdb.Close() }, nil

	case "bbolt":
		store, err := infra.OpenBoltCounterStore(cfg.bboltPath, infra.WithBoltBucket(cfg.storeBucket))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case "memory":
		return infra.NewMemoryCounterStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.storeBackend)
}

func newIncrementer(cfg config, store domain.CounterStore) (application.Incrementer, error) {
	if cfg.incrementStrategy == "lock" {
		return application.IncrementService{Store: store, Lock: infra.NewProcessLock()}, nil
	}
	versioned, ok := store.(domain.VersionedStore)
	if !ok {
		return nil, fmt.Errorf("INCREMENT_STRATEGY=cas needs a versioned store, %s is not", cfg.storeBackend)
	}
	return application.CASIncrementService{Store: versioned, MaxAttempts: cfg.casMaxAttempts}, nil
}

func openStats(cfg config) (domain.StatsStore, *infra.MemoryStatsStore, func(), error) {
	if !cfg.statsEnabled {
		return nil, nil, func() {}, nil
	}
	if cfg.statsRedisAddr == "" {
		mem := infra.NewMemoryStatsStore(infra.WithTrackCandidates(cfg.statsTrackCandidates))
		return mem, mem, func() {}, nil
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rdb, err := pingRedis(pingCtx, cfg.statsRedisAddr, cfg.redisPassword, cfg.redisDB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis stats: %w", err)
	}
	rs := infra.NewRedisStatsStore(rdb,
		infra.WithStatsPrefix(cfg.statsPrefix),
		infra.WithStatsTTL(cfg.statsTTL),
		infra.WithStatsBucket(cfg.statsBucket),
		infra.WithStatsTrackCandidates(cfg.statsTrackCandidates),
	)
	return rs, nil, func() { _ = rdb.Close() }, nil
}

func pingRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func logStats(ctx context.Context, logger *slog.Logger, stats *infra.MemoryStatsStore, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			total := stats.Total()
			logger.Info("vote processing stats",
				"event", "tally_stats_snapshot",
				"module", "cmd/voteprocessor",
				"layer", "main",
				"applied", total.Applied,
				"failed", total.Failed,
				"workers", len(stats.ByWorker()),
			)
		}
	}
}

type config struct {
	natsURL          string
	natsEmbedded     bool
	natsEmbeddedHost string
	natsEmbeddedPort int
	natsStoreDir     string

	storeBackend  string
	storeBucket   string
	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string
	bboltPath     string

	workers           int
	consumerGroup     string
	castSubject       string
	tallySubject      string
	aggregatorGroup   string
	incrementStrategy string
	casMaxAttempts    int

	statsEnabled         bool
	statsRedisAddr       string
	statsPrefix          string
	statsTTL             time.Duration
	statsBucket          string
	statsTrackCandidates bool
	statsLogEvery        time.Duration

	logLevel slog.Level
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.natsURL = getenvDefault("NATS_URL", nats.DefaultURL)
	cfg.natsEmbedded = getenvBoolDefault("NATS_EMBEDDED", false)
	cfg.natsEmbeddedHost = getenvDefault("NATS_EMBEDDED_HOST", "127.0.0.1")
	cfg.natsEmbeddedPort = getenvIntDefault("NATS_EMBEDDED_PORT", nats.DefaultPort)
	cfg.natsStoreDir = os.Getenv("NATS_STORE_DIR")

	cfg.storeBackend = strings.ToLower(getenvDefault("STORE_BACKEND", "nats"))
	cfg.storeBucket = getenvDefault("STORE_BUCKET", "votes")
	cfg.redisAddr = getenvDefault("REDIS_ADDR", "")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisPrefix = getenvDefault("REDIS_PREFIX", "votes")
	cfg.bboltPath = getenvDefault("BBOLT_PATH", "votes.db")

	cfg.workers = getenvIntDefault("WORKERS", 2)
	cfg.consumerGroup = getenvDefault("CONSUMER_GROUP", tally.DefaultConsumerGroup)
	cfg.castSubject = getenvDefault("CAST_SUBJECT", tally.DefaultCastSubject)
	cfg.tallySubject = getenvDefault("TALLY_SUBJECT", tally.DefaultTallySubject)
	cfg.aggregatorGroup = os.Getenv("AGGREGATOR_GROUP")
	cfg.incrementStrategy = strings.ToLower(getenvDefault("INCREMENT_STRATEGY", "lock"))
	cfg.casMaxAttempts = getenvIntDefault("CAS_MAX_ATTEMPTS", application.DefaultCASAttempts)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "tally:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackCandidates = getenvBoolDefault("STATS_TRACK_CANDIDATES", false)
	cfg.statsLogEvery = getenvDurationDefault("STATS_LOG_EVERY", time.Minute)

	if err := cfg.logLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.storeBackend {
	case "nats", "redis", "bbolt", "memory":
	default:
		return config{}, errors.New("STORE_BACKEND must be one of nats, redis, bbolt, memory")
	}
	if cfg.storeBackend == "redis" && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
	}
	if cfg.incrementStrategy != "lock" && cfg.incrementStrategy != "cas" {
		return config{}, errors.New("INCREMENT_STRATEGY must be lock or cas")
	}
	if cfg.workers <= 0 {
		return config{}, errors.New("WORKERS must be > 0")
	}
	if cfg.casMaxAttempts <= 0 {
		return config{}, errors.New("CAS_MAX_ATTEMPTS must be > 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
