package main

import (
	"os"
	"testing"

	"vote-tally/tally/application"
	"vote-tally/tally/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestEmbeddedStoreDir_PerInstanceWhenUnset(t *testing.T) {
	a, removeA, err := embeddedStoreDir("")
	if err != nil {
		t.Fatalf("store dir: %v", err)
	}
	b, removeB, err := embeddedStoreDir("")
	if err != nil {
		t.Fatalf("store dir: %v", err)
	}
	defer removeB()

	if a == b {
		t.Fatalf("expected distinct dirs per instance, both got %q", a)
	}
	if _, err := os.Stat(a); err != nil {
		t.Fatalf("expected %q to exist: %v", a, err)
	}
	removeA()
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Fatalf("expected %q to be removed, got %v", a, err)
	}
}

func TestEmbeddedStoreDir_KeepsConfiguredDir(t *testing.T) {
	want := t.TempDir()
	got, remove, err := embeddedStoreDir(want)
	if err != nil || got != want {
		t.Fatalf("expected %q, got %q (%v)", want, got, err)
	}
	remove()
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("configured dir must survive shutdown: %v", err)
	}
}

func TestReadConfig_StoreDirUnsetByDefault(t *testing.T) {
	t.Setenv("NATS_STORE_DIR", "")
	cfg, err := readConfig()
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if cfg.natsStoreDir != "" {
		t.Fatalf("expected empty store dir default, got %q", cfg.natsStoreDir)
	}
}

func TestNewIncrementer_CASOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	inc, err := newIncrementer(config{incrementStrategy: "cas", storeBackend: "redis", casMaxAttempts: 8}, infra.NewRedisCounterStore(rdb))
	if err != nil {
		t.Fatalf("expected redis to support cas, got %v", err)
	}
	if _, ok := inc.(application.CASIncrementService); !ok {
		t.Fatalf("expected CASIncrementService, got %T", inc)
	}
}
