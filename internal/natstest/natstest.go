// Package natstest sobe um nats-server embutido para testes.
package natstest

import (
	"testing"

	"vote-tally/tally/infra"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// RunServer sobe um servidor com JetStream num diretório temporário e registra
// o desligamento no t.Cleanup.
func RunServer(t testing.TB) *server.Server {
	t.Helper()
	s, err := infra.StartEmbeddedNATS("127.0.0.1", server.RANDOM_PORT, t.TempDir())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(func() {
		s.Shutdown()
		s.WaitForShutdown()
	})
	return s
}

func Connect(t testing.TB, s *server.Server) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("connect nats: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

// KeyValue cria (ou reabre) um bucket KV no servidor.
func KeyValue(t testing.TB, nc *nats.Conn, bucket string) nats.KeyValue {
	t.Helper()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	kv, err := infra.OpenNATSBucket(js, bucket)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	return kv
}
