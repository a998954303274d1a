package infra

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// StartEmbeddedNATS sobe um nats-server no próprio processo, com JetStream
// gravando em storeDir. port < 0 escolhe uma porta livre.
// Quem chama encerra com Shutdown + WaitForShutdown.
func StartEmbeddedNATS(host string, port int, storeDir string) (*server.Server, error) {
	s, err := server.NewServer(&server.Options{
		Host:      host,
		Port:      port,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedded nats: %w", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		return nil, fmt.Errorf("embedded nats: not ready for connections")
	}
	return s, nil
}
