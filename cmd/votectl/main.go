// votectl é o cliente de linha de comando do sistema de votação: publica
// votos, consulta a apuração e gera carga contra o bus NATS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vote-tally/tally"
	"vote-tally/tally/domain"
	"vote-tally/tally/infra"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	natsURL      string
	castSubject  string
	tallySubject string
	timeout      time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "votectl",
		Short:        "Cast votes and read the tally over NATS",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.natsURL, "nats-url", nats.DefaultURL, "NATS server URL")
	root.PersistentFlags().StringVar(&g.castSubject, "cast-subject", tally.DefaultCastSubject, "Subject for cast vote events")
	root.PersistentFlags().StringVar(&g.tallySubject, "tally-subject", tally.DefaultTallySubject, "Subject for tally requests")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 2*time.Second, "Timeout waiting for a tally reply")

	root.AddCommand(
		newCastCmd(g),
		newTallyCmd(g),
		newLoadCmd(g),
	)
	return root
}

// connect abre a conexão e devolve o bus sobre ela.
func (g *globalFlags) connect() (*nats.Conn, domain.Bus, error) {
	nc, err := nats.Connect(g.natsURL, nats.Name("votectl"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", g.natsURL, err)
	}
	return nc, infra.NewNATSBus(nc), nil
}
