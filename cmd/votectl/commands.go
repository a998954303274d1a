package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"vote-tally/tally"
	"vote-tally/tally/domain"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func newCastCmd(g *globalFlags) *cobra.Command {
	var times int
	cmd := &cobra.Command{
		Use:   "cast <candidate-id>",
		Short: "Publishes cast vote events for one candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseCandidateID([]byte(args[0]))
			if err != nil {
				return err
			}
			nc, bus, err := g.connect()
			if err != nil {
				return err
			}
			defer nc.Close()

			for range times {
				if err := tally.CastVote(cmd.Context(), bus, g.castSubject, id); err != nil {
					return err
				}
			}
			if err := flush(cmd.Context(), nc, g.timeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cast %d vote(s) for %s\n", times, id.Label())
			return nil
		},
	}
	cmd.Flags().IntVarP(&times, "times", "n", 1, "Number of votes to cast")
	return cmd
}

func newTallyCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tally",
		Short: "Requests the current tally and prints it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, bus, err := g.connect()
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			res, err := tally.FetchTally(ctx, bus, g.tallySubject)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(res.Snapshot)
			}
			labels := make([]string, 0, len(res.Snapshot))
			for label := range res.Snapshot {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			for _, label := range labels {
				fmt.Fprintf(out, "%s\t%d\n", label, res.Snapshot[label])
			}
			if res.Instance != "" {
				fmt.Fprintf(out, "# answered by %s\n", res.Instance)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON mapping")
	return cmd
}

func newLoadCmd(g *globalFlags) *cobra.Command {
	var (
		count      int
		rps        float64
		candidates int
		parallel   int
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Publishes votes spread round-robin over candidates 1..N",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 || candidates <= 0 || parallel <= 0 {
				return fmt.Errorf("--count, --candidates and --parallel must be > 0")
			}
			nc, bus, err := g.connect()
			if err != nil {
				return err
			}
			defer nc.Close()

			limit := rate.Inf
			if rps > 0 {
				limit = rate.Limit(rps)
			}
			lim := rate.NewLimiter(limit, parallel)

			var next atomic.Int64
			start := time.Now()
			eg, ctx := errgroup.WithContext(cmd.Context())
			for range parallel {
				eg.Go(func() error {
					for {
						i := next.Add(1) - 1
						if i >= int64(count) {
							return nil
						}
						if err := lim.Wait(ctx); err != nil {
							return err
						}
						id := domain.CandidateID(i%int64(candidates) + 1)
						if err := tally.CastVote(ctx, bus, g.castSubject, id); err != nil {
							return err
						}
					}
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}
			if err := flush(cmd.Context(), nc, g.timeout); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "published %d vote(s) in %s\n", count, time.Since(start).Round(time.Millisecond))
			for c := 1; c <= candidates; c++ {
				expected := count / candidates
				if c <= count%candidates {
					expected++
				}
				fmt.Fprintf(out, "expected %s\t+%s\n", domain.CandidateID(c).Label(), strconv.Itoa(expected))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1000, "Total number of votes")
	cmd.Flags().Float64Var(&rps, "rps", 0, "Votes per second (0 = unlimited)")
	cmd.Flags().IntVar(&candidates, "candidates", 3, "Number of candidates")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "Concurrent publishers")
	return cmd
}

// flush garante que os votos publicados saíram do buffer do cliente.
func flush(ctx context.Context, nc *nats.Conn, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
