// Package harness wires N client actors and one server actor over a
// shared bus.Bus, seeds the server with random cells, runs the
// simulation for a configured duration, then poisons and joins every
// actor. Mirrors internal/testkit/scenario's multi-node provisioning
// over one shared fake transport, generalized from cluster nodes to
// protocol actors.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"seqsync/internal/actor"
	"seqsync/internal/bus"
	"seqsync/internal/cellseq"
	"seqsync/internal/checker"
	"seqsync/internal/config"
	"seqsync/internal/dispatcher"
	"seqsync/internal/history"
	"seqsync/internal/proto"
	"seqsync/internal/replica"
)

// ClientStatus is one client's post-run standing, for the CLI's
// summary table.
type ClientStatus struct {
	ID          proto.ClientID
	Watermark   proto.IterationID
	Lag         proto.IterationID
	ReplicaSize int
	Variant     string
}

// Result summarizes one completed run.
type Result struct {
	RunID            string
	CurrentIteration proto.IterationID
	Clients          []ClientStatus
}

// Run constructs the bus, server, and clients described by cfg, runs
// them for cfg.Duration, then poisons and joins everyone. seed drives
// every source of randomness this package owns — the initial cell
// values and each client's request picker — so the same seed always
// produces the same initial state and the same per-client request
// streams; it does not pin how many of those requests land before
// cfg.Duration elapses, which depends on goroutine scheduling. Callers
// that want a fresh run each time should derive seed from current time
// or an OS random source themselves.
func Run(ctx context.Context, cfg config.Config, seed uint64, tracer trace.Tracer) (*Result, error) {
	runID := uuid.NewString()
	log := slog.With("component", "harness", "run_id", runID)
	log.Info("starting run", "clients", cfg.Clients, "seed_cells", cfg.SeedCells, "duration", cfg.Duration)

	master := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	seq := cellseq.New()
	seedValues := make([]uint32, cfg.SeedCells)
	for i := range seedValues {
		seedValues[i] = master.Uint32()
	}
	seq.Seed(seedValues)

	hist := history.New(seq)
	var dispOpts []dispatcher.Option
	if cfg.WithDelayedHistory {
		dispOpts = append(dispOpts, dispatcher.WithDelayedHistory(true))
	}
	disp := dispatcher.New(seq, hist, tracer, dispOpts...)

	ids := make([]proto.ClientID, cfg.Clients)
	for i := range ids {
		ids[i] = proto.ClientID(i + 1)
	}
	allIDs := append([]proto.ClientID{proto.ServerID}, ids...)
	b := bus.New(allIDs...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return actor.RunServer(gctx, b, disp, cfg) })

	chk := checker.New(cfg.WithStateChecking)
	replicas := make(map[proto.ClientID]replica.Replica, len(ids))
	variants := make(map[proto.ClientID]string, len(ids))
	for i, id := range ids {
		var r replica.Replica
		variant := "slow"
		replicaSeed := master.Uint64()
		if i%2 == 1 {
			r = replica.NewFast(replicaSeed)
			variant = "fast"
		} else {
			r = replica.NewSlow()
		}
		replicas[id] = r
		variants[id] = variant

		picker := actor.NewRequestPicker(master.Uint64(), cfg)
		g.Go(func() error { return actor.RunClient(gctx, b, id, r, picker, chk, cfg) })
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	select {
	case <-runCtx.Done():
	case <-gctx.Done():
	}

	for _, id := range ids {
		b.Poison(id)
	}
	b.Poison(proto.ServerID)

	runErr := g.Wait()
	if runErr != nil {
		log.Error("run finished with error", "err", runErr)
	} else {
		log.Info("run finished cleanly")
	}

	result := &Result{RunID: runID, CurrentIteration: hist.CurrentIteration()}
	for _, id := range ids {
		w := hist.Watermark(id)
		result.Clients = append(result.Clients, ClientStatus{
			ID:          id,
			Watermark:   w,
			Lag:         result.CurrentIteration - w,
			ReplicaSize: replicas[id].Len(),
			Variant:     variants[id],
		})
	}

	if runErr != nil {
		return result, fmt.Errorf("harness run %s: %w", runID, runErr)
	}
	return result, nil
}
