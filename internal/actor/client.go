package actor

import (
	"context"
	"fmt"
	"log/slog"

	"seqsync/internal/bus"
	"seqsync/internal/checker"
	"seqsync/internal/config"
	"seqsync/internal/proto"
	"seqsync/internal/replica"
)

// RunClient drives one client actor: generate a request, send it to
// the server, apply whatever comes back, repeat until poisoned. A
// SnapshotMismatch from the checker is fatal (§7) — reported as an
// error so the harness's errgroup can cancel the run, rather than the
// panic/abort the original process used; a library has no business
// killing its own process.
//
// ctx is accepted for symmetry with RunServer and errgroup.Go's
// signature, but the loop never selects on it: the only blocking
// operation is mailbox receive, and the harness tears a run down by
// poisoning, not by cancellation.
func RunClient(ctx context.Context, b *bus.Bus, clientID proto.ClientID, r replica.Replica, picker Picker, chk *checker.Checker, cfg config.Config) error {
	mailbox := b.Mailbox(clientID)
	log := slog.With("component", "client-actor", "client_id", clientID)
	log.Debug("client actor starting")

	var prevIteration proto.IterationID
	for {
		req := picker.Next(r, prevIteration)
		env := proto.Envelope{Type: proto.MessageRequest, Sender: clientID, Request: req}
		env.ComputeSize(cfg.WithSizeCalculation)
		b.Send(proto.ServerID, env)

		reply := mailbox.Receive()
		switch reply.Type {
		case proto.MessagePoison:
			log.Debug("client actor poisoned")
			return nil
		case proto.MessageResponse:
			if err := applyResponse(r, chk, req, reply.Reply); err != nil {
				return fmt.Errorf("client %d: %w", clientID, err)
			}
			prevIteration = reply.Reply.Iteration
		default:
			log.Debug("client actor ignoring reserved message", "type", reply.Type)
		}
	}
}

func applyResponse(r replica.Replica, chk *checker.Checker, req *proto.Request, resp *proto.Response) error {
	if req.Kind == proto.ReqLoadState {
		r.ApplySnapshot(resp.Cells, resp.Deltas)
		if err := chk.Check(r, resp.Cells); err != nil {
			return fmt.Errorf("snapshot mismatch: %w", err)
		}
		return nil
	}
	r.ApplyDeltas(resp.Deltas)
	return nil
}
