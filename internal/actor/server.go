// Package actor implements the thread-per-actor harness pieces the
// core needs but doesn't own: the server's receive loop, each
// client's receive-and-generate loop, and the random request picker
// the harness drives clients with. Modeled on the teacher's
// internal/engine worker-loop shape (context lifecycle, slog
// component scoping) and original_source/src/actors/{server,client}.cpp
// for per-request dispatch and poison handling.
package actor

import (
	"context"
	"log/slog"

	"seqsync/internal/bus"
	"seqsync/internal/config"
	"seqsync/internal/dispatcher"
	"seqsync/internal/proto"
)

// RunServer drives the server actor's receive loop: one request at a
// time off its mailbox, dispatched, replied to the sender, until a
// poison message arrives. Mirrors the "finish the message in hand"
// rule of §5. The loop never checks ctx for cancellation, since the
// only blocking operation the model allows is mailbox receive; ctx is
// only passed on to the dispatcher as the parent of its request spans.
func RunServer(ctx context.Context, b *bus.Bus, disp *dispatcher.Dispatcher, cfg config.Config) error {
	mailbox := b.Mailbox(proto.ServerID)
	log := slog.With("component", "server-actor")
	log.Debug("server actor starting")

	for {
		env := mailbox.Receive()
		switch env.Type {
		case proto.MessagePoison:
			log.Debug("server actor poisoned")
			return nil
		case proto.MessageRequest:
			resp := disp.Handle(ctx, env.Sender, env.Request)
			reply := proto.Envelope{Type: proto.MessageResponse, Sender: proto.ServerID, Reply: resp}
			reply.ComputeSize(cfg.WithSizeCalculation)
			b.Send(env.Sender, reply)
		default:
			log.Debug("server actor ignoring reserved message", "type", env.Type)
		}
	}
}
