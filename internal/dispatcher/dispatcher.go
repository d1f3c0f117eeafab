// Package dispatcher implements the server's request dispatcher
// (component C3): apply one request against the ordered sequence,
// advance the client's watermark, attach the deltas it hasn't seen,
// and compact history — one request at a time, in the server actor's
// single receive loop.
package dispatcher

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"seqsync/internal/cellseq"
	"seqsync/internal/history"
	"seqsync/internal/proto"
)

// Dispatcher wires C1 and C2 together and builds responses.
type Dispatcher struct {
	seq    *cellseq.Sequence
	log    *history.Log
	tracer trace.Tracer

	delayedHistory bool
	pending        map[proto.ClientID]bufferedResponse
}

// bufferedResponse holds the one response cycle's worth of deltas a
// WithDelayedHistory dispatcher is sitting on for a client.
type bufferedResponse struct {
	iteration proto.IterationID
	deltas    proto.Deltas
}

// Option configures optional Dispatcher behavior (spec §6 With* flags).
type Option func(*Dispatcher)

// WithDelayedHistory makes every response carry the *previous*
// cycle's deltas instead of the fresh ones: the first response to a
// client after enabling carries iteration=request.previousIteration
// and no deltas, and every one after that carries what would have
// been the prior response's fresh batch. Data is deferred, never
// dropped (§9 Open Question 1).
func WithDelayedHistory(enabled bool) Option {
	return func(d *Dispatcher) { d.delayedHistory = enabled }
}

// New returns a Dispatcher over seq and log. tracer may be nil, in
// which case spans are skipped (otel's noop tracer does the same, but
// callers in tests rarely want to wire one up).
func New(seq *cellseq.Sequence, log *history.Log, tracer trace.Tracer, opts ...Option) *Dispatcher {
	d := &Dispatcher{seq: seq, log: log, tracer: tracer, pending: make(map[proto.ClientID]bufferedResponse)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one request from clientID and returns the response
// to send back over the bus. It never errors at the protocol level
// (§7): every failure mode the core can hit is a silent no-op baked
// into the response.
func (d *Dispatcher) Handle(ctx context.Context, clientID proto.ClientID, req *proto.Request) *proto.Response {
	if d.tracer != nil {
		var span trace.Span
		_, span = d.tracer.Start(ctx, "dispatch."+requestName(req.Kind), trace.WithAttributes(
			attribute.Int64("seqsync.client_id", int64(clientID)),
			attribute.Int64("seqsync.request_kind", int64(req.Kind)),
		))
		defer span.End()
	}

	resp := &proto.Response{RequestKind: req.Kind}

	switch req.Kind {
	case proto.ReqUpdateValue:
		if d.seq.UpdateValue(req.CellID, req.Value) {
			at := d.log.CurrentIteration() + 1
			d.log.Append(proto.Modification{At: at, K: proto.ModUpdate, Cell: proto.Cell{ID: req.CellID, Value: req.Value}})
		}
	case proto.ReqInsertValue:
		newID, near := d.seq.InsertValue(req.NearCellID, req.Value)
		at := d.log.CurrentIteration() + 1
		d.log.Append(proto.Modification{At: at, K: proto.ModInsert, Cell: proto.Cell{ID: newID, Value: req.Value}, NearCellID: near})
		resp.NewCellID = newID
	case proto.ReqDeleteValue:
		if d.seq.DeleteValue(req.CellID) {
			at := d.log.CurrentIteration() + 1
			d.log.Append(proto.Modification{At: at, K: proto.ModDelete, DeletedID: req.CellID})
		}
	case proto.ReqLoadState:
		resp.Cells = d.seq.Snapshot()
	case proto.ReqSync:
		// nothing to apply; deltas below carry everything.
	}

	d.log.AdvanceClient(clientID, req.PreviousIteration)
	resp.Deltas = d.log.DeltasFor(clientID)
	resp.Iteration = d.log.CurrentIteration()

	if d.delayedHistory {
		buf, had := d.pending[clientID]
		d.pending[clientID] = bufferedResponse{iteration: resp.Iteration, deltas: resp.Deltas}
		if had {
			resp.Iteration = buf.iteration
			resp.Deltas = buf.deltas
		} else {
			resp.Iteration = req.PreviousIteration
			resp.Deltas = proto.Deltas{}
		}
	}

	d.log.Compact()

	return resp
}

func requestName(k proto.RequestKind) string {
	switch k {
	case proto.ReqLoadState:
		return "load_state"
	case proto.ReqUpdateValue:
		return "update_value"
	case proto.ReqInsertValue:
		return "insert_value"
	case proto.ReqDeleteValue:
		return "delete_value"
	case proto.ReqSync:
		return "sync"
	default:
		return "unknown"
	}
}
