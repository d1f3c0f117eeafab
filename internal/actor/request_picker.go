package actor

import (
	"math/rand/v2"

	"seqsync/internal/config"
	"seqsync/internal/proto"
	"seqsync/internal/replica"
)

// Picker generates the next request a client actor sends, given its
// replica and the last iteration it observed. RunClient depends on
// this interface rather than *RequestPicker directly so tests can
// substitute deterministic sequences.
type Picker interface {
	Next(r replica.Replica, prevIteration proto.IterationID) *proto.Request
}

// RequestPicker generates one request per client tick, choosing
// uniformly among the request kinds the run profile allows and
// delegating anchor/cell-id selection to the client's own replica.
// Grounded on original_source/src/actors/client.cpp's per-tick
// uniform choice among {LoadState, UpdateValue, InsertValue,
// DeleteValue, Sync}, gated by UserSendLoadState/UserSendSync.
type RequestPicker struct {
	rng *rand.Rand
	cfg config.Config
}

// NewRequestPicker seeds a picker deterministically from seed. The
// harness draws seed from its own master RNG per client, so the same
// run seed always produces the same per-client request stream.
func NewRequestPicker(seed uint64, cfg config.Config) *RequestPicker {
	return &RequestPicker{
		rng: rand.New(rand.NewPCG(seed, seed^0xd1b54a32d192ed03)),
		cfg: cfg,
	}
}

// Next returns the next request to send, given the client's current
// replica (for anchor/cell-id selection) and the iteration it last
// observed.
func (p *RequestPicker) Next(r replica.Replica, prevIteration proto.IterationID) *proto.Request {
	kind := p.pickKind()
	req := &proto.Request{Kind: kind, PreviousIteration: prevIteration}

	switch kind {
	case proto.ReqUpdateValue:
		id, ok := r.PickCellForUpdate(p.rng)
		if !ok {
			return p.emptyReplicaFallback(r, req)
		}
		req.CellID = id
		req.Value = p.rng.Uint32()
	case proto.ReqInsertValue:
		req.NearCellID = r.PickInsertionAnchor(p.rng)
		req.Value = p.rng.Uint32()
	case proto.ReqDeleteValue:
		id, ok := r.PickCellForDeletion(p.rng)
		if !ok {
			return p.emptyReplicaFallback(r, req)
		}
		req.CellID = id
	}
	return req
}

// emptyReplicaFallback replaces an Update or Delete that an empty
// replica has no cell for: a Sync when the profile allows Sync,
// otherwise an Insert.
func (p *RequestPicker) emptyReplicaFallback(r replica.Replica, req *proto.Request) *proto.Request {
	if p.cfg.UserSendSync {
		req.Kind = proto.ReqSync
		return req
	}
	req.Kind = proto.ReqInsertValue
	req.NearCellID = r.PickInsertionAnchor(p.rng)
	req.Value = p.rng.Uint32()
	return req
}

func (p *RequestPicker) pickKind() proto.RequestKind {
	kinds := p.enabledKinds()
	return kinds[p.rng.IntN(len(kinds))]
}

func (p *RequestPicker) enabledKinds() []proto.RequestKind {
	kinds := []proto.RequestKind{proto.ReqUpdateValue, proto.ReqInsertValue, proto.ReqDeleteValue}
	if p.cfg.UserSendLoadState {
		kinds = append(kinds, proto.ReqLoadState)
	}
	if p.cfg.UserSendSync {
		kinds = append(kinds, proto.ReqSync)
	}
	return kinds
}
