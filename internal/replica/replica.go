// Package replica implements the client-side ordered container
// (component C4): a replica of the server's cell sequence that applies
// deltas idempotently and reconciles inserts whose anchor hasn't
// arrived yet. Two interchangeable backing containers share one
// contract — a linear "slow" scan and an implicit-key treap "fast"
// variant — both exercised through Replica.
package replica

import (
	"math/rand/v2"

	"seqsync/internal/proto"
)

// Replica is the contract both client replica variants satisfy.
type Replica interface {
	PickCellForUpdate(rng *rand.Rand) (proto.CellID, bool)
	PickInsertionAnchor(rng *rand.Rand) proto.CellID
	PickCellForDeletion(rng *rand.Rand) (proto.CellID, bool)
	ApplyDeltas(d proto.Deltas)
	ApplySnapshot(cells []proto.Cell, d proto.Deltas)
	Snapshot() []proto.Cell
	Len() int
}

// container is the ordered-sequence primitive each variant provides;
// Base implements the shared delta-reconciliation algorithm on top of
// whichever one it's given.
type container interface {
	has(id proto.CellID) bool
	len() int
	cellAt(i int) proto.Cell
	insertAfter(anchor proto.CellID, cell proto.Cell) bool
	remove(id proto.CellID)
	setValue(id proto.CellID, value uint32) bool
	snapshot() []proto.Cell
	initFrom(cells []proto.Cell)
}

// Base applies deltas the same way regardless of the backing
// container: postponed updates for cells not yet locally known, and a
// pending-inserts queue keyed by a missing anchor, drained recursively
// as each anchor finally arrives.
type Base struct {
	c               container
	pendingInserts  map[proto.CellID][]proto.Modification
	pendingUpdates  map[proto.CellID]uint32
	haveFirstSnapshot bool
}

func newBase(c container) *Base {
	return &Base{
		c:              c,
		pendingInserts: make(map[proto.CellID][]proto.Modification),
		pendingUpdates: make(map[proto.CellID]uint32),
	}
}

// ApplyDeltas applies one response's three streams in the order the
// wire format requires: inserts, then updates, then deletes (so an
// update to a cell inserted earlier in the same batch, and an insert
// anchored on a cell deleted earlier in the same batch, both resolve
// correctly).
func (b *Base) ApplyDeltas(d proto.Deltas) {
	for _, ins := range d.Inserts {
		b.applyInsert(ins)
	}
	for _, upd := range d.Updates {
		b.applyUpdate(upd)
	}
	for _, del := range d.Deletes {
		b.applyDelete(del)
	}
}

func (b *Base) applyInsert(m proto.Modification) {
	if b.c.has(m.Cell.ID) {
		return // already placed; a repeated Insert is a no-op
	}
	if m.NearCellID == proto.SentinelCellID || b.c.has(m.NearCellID) {
		b.c.insertAfter(m.NearCellID, m.Cell)
		b.drain(m.Cell.ID)
		return
	}
	b.pendingInserts[m.NearCellID] = append(b.pendingInserts[m.NearCellID], m)
}

// drain resolves anything waiting on id now that it has been placed:
// queued inserts anchored on it, recursively, and a postponed update
// for it.
func (b *Base) drain(id proto.CellID) {
	if queued, ok := b.pendingInserts[id]; ok {
		delete(b.pendingInserts, id)
		for _, m := range queued {
			b.applyInsert(m)
		}
	}
	if v, ok := b.pendingUpdates[id]; ok {
		delete(b.pendingUpdates, id)
		b.c.setValue(id, v)
	}
}

func (b *Base) applyUpdate(m proto.Modification) {
	if !b.c.setValue(m.Cell.ID, m.Cell.Value) {
		b.pendingUpdates[m.Cell.ID] = m.Cell.Value
	}
}

func (b *Base) applyDelete(m proto.Modification) {
	delete(b.pendingInserts, m.DeletedID)
	delete(b.pendingUpdates, m.DeletedID)
	b.c.remove(m.DeletedID)
}

// ApplySnapshot initializes the replica verbatim on first receipt, or
// applies the accompanying deltas on every later one — convergence
// checking against the snapshot's cells is C5's job, which needs the
// replica's resulting Snapshot() to compare against.
func (b *Base) ApplySnapshot(cells []proto.Cell, d proto.Deltas) {
	if !b.haveFirstSnapshot {
		b.c.initFrom(cells)
		b.haveFirstSnapshot = true
		return
	}
	b.ApplyDeltas(d)
}

func (b *Base) Snapshot() []proto.Cell { return b.c.snapshot() }
func (b *Base) Len() int               { return b.c.len() }

// PickCellForUpdate chooses uniformly among live cells.
func (b *Base) PickCellForUpdate(rng *rand.Rand) (proto.CellID, bool) {
	n := b.c.len()
	if n == 0 {
		return 0, false
	}
	return b.c.cellAt(rng.IntN(n)).ID, true
}

// PickInsertionAnchor chooses uniformly over {0 (head), live cells}.
func (b *Base) PickInsertionAnchor(rng *rand.Rand) proto.CellID {
	n := b.c.len()
	i := rng.IntN(n + 1)
	if i == 0 {
		return proto.SentinelCellID
	}
	return b.c.cellAt(i - 1).ID
}

// PickCellForDeletion chooses uniformly among live cells.
func (b *Base) PickCellForDeletion(rng *rand.Rand) (proto.CellID, bool) {
	n := b.c.len()
	if n == 0 {
		return 0, false
	}
	return b.c.cellAt(rng.IntN(n)).ID, true
}
