// Package history implements the server's append-only modification log
// and per-client watermark tracking (component C2): a deque of
// Modifications stamped by iteration, a map of client watermarks, a
// min-heap yielding the slowest watermark, and compaction that drains
// history into C1 once every client has seen it.
//
// Like internal/cellseq, a Log is owned exclusively by the server
// actor and takes no lock of its own.
package history

import (
	"container/heap"

	"seqsync/internal/proto"
)

// Sequence is the slice of internal/cellseq.Sequence that history needs:
// dropping the reference a compacted entry held, and resolving a
// possibly-stale anchor or cell value at delta-shipping time.
type Sequence interface {
	Unref(id proto.CellID)
	ResolveAnchor(id proto.CellID) proto.CellID
	CurrentValue(id proto.CellID) (uint32, bool)
}

// Log is the deque of modifications plus watermark bookkeeping.
type Log struct {
	seq Sequence

	entries []proto.Modification // entries[i] was recorded at iteration lastCut+1+i
	lastCut proto.IterationID

	watermarks map[proto.ClientID]proto.IterationID
	pending    watermarkHeap // lazy (watermark, client) pairs; map is authoritative
}

// New returns an empty log backed by seq for compaction and delta
// rewriting.
func New(seq Sequence) *Log {
	return &Log{
		seq:        seq,
		watermarks: make(map[proto.ClientID]proto.IterationID),
	}
}

// CurrentIteration is lastCut plus the number of retained entries —
// the iteration of the most recently appended modification.
func (l *Log) CurrentIteration() proto.IterationID {
	return l.lastCut + proto.IterationID(len(l.entries))
}

// Append records one modification at the next iteration; storing it is
// what advances CurrentIteration by one. The caller (C3) is responsible
// for having cellseq hold the references this entry names; Append only
// stores it.
func (l *Log) Append(m proto.Modification) {
	l.entries = append(l.entries, m)
}

// AdvanceClient records clientId's acknowledged iteration. newWatermark
// is clamped to the current iteration; a regression (newWatermark less
// than the client's existing watermark) is ignored rather than
// applied, per the monotonic watermark invariant.
func (l *Log) AdvanceClient(clientID proto.ClientID, newWatermark proto.IterationID) proto.IterationID {
	if cur := l.CurrentIteration(); newWatermark > cur {
		newWatermark = cur
	}
	if existing, ok := l.watermarks[clientID]; ok && newWatermark < existing {
		newWatermark = existing
	}
	l.watermarks[clientID] = newWatermark
	heap.Push(&l.pending, watermarkHeapEntry{watermark: newWatermark, client: clientID})
	return newWatermark
}

// minWatermark returns the smallest watermark among known clients, or
// the current iteration if there are none yet — nothing to retain for
// nobody. Heap entries that no longer agree with the watermark map
// (superseded by a later AdvanceClient for the same client) are
// dropped lazily as they surface.
func (l *Log) minWatermark() proto.IterationID {
	for l.pending.Len() > 0 {
		top := l.pending[0]
		if l.watermarks[top.client] != top.watermark {
			heap.Pop(&l.pending)
			continue
		}
		return top.watermark
	}
	return l.CurrentIteration()
}

// Compact applies every history entry at an iteration at or below the
// minimum live watermark physically to C1 (dropping the reference the
// entry held) and discards it. A Delete entry's target is only
// physically unlinked once cellseq's own refcount agrees no later
// entry (or nearLive edge) still names it — Compact does not need to
// special-case the ordering itself.
func (l *Log) Compact() {
	w := l.minWatermark()
	if w <= l.lastCut {
		return
	}
	drain := int(w - l.lastCut)
	if drain > len(l.entries) {
		drain = len(l.entries)
	}
	for i := 0; i < drain; i++ {
		l.release(l.entries[i])
	}
	l.entries = l.entries[drain:]
	l.lastCut += proto.IterationID(drain)
}

func (l *Log) release(m proto.Modification) {
	switch m.K {
	case proto.ModUpdate:
		l.seq.Unref(m.Cell.ID)
	case proto.ModInsert:
		l.seq.Unref(m.Cell.ID)
		l.seq.Unref(m.NearCellID)
	case proto.ModDelete:
		l.seq.Unref(m.DeletedID)
	}
}

// DeltasFor slices the retained history from clientID's watermark to
// the current iteration, split into the three streams the wire format
// carries. Inserts are rewritten to their anchor's current nearest live
// predecessor (the anchor itself while it is live) and Updates to the cell's
// current value, so a client that is behind by more than one
// modification to the same cell still converges in one response.
func (l *Log) DeltasFor(clientID proto.ClientID) proto.Deltas {
	from := l.watermarks[clientID]
	if from < l.lastCut {
		from = l.lastCut // HistoryStale: nothing further back is retained
	}
	start := int(from - l.lastCut)
	if start < 0 || start > len(l.entries) {
		return proto.Deltas{}
	}

	var d proto.Deltas
	for _, m := range l.entries[start:] {
		switch m.K {
		case proto.ModUpdate:
			u := m
			if v, ok := l.seq.CurrentValue(u.Cell.ID); ok {
				u.Cell.Value = v
			}
			d.Updates = append(d.Updates, u)
		case proto.ModInsert:
			ins := m
			ins.NearCellID = l.seq.ResolveAnchor(ins.NearCellID)
			d.Inserts = append(d.Inserts, ins)
		case proto.ModDelete:
			d.Deletes = append(d.Deletes, m)
		}
	}
	return d
}

// Watermark returns clientID's last acknowledged iteration (0 if never
// observed).
func (l *Log) Watermark(clientID proto.ClientID) proto.IterationID {
	return l.watermarks[clientID]
}

// Len returns the number of retained (not yet compacted) entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// watermarkHeapEntry is one (watermark, client) pair tracked by the
// min-heap; stale entries are recognized and skipped lazily (see
// minWatermark) rather than hunted down and removed on update.
type watermarkHeapEntry struct {
	watermark proto.IterationID
	client    proto.ClientID
}

type watermarkHeap []watermarkHeapEntry

func (h watermarkHeap) Len() int            { return len(h) }
func (h watermarkHeap) Less(i, j int) bool  { return h[i].watermark < h[j].watermark }
func (h watermarkHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *watermarkHeap) Push(x interface{}) { *h = append(*h, x.(watermarkHeapEntry)) }
func (h *watermarkHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
