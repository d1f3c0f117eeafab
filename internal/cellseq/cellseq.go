// Package cellseq implements the server's canonical ordered sequence of
// cells (component C1): a doubly linked arena of nodes with tombstones
// and a nearLive redirection graph, so an insert that names a deleted
// cell still resolves to a live splice point.
//
// A Sequence is owned exclusively by the server actor; every method
// here assumes single-threaded, serialized access (see internal/dispatcher)
// and takes no lock of its own.
package cellseq

import (
	"seqsync/internal/check"
	"seqsync/internal/proto"
)

// node flattens the four concerns the source mixes via inheritance —
// cell data, list links, tombstone flag, nearLive back-edge — onto one
// record with four fields.
type node struct {
	id    proto.CellID
	value uint32

	prev, next *node
	nearLive   *node

	deleted  bool
	refCount int // references beyond the node's own list linkage
}

// Sequence is the arena of cell nodes plus the head sentinel (CellID 0).
type Sequence struct {
	head   *node
	nodes  map[proto.CellID]*node
	nextID proto.CellID
}

// New returns an empty sequence holding only the head sentinel.
func New() *Sequence {
	head := &node{id: proto.SentinelCellID}
	return &Sequence{
		head:   head,
		nodes:  map[proto.CellID]*node{proto.SentinelCellID: head},
		nextID: 1,
	}
}

// Seed populates the sequence with values in order, ahead of any client
// request. It mints ids the same way InsertValue does but skips
// refcount and nearLive bookkeeping — there is no history yet for a
// seeded cell to be named by.
func (s *Sequence) Seed(values []uint32) []proto.CellID {
	ids := make([]proto.CellID, 0, len(values))
	prev := s.head
	for _, v := range values {
		n := s.spliceAfter(prev, v)
		ids = append(ids, n.id)
		prev = n
	}
	return ids
}

func (s *Sequence) spliceAfter(prev *node, value uint32) *node {
	n := &node{id: s.nextID, value: value}
	s.nextID++
	n.prev = prev
	n.next = prev.next
	if prev.next != nil {
		prev.next.prev = n
	}
	prev.next = n
	s.nodes[n.id] = n
	return n
}

// resolveAnchor walks the nearLive chain from id to the node that
// should serve as the current splice point, path-compressing every
// intermediate node it passes through directly onto that terminal node
// (spec: "each walked tombstone has its nearLive rewritten to L").
// The terminal is usually live; it can also be a tombstone that ends a
// forward chain (see DeleteValue), which is then used as the splice
// point as is. An unknown id resolves to the head sentinel
// (AnchorResolvesToSentinel).
func (s *Sequence) resolveAnchor(id proto.CellID) *node {
	n, ok := s.nodes[id]
	if !ok {
		return s.head
	}
	if n.nearLive == nil {
		return n
	}
	var visited []*node
	cur := n
	for cur.nearLive != nil {
		visited = append(visited, cur)
		cur = cur.nearLive
	}
	for _, v := range visited {
		// An earlier unref in this loop can cascade into unlinking v,
		// which clears its edge; skip it then.
		if v.nearLive != nil && v.nearLive != cur {
			s.ref(cur) // before the unref, so a cascade cannot free cur
			s.unref(v.nearLive)
			v.nearLive = cur
		}
	}
	return cur
}

// ResolveAnchor returns the current nearest live predecessor of id, so
// C2 can rewrite a stale Insert's nearCellId before shipping it to a
// client: id itself while it is live, otherwise the closest live node
// before it in list order (the head sentinel at worst). It does not
// follow nearLive edges, which point forward at cells inserted later,
// and so never touches reference counts. An unknown id resolves to the
// head sentinel.
func (s *Sequence) ResolveAnchor(id proto.CellID) proto.CellID {
	n, ok := s.nodes[id]
	if !ok {
		return proto.SentinelCellID
	}
	if !n.deleted {
		return n.id
	}
	return s.livePredecessor(n).id
}

func (s *Sequence) ref(n *node) {
	n.refCount++
}

// unref drops one reference. A tombstoned node whose references have
// fully drained is physically unlinked and freed right here, rather
// than in a separate sweep — correctness only requires that the same
// id isn't unreffed twice for one cause, which callers (history
// compaction, anchor retargeting) each uphold individually.
func (s *Sequence) unref(n *node) {
	n.refCount--
	check.Assertf(n.refCount >= 0, "cellseq: refcount underflow on cell %d", n.id)
	if n.deleted && n.refCount <= 0 {
		s.unlink(n)
	}
}

func (s *Sequence) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	delete(s.nodes, n.id)

	// n's own outgoing nearLive edge (if any) holds a reference on its
	// target; drop it now that n is gone, or that target can never
	// reach refcount 0 itself. Clear the edge first so a reentrant
	// unlink (this unref can cascade into another unlink) never walks
	// back through n.
	if target := n.nearLive; target != nil {
		n.nearLive = nil
		s.unref(target)
	}
}

// Ref adds one reference to cellID on behalf of an unsettled history
// entry that names it. A no-op if the id is already gone.
func (s *Sequence) Ref(id proto.CellID) {
	if n, ok := s.nodes[id]; ok {
		s.ref(n)
	}
}

// Unref drops the reference a compacted history entry held.
func (s *Sequence) Unref(id proto.CellID) {
	if n, ok := s.nodes[id]; ok {
		s.unref(n)
	}
}

// InsertValue mints a new cell immediately after the resolved
// anchor of nearCellID and returns its id plus the anchor actually
// used, which the caller records as the Insert modification's
// NearCellID (it may differ from nearCellID if that named a tombstone).
//
// The anchor's nearLive edge is then pointed at the new node. This
// keeps later inserts against the same logical position — directly, or
// via a tombstone chain that still resolves here — landing after the
// most recent one, in insertion-time order, rather than clustering
// right behind the original anchor.
func (s *Sequence) InsertValue(nearCellID proto.CellID, value uint32) (newID, resolvedNear proto.CellID) {
	anchor := s.resolveAnchor(nearCellID)
	n := s.spliceAfter(anchor, value)
	if anchor.nearLive != nil {
		s.unref(anchor.nearLive)
	}
	s.ref(n) // anchor.nearLive edge now targets n
	anchor.nearLive = n

	// The new Insert history entry names both the new cell and the
	// anchor; hold a reference for each until compaction drains it.
	s.ref(n)
	s.ref(anchor)
	return n.id, anchor.id
}

// UpdateValue sets a live cell's value. ok is false if cellID is
// tombstoned or unknown — RequestTargetsTombstone, a silent no-op.
func (s *Sequence) UpdateValue(cellID proto.CellID, value uint32) (ok bool) {
	n, exists := s.nodes[cellID]
	if !exists || n.deleted {
		return false
	}
	n.value = value
	s.ref(n) // held by the new Update history entry
	return true
}

// DeleteValue tombstones a live cell. ok is false if it is already
// tombstoned or unknown (no-op; deleting twice never re-advances the
// iteration, per the no-op-on-tombstone variant — §9 Open Question 3).
func (s *Sequence) DeleteValue(cellID proto.CellID) (ok bool) {
	n, exists := s.nodes[cellID]
	if !exists || n.deleted {
		return false
	}
	n.deleted = true
	if n.nearLive == nil {
		pred := s.livePredecessor(n)
		// If pred's forward chain already reaches n (directly, or
		// through tombstones between them), n is already the terminal
		// of pred's chain — pointing n back at pred would close a
		// cycle. Leave n.nearLive nil; n stays the (now tombstoned)
		// terminal, same as a dead node anywhere else in a forward chain.
		reaches := false
		for c := pred; c != nil; c = c.nearLive {
			if c == n {
				reaches = true
				break
			}
		}
		if !reaches {
			s.ref(pred)
			n.nearLive = pred
		}
	}
	s.ref(n) // held by the new Delete history entry
	return true
}

// livePredecessor walks backward from n, skipping tombstones, to the
// immediately preceding live node — at worst the head sentinel.
func (s *Sequence) livePredecessor(n *node) *node {
	cur := n.prev
	for cur != nil && cur.deleted {
		cur = cur.prev
	}
	if cur == nil {
		return s.head
	}
	return cur
}

// Snapshot returns the live cells in list order, head to tail.
func (s *Sequence) Snapshot() []proto.Cell {
	var cells []proto.Cell
	for n := s.head.next; n != nil; n = n.next {
		if !n.deleted {
			cells = append(cells, proto.Cell{ID: n.id, Value: n.value})
		}
	}
	return cells
}

// Exists reports whether cellID still names a node, live or
// tombstoned-but-not-yet-unlinked.
func (s *Sequence) Exists(id proto.CellID) bool {
	_, ok := s.nodes[id]
	return ok
}

// IsDeleted reports whether cellID is tombstoned. An unknown id
// reports false; check Exists first if the distinction matters.
func (s *Sequence) IsDeleted(id proto.CellID) bool {
	n, ok := s.nodes[id]
	return ok && n.deleted
}

// CurrentValue returns cellID's live value, used by history to ship
// the freshest value for a batched Update rather than the one recorded
// at append time. ok is false for a tombstoned or unknown id.
func (s *Sequence) CurrentValue(id proto.CellID) (uint32, bool) {
	n, ok := s.nodes[id]
	if !ok || n.deleted {
		return 0, false
	}
	return n.value, true
}

// Len returns the number of live cells (excludes the head sentinel and
// any tombstoned-but-not-yet-unlinked nodes).
func (s *Sequence) Len() int {
	n := 0
	for cur := s.head.next; cur != nil; cur = cur.next {
		if !cur.deleted {
			n++
		}
	}
	return n
}
