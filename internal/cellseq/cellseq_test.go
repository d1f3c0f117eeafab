package cellseq

import (
	"reflect"
	"testing"
	"time"

	"seqsync/internal/proto"
)

func cells(pairs ...[2]uint64) []proto.Cell {
	out := make([]proto.Cell, len(pairs))
	for i, p := range pairs {
		out[i] = proto.Cell{ID: proto.CellID(p[0]), Value: uint32(p[1])}
	}
	return out
}

func TestSeedThenSnapshot(t *testing.T) {
	s := New()
	ids := s.Seed([]uint32{10, 20, 30})
	if got, want := ids, []proto.CellID{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("seed ids = %v, want %v", got, want)
	}
	got := s.Snapshot()
	want := cells([2]uint64{1, 10}, [2]uint64{2, 20}, [2]uint64{3, 30})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
}

// TestBasicOrdering is scenario S1: insert after a live cell lands
// immediately behind it.
func TestBasicOrdering(t *testing.T) {
	s := New()
	s.Seed([]uint32{10, 20, 30})

	newID, near := s.InsertValue(2, 99)
	if newID != 4 {
		t.Fatalf("newID = %d, want 4", newID)
	}
	if near != 2 {
		t.Fatalf("resolved near = %d, want 2", near)
	}

	got := s.Snapshot()
	want := cells([2]uint64{1, 10}, [2]uint64{2, 20}, [2]uint64{4, 99}, [2]uint64{3, 30})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
}

// TestInsertAfterDeletion is scenario S2: deleting the anchor cell and
// then inserting against it again must land the new cell after
// whatever was already inserted there, not before.
func TestInsertAfterDeletion(t *testing.T) {
	s := New()
	s.Seed([]uint32{10, 20, 30})
	s.InsertValue(2, 99) // newID=4

	if ok := s.DeleteValue(2); !ok {
		t.Fatal("DeleteValue(2) = false, want true")
	}

	newID, _ := s.InsertValue(2, 77)
	if newID != 5 {
		t.Fatalf("newID = %d, want 5", newID)
	}

	got := s.Snapshot()
	want := cells([2]uint64{1, 10}, [2]uint64{4, 99}, [2]uint64{5, 77}, [2]uint64{3, 30})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
}

func TestUpdateTombstoneIsNoop(t *testing.T) {
	s := New()
	s.Seed([]uint32{10, 20})
	s.DeleteValue(2)

	if ok := s.UpdateValue(2, 99); ok {
		t.Fatal("UpdateValue on tombstoned cell = true, want false")
	}
	if ok := s.DeleteValue(2); ok {
		t.Fatal("second DeleteValue = true, want false")
	}
}

func TestInsertAfterUnknownAnchorResolvesToHead(t *testing.T) {
	s := New()
	s.Seed([]uint32{10})

	newID, near := s.InsertValue(999, 5)
	if near != proto.SentinelCellID {
		t.Fatalf("resolved near = %d, want sentinel", near)
	}
	got := s.Snapshot()
	want := cells([2]uint64{uint64(newID), 5}, [2]uint64{1, 10})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
}

// TestDeleteThenRefDrainUnlinks exercises refcount-driven physical
// removal: once the only reference on a tombstoned node (the history
// entry that named it) is dropped, the node leaves the arena.
func TestDeleteThenRefDrainUnlinks(t *testing.T) {
	s := New()
	s.Seed([]uint32{10, 20, 30})

	s.DeleteValue(2) // refs cell 2 once, for its own Delete history entry

	if !s.Exists(2) {
		t.Fatal("cell 2 unlinked too early")
	}

	s.Unref(2) // history entry compacted, last reference drains

	if s.Exists(2) {
		t.Fatal("cell 2 still present after all references drained")
	}
	got := s.Snapshot()
	want := cells([2]uint64{1, 10}, [2]uint64{3, 30})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
}

// TestInsertDeleteFreshAnchorDoesNotCycle guards against a nearLive
// cycle between a live anchor and the cell most recently inserted
// against it: insert creates a forward edge anchor->new, and deleting
// new (before anything else is inserted near it) must not also point
// new back at anchor, or resolveAnchor's walk never terminates.
func TestInsertDeleteFreshAnchorDoesNotCycle(t *testing.T) {
	s := New()
	s.Seed([]uint32{10, 20})

	newID, _ := s.InsertValue(1, 99) // cell1.nearLive = newID
	if ok := s.DeleteValue(newID); !ok {
		t.Fatalf("DeleteValue(%d) = false, want true", newID)
	}

	done := make(chan proto.CellID, 1)
	go func() {
		id, _ := s.InsertValue(1, 55)
		done <- id
	}()

	select {
	case id := <-done:
		if id == 0 {
			t.Fatal("InsertValue(near=1) returned the sentinel id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("InsertValue(near=1) hung — nearLive cycle between cell 1 and its deleted insert")
	}
}

// TestUnlinkReleasesOutgoingNearLiveReference guards against a
// refcount leak: unlinking a tombstoned node must drop the reference
// its own nearLive edge held on its target, or that target can never
// itself reach refcount 0 and physically unlink.
func TestUnlinkReleasesOutgoingNearLiveReference(t *testing.T) {
	s := New()
	s.Seed([]uint32{10, 20}) // cell 1, cell 2

	s.DeleteValue(2) // cell2.nearLive = cell1, refs cell1 once
	s.Unref(2)       // drains cell2's own history-entry ref, unlinks it

	if s.Exists(2) {
		t.Fatal("cell 2 still present after its only reference drained")
	}

	s.DeleteValue(1) // cell1.nearLive = head, refs head once
	s.Unref(1)       // drains cell1's own history-entry ref

	if s.Exists(1) {
		t.Fatal("cell 1 still present: the nearLive edge cell2 held on it was never released, leaking a reference")
	}
}

func TestLen(t *testing.T) {
	s := New()
	s.Seed([]uint32{1, 2, 3})
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	s.DeleteValue(2)
	if s.Len() != 2 {
		t.Fatalf("Len() after delete = %d, want 2", s.Len())
	}
}
