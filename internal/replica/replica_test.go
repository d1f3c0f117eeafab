package replica

import (
	"reflect"
	"testing"

	"seqsync/internal/proto"
)

func variants() map[string]func() Replica {
	return map[string]func() Replica{
		"slow": func() Replica { return NewSlow() },
		"fast": func() Replica { return NewFast(1) },
	}
}

func TestApplySnapshotThenDeltas(t *testing.T) {
	for name, make := range variants() {
		t.Run(name, func(t *testing.T) {
			r := make()
			r.ApplySnapshot([]proto.Cell{{ID: 1, Value: 10}, {ID: 2, Value: 20}}, proto.Deltas{})

			r.ApplyDeltas(proto.Deltas{
				Inserts: []proto.Modification{{K: proto.ModInsert, NearCellID: 1, Cell: proto.Cell{ID: 3, Value: 30}}},
				Updates: []proto.Modification{{K: proto.ModUpdate, Cell: proto.Cell{ID: 2, Value: 99}}},
			})

			got := r.Snapshot()
			want := []proto.Cell{{ID: 1, Value: 10}, {ID: 3, Value: 30}, {ID: 2, Value: 99}}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("snapshot = %v, want %v", got, want)
			}
		})
	}
}

// TestPostponedInsert is scenario S4: an insert referencing a
// not-yet-known anchor must queue, then drain once the anchor lands.
func TestPostponedInsert(t *testing.T) {
	for name, make := range variants() {
		t.Run(name, func(t *testing.T) {
			r := make()
			r.ApplySnapshot([]proto.Cell{{ID: 1, Value: 1}}, proto.Deltas{})

			r.ApplyDeltas(proto.Deltas{
				Inserts: []proto.Modification{
					{K: proto.ModInsert, NearCellID: 7, Cell: proto.Cell{ID: 8, Value: 80}},
					{K: proto.ModInsert, NearCellID: 1, Cell: proto.Cell{ID: 7, Value: 70}},
				},
			})

			got := r.Snapshot()
			want := []proto.Cell{{ID: 1, Value: 1}, {ID: 7, Value: 70}, {ID: 8, Value: 80}}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("snapshot = %v, want %v", got, want)
			}
		})
	}
}

func TestPostponedUpdateDrainsOnInsert(t *testing.T) {
	for name, make := range variants() {
		t.Run(name, func(t *testing.T) {
			r := make()
			r.ApplySnapshot([]proto.Cell{{ID: 1, Value: 1}}, proto.Deltas{})

			r.ApplyDeltas(proto.Deltas{
				Updates: []proto.Modification{{K: proto.ModUpdate, Cell: proto.Cell{ID: 2, Value: 55}}},
			})
			r.ApplyDeltas(proto.Deltas{
				Inserts: []proto.Modification{{K: proto.ModInsert, NearCellID: 1, Cell: proto.Cell{ID: 2, Value: 0}}},
			})

			got := r.Snapshot()
			want := []proto.Cell{{ID: 1, Value: 1}, {ID: 2, Value: 55}}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("snapshot = %v, want %v", got, want)
			}
		})
	}
}

func TestDeleteDropsPendingInsert(t *testing.T) {
	for name, make := range variants() {
		t.Run(name, func(t *testing.T) {
			r := make()
			r.ApplySnapshot([]proto.Cell{{ID: 1, Value: 1}}, proto.Deltas{})

			r.ApplyDeltas(proto.Deltas{
				Inserts: []proto.Modification{{K: proto.ModInsert, NearCellID: 9, Cell: proto.Cell{ID: 10, Value: 100}}},
				Deletes: []proto.Modification{{K: proto.ModDelete, DeletedID: 9}},
			})

			if got, want := r.Len(), 1; got != want {
				t.Fatalf("Len() = %d, want %d", got, want)
			}
		})
	}
}
