// Package checker implements the client state-checker (component C5):
// on receipt of a full-state snapshot, it requires the replica to be
// structurally identical to the server's view, cell by cell.
package checker

import (
	"fmt"

	"seqsync/internal/proto"
	"seqsync/internal/replica"
)

// Checker holds the WithStateChecking flag; a disabled Checker is a
// no-op so callers don't need to branch at every call site.
type Checker struct {
	enabled bool
}

// New returns a Checker that runs only when enabled.
func New(enabled bool) *Checker {
	return &Checker{enabled: enabled}
}

// Check compares r's current cells against serverCells, which must be
// the same LoadState response whose delta portion the caller already
// applied via replica.ApplySnapshot. A SnapshotMismatch is treated as
// fatal by the caller (§7) — this package only reports it, since a
// library has no business deciding how the process dies.
func (c *Checker) Check(r replica.Replica, serverCells []proto.Cell) error {
	if !c.enabled {
		return nil
	}
	got := r.Snapshot()
	if len(got) != len(serverCells) {
		return fmt.Errorf("checker: size mismatch: replica has %d cells, server snapshot has %d", len(got), len(serverCells))
	}
	for i := range got {
		if got[i] != serverCells[i] {
			return fmt.Errorf("checker: cell %d mismatch: replica has %+v, server has %+v", i, got[i], serverCells[i])
		}
	}
	return nil
}
