package replica

import "seqsync/internal/proto"

// slow is a linear sequence of cells plus an id-to-index map that is
// re-indexed from the edit point on every structural edit. Acceptable for small replicas; same
// contract as fast.
type slow struct {
	cells []proto.Cell
	index map[proto.CellID]int
}

// NewSlow returns the linear-scan client replica variant.
func NewSlow() Replica {
	return newBase(&slow{index: make(map[proto.CellID]int)})
}

func (s *slow) has(id proto.CellID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *slow) len() int { return len(s.cells) }

func (s *slow) cellAt(i int) proto.Cell { return s.cells[i] }

func (s *slow) insertAfter(anchor proto.CellID, cell proto.Cell) bool {
	pos := 0
	if anchor != proto.SentinelCellID {
		i, ok := s.index[anchor]
		if !ok {
			return false
		}
		pos = i + 1
	}
	s.cells = append(s.cells, proto.Cell{})
	copy(s.cells[pos+1:], s.cells[pos:])
	s.cells[pos] = cell
	s.reindexFrom(pos)
	return true
}

func (s *slow) remove(id proto.CellID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.cells = append(s.cells[:i], s.cells[i+1:]...)
	delete(s.index, id)
	s.reindexFrom(i)
}

func (s *slow) reindexFrom(i int) {
	for ; i < len(s.cells); i++ {
		s.index[s.cells[i].ID] = i
	}
}

func (s *slow) setValue(id proto.CellID, value uint32) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.cells[i].Value = value
	return true
}

func (s *slow) snapshot() []proto.Cell {
	out := make([]proto.Cell, len(s.cells))
	copy(out, s.cells)
	return out
}

func (s *slow) initFrom(cells []proto.Cell) {
	s.cells = append([]proto.Cell(nil), cells...)
	s.index = make(map[proto.CellID]int, len(cells))
	s.reindexFrom(0)
}
