package iterator

import "bytes"

// CollapseIterator keeps only the first cell of every run of equal keys.
// Over a merged sequence that is the freshest version of each key.
type CollapseIterator struct {
	CellIterator
}

func Collapse(it CellIterator) *CollapseIterator {
	return &CollapseIterator{CellIterator: it}
}

func (c *CollapseIterator) Next() {
	if !c.Valid() {
		return
	}
	key := c.Cell().Key
	c.CellIterator.Next()
	for c.CellIterator.Valid() && bytes.Equal(c.CellIterator.Cell().Key, key) {
		c.CellIterator.Next()
	}
}

// LiveIterator drops tombstones.
type LiveIterator struct {
	CellIterator
}

func Live(it CellIterator) *LiveIterator {
	l := &LiveIterator{CellIterator: it}
	l.skip()
	return l
}

func (l *LiveIterator) Next() {
	if !l.Valid() {
		return
	}
	l.CellIterator.Next()
	l.skip()
}

func (l *LiveIterator) skip() {
	for l.CellIterator.Valid() && l.CellIterator.Cell().Value.Tombstone {
		l.CellIterator.Next()
	}
}

var (
	_ CellIterator = (*CollapseIterator)(nil)
	_ CellIterator = (*LiveIterator)(nil)
	_ CellIterator = (*MergeIterator)(nil)
)
