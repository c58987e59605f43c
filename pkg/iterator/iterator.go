package iterator

import "lsmkv/pkg/cell"

// CellIterator iterates over an ascending sequence of cells.
//
// A fresh iterator is already positioned on its first cell, if any.
type CellIterator interface {
	// Valid reports whether the iterator points to a cell.
	Valid() bool
	// Next advances to the next cell.
	Next()
	// Cell returns the current cell. Only meaningful while Valid.
	Cell() cell.Cell
	// Err returns the fault that stopped the iteration, if any.
	Err() error
	// Close releases resources.
	Close() error
}

// sliceIterator serves cells from an in-memory slice.
type sliceIterator struct {
	cells []cell.Cell
	pos   int
}

// FromSlice returns an iterator over cells in slice order.
func FromSlice(cells []cell.Cell) CellIterator {
	return &sliceIterator{cells: cells}
}

func (it *sliceIterator) Valid() bool     { return it.pos < len(it.cells) }
func (it *sliceIterator) Next()           { it.pos++ }
func (it *sliceIterator) Cell() cell.Cell { return it.cells[it.pos] }
func (it *sliceIterator) Err() error      { return nil }
func (it *sliceIterator) Close() error    { return nil }

// Collect drains it into a slice. The iterator is closed afterwards.
func Collect(it CellIterator) ([]cell.Cell, error) {
	defer it.Close()

	var out []cell.Cell
	for ; it.Valid(); it.Next() {
		out = append(out, it.Cell())
	}
	return out, it.Err()
}
