package store

import (
	"lsmkv/pkg/iterator"
	"lsmkv/pkg/types"
)

// RangeIterator yields live records in ascending key order, one per key,
// each carrying the freshest value across all sources.
//
// Key and Value alias store memory and must not be modified.
type RangeIterator struct {
	it iterator.CellIterator
}

// sources are ordered memtable first, then generations newest first; on equal
// timestamps the earlier source wins.
func newRangeIterator(sources []iterator.CellIterator) *RangeIterator {
	merged := iterator.Merge(sources...)
	return &RangeIterator{
		it: iterator.Live(iterator.Collapse(merged)),
	}
}

func (r *RangeIterator) Valid() bool {
	return r.it.Valid()
}

func (r *RangeIterator) Next() {
	r.it.Next()
}

func (r *RangeIterator) Key() types.Key {
	return r.it.Cell().Key
}

func (r *RangeIterator) Value() types.Value {
	return r.it.Cell().Value.Data
}

// Err reports a fault that ended the iteration early, such as a corrupt
// table element.
func (r *RangeIterator) Err() error {
	return r.it.Err()
}

func (r *RangeIterator) Close() error {
	return r.it.Close()
}
