package memtable

import (
	"bytes"
	"iter"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"lsmkv/pkg/cell"
	"lsmkv/pkg/types"
)

type concurrentSet = skipmap.FuncMap[[]byte, cell.Value]

type iClock interface {
	Next() types.Timestamp
}

// Memtable is the mutable write buffer. Reads may run concurrently with a
// writer; writers are expected to be serialized by the caller, otherwise the
// size accounting may drift (it stays an approximation either way).
type Memtable struct {
	set   *concurrentSet
	size  atomic.Int64
	clock iClock
}

func New(clock iClock) *Memtable {
	return &Memtable{
		set: skipmap.NewFunc[[]byte, cell.Value](func(a, b []byte) bool {
			return bytes.Compare(a, b) < 0
		}),
		clock: clock,
	}
}

func (mt *Memtable) Get(k types.Key) (cell.Value, bool) {
	return mt.set.Load(k)
}

// Upsert records value for k, stamped with the current time.
func (mt *Memtable) Upsert(k types.Key, value types.Value) {
	mt.store(bytes.Clone(k), cell.Live(mt.clock.Next(), bytes.Clone(value)))
}

// Remove records a tombstone for k. The key stays in the table so the
// deletion can shadow older versions once flushed.
func (mt *Memtable) Remove(k types.Key) {
	mt.store(bytes.Clone(k), cell.Tombstone(mt.clock.Next()))
}

func (mt *Memtable) store(k types.Key, v cell.Value) {
	delta := int64(cell.EncodedSize(k, v))
	if prev, ok := mt.set.Load(k); ok {
		delta -= int64(cell.EncodedSize(k, prev))
	}
	mt.set.Store(k, v)
	mt.size.Add(delta)
}

// Len returns the number of distinct keys, tombstones included.
func (mt *Memtable) Len() int {
	return mt.set.Len()
}

// ApproximateSize is the encoded size of the held cells. It drives flushing.
func (mt *Memtable) ApproximateSize() int64 {
	return mt.size.Load()
}

// IteratorFrom returns the cells with key >= from in ascending order.
// The iterator must be closed.
//
// skipmap has no seek, so reaching the first result walks every smaller key.
// That linear prefix is accepted; the memtable is bounded by the flush
// threshold.
func (mt *Memtable) IteratorFrom(from types.Key) *Iterator {
	seq := func(yield func([]byte, cell.Value) bool) {
		mt.set.Range(func(k []byte, v cell.Value) bool {
			if bytes.Compare(k, from) < 0 {
				return true
			}
			return yield(k, v)
		})
	}

	next, stop := iter.Pull2(iter.Seq2[[]byte, cell.Value](seq))
	it := &Iterator{next: next, stop: stop}
	it.Next()
	return it
}

// Iterator walks a memtable lazily.
type Iterator struct {
	next func() ([]byte, cell.Value, bool)
	stop func()

	cur   cell.Cell
	valid bool
}

func (it *Iterator) Valid() bool {
	return it.valid
}

func (it *Iterator) Next() {
	k, v, ok := it.next()
	it.valid = ok
	if ok {
		it.cur = cell.New(k, v)
	}
}

func (it *Iterator) Cell() cell.Cell {
	return it.cur
}

func (it *Iterator) Err() error {
	return nil
}

func (it *Iterator) Close() error {
	it.stop()
	it.valid = false
	return nil
}
