// Package cell defines the unit stored in memory and on disk: a key paired
// with either live data or a tombstone, stamped with a timestamp.
package cell

import (
	"bytes"
	"cmp"

	"lsmkv/pkg/types"
)

const (
	lenFieldSize       = 4
	timestampFieldSize = 8
)

// Value is either live data or a tombstone. Data is nil for tombstones.
type Value struct {
	Timestamp types.Timestamp
	Data      types.Value
	Tombstone bool
}

func Live(ts types.Timestamp, data types.Value) Value {
	if data == nil {
		data = types.Value{}
	}
	return Value{Timestamp: ts, Data: data}
}

func Tombstone(ts types.Timestamp) Value {
	return Value{Timestamp: ts, Tombstone: true}
}

type Cell struct {
	Key   types.Key
	Value Value
}

func New(key types.Key, value Value) Cell {
	return Cell{Key: key, Value: value}
}

// EncodedSize is the number of bytes the cell occupies in a table's data region.
func (c Cell) EncodedSize() int {
	return EncodedSize(c.Key, c.Value)
}

func EncodedSize(key types.Key, v Value) int {
	n := lenFieldSize + len(key) + timestampFieldSize + lenFieldSize
	if !v.Tombstone {
		n += len(v.Data)
	}
	return n
}

// Compare orders cells ascending by key and, for equal keys, descending by
// timestamp, so the freshest version of a key comes first.
func Compare(a, b Cell) int {
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return cmp.Compare(b.Value.Timestamp, a.Value.Timestamp)
}
