// Package sstable implements the immutable on-disk sorted table.
//
// File layout, all integers big-endian:
//
//	data region, one element per cell in ascending key order:
//	    int32  key_length
//	    bytes  key
//	    int64  timestamp
//	    int32  value_length   (-1 for a tombstone, no value bytes follow)
//	    bytes  value
//	offset index:
//	    int32  offset[0..N-1] position of each element's key_length field
//	trailer:
//	    int32  N
package sstable

import (
	"encoding/binary"
	"fmt"

	"lsmkv/pkg/cell"
	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/types"
)

const (
	intSize  = 4
	longSize = 8

	// key_length + timestamp + value_length
	fixedCellSize = intSize + longSize + intSize

	tombstoneLen int32 = -1
	// tombstoneLen as written on disk
	tombstoneMarker = ^uint32(0)
)

var order = binary.BigEndian

func appendCell(dst []byte, c cell.Cell) []byte {
	dst = order.AppendUint32(dst, uint32(len(c.Key)))
	dst = append(dst, c.Key...)
	dst = order.AppendUint64(dst, uint64(c.Value.Timestamp))
	if c.Value.Tombstone {
		return order.AppendUint32(dst, tombstoneMarker)
	}
	dst = order.AppendUint32(dst, uint32(len(c.Value.Data)))
	return append(dst, c.Value.Data...)
}

// image is a parsed table held in memory. Slices handed out alias buf.
type image struct {
	data    []byte
	offsets []int32
}

func (img *image) len() int {
	return len(img.offsets)
}

// bound is the end of element i: the next element's offset or the end of data.
func (img *image) bound(i int) int {
	if i+1 < len(img.offsets) {
		return int(img.offsets[i+1])
	}
	return len(img.data)
}

// keyAt returns the key of element i. Key bounds are checked when the image
// is parsed, so this cannot go out of range.
func (img *image) keyAt(i int) types.Key {
	off := int(img.offsets[i])
	kl := int(int32(order.Uint32(img.data[off:])))
	start := off + intSize
	return img.data[start : start+kl : start+kl]
}

func (img *image) cellAt(i int) (cell.Cell, error) {
	key := img.keyAt(i)
	pos := int(img.offsets[i]) + intSize + len(key)
	ts := types.Timestamp(int64(order.Uint64(img.data[pos:])))
	pos += longSize
	vl := int32(order.Uint32(img.data[pos:]))
	pos += intSize

	if vl == tombstoneLen {
		return cell.New(key, cell.Tombstone(ts)), nil
	}
	end := pos + int(vl)
	if vl < 0 || end > img.bound(i) {
		return cell.Cell{}, fmt.Errorf("%w: element %d: value length %d out of range", dberrors.ErrMalformedTable, i, vl)
	}
	return cell.New(key, cell.Live(ts, img.data[pos:end:end])), nil
}
