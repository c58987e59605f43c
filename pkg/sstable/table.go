package sstable

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"lsmkv/pkg/cell"
	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/types"
)

const defaultBloomFPRate = 0.01

// Table is an opened, read-only sorted table. The whole file is read into
// memory on open; all reads are served from that image and may run
// concurrently.
type Table struct {
	path  string
	img   atomic.Pointer[image]
	bloom *BloomFilter
	maxTS types.Timestamp
}

// Open reads and parses the table stored at path.
func Open(path string) (*Table, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dberrors.ErrStorageIO, err)
	}

	t, err := Load(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.path = path

	return t, nil
}

// Load parses a table image. The table keeps references into buf.
func Load(buf []byte) (*Table, error) {
	size := len(buf)
	if size < intSize {
		return nil, fmt.Errorf("%w: %d bytes is too small for a trailer", dberrors.ErrMalformedTable, size)
	}

	n := int64(int32(order.Uint32(buf[size-intSize:])))
	indexStart := int64(size) - intSize - n*intSize
	if n < 0 || indexStart < 0 {
		return nil, fmt.Errorf("%w: element count %d does not fit %d bytes", dberrors.ErrMalformedTable, n, size)
	}

	img := &image{
		data:    buf[:indexStart:indexStart],
		offsets: make([]int32, n),
	}
	for i := range img.offsets {
		img.offsets[i] = int32(order.Uint32(buf[indexStart+int64(i)*intSize:]))
	}

	bloom := NewBloomFilter(uint32(n), defaultBloomFPRate)
	maxTS, err := img.validate(bloom)
	if err != nil {
		return nil, err
	}

	t := &Table{bloom: bloom, maxTS: maxTS}
	t.img.Store(img)

	return t, nil
}

// validate checks that every element header lies inside the data region and
// that keys ascend, feeding keys into bloom on the way. It returns the highest
// timestamp stored in the table.
func (img *image) validate(bloom *BloomFilter) (types.Timestamp, error) {
	var (
		prev  types.Key
		maxTS types.Timestamp
	)
	for i, off := range img.offsets {
		if off < 0 || (i > 0 && off <= img.offsets[i-1]) {
			return 0, fmt.Errorf("%w: offset[%d]=%d out of order", dberrors.ErrMalformedTable, i, off)
		}
		bound := img.bound(i)
		if bound > len(img.data) || int(off)+intSize > bound {
			return 0, fmt.Errorf("%w: offset[%d]=%d out of range", dberrors.ErrMalformedTable, i, off)
		}

		kl := int32(order.Uint32(img.data[off:]))
		if kl < 0 || int64(off)+fixedCellSize+int64(kl) > int64(bound) {
			return 0, fmt.Errorf("%w: element %d: key length %d out of range", dberrors.ErrMalformedTable, i, kl)
		}

		key := img.keyAt(i)
		if i > 0 && bytes.Compare(prev, key) >= 0 {
			return 0, fmt.Errorf("%w: element %d: keys out of order", dberrors.ErrMalformedTable, i)
		}
		bloom.Add(key)
		prev = key

		ts := types.Timestamp(int64(order.Uint64(img.data[int(off)+intSize+int(kl):])))
		if i == 0 || ts > maxTS {
			maxTS = ts
		}
	}
	return maxTS, nil
}

func (t *Table) Path() string {
	return t.path
}

// Len returns the number of elements.
func (t *Table) Len() int {
	img := t.img.Load()
	if img == nil {
		return 0
	}
	return img.len()
}

// Seek returns the position of the first element with key >= key, in
// [0, Len()], and whether that element's key equals key.
func (t *Table) Seek(key types.Key) (int, bool) {
	img := t.img.Load()
	if img == nil {
		return 0, false
	}
	return img.seek(key)
}

func (img *image) seek(key types.Key) (int, bool) {
	n := img.len()
	pos := sort.Search(n, func(i int) bool {
		return bytes.Compare(img.keyAt(i), key) >= 0
	})
	return pos, pos < n && bytes.Equal(img.keyAt(pos), key)
}

// MaxTimestamp returns the highest timestamp of any element, or 0 for an
// empty table.
func (t *Table) MaxTimestamp() types.Timestamp {
	return t.maxTS
}

// MayContain reports false only when key is certainly absent.
func (t *Table) MayContain(key types.Key) bool {
	return t.bloom.MayContain(key)
}

// Get looks up the cell stored for key. Tombstones are returned as such.
func (t *Table) Get(key types.Key) (cell.Value, bool, error) {
	img := t.img.Load()
	if img == nil {
		return cell.Value{}, false, dberrors.ErrClosed
	}

	pos, found := img.seek(key)
	if !found {
		return cell.Value{}, false, nil
	}
	c, err := img.cellAt(pos)
	if err != nil {
		return cell.Value{}, false, fmt.Errorf("%s: %w", t.path, err)
	}
	return c.Value, true, nil
}

// IteratorFrom returns the elements with key >= from in ascending order.
func (t *Table) IteratorFrom(from types.Key) *Iterator {
	img := t.img.Load()
	if img == nil {
		return &Iterator{err: dberrors.ErrClosed}
	}

	pos, _ := img.seek(from)
	it := &Iterator{img: img, pos: pos}
	it.load()
	return it
}

// Upsert always fails: tables are immutable.
func (t *Table) Upsert(types.Key, types.Value) error {
	return fmt.Errorf("%w: upsert on sorted table %s", dberrors.ErrUnsupportedOperation, t.path)
}

// Remove always fails: tables are immutable.
func (t *Table) Remove(types.Key) error {
	return fmt.Errorf("%w: remove on sorted table %s", dberrors.ErrUnsupportedOperation, t.path)
}

// Close drops the table image. Iterators opened earlier stay usable.
func (t *Table) Close() error {
	t.img.Store(nil)
	return nil
}
