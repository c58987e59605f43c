package sstable

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/iterator"
)

// Write serializes count cells from it into w in a single pass. Cells must be
// in strictly ascending key order. The offset index is kept in memory and
// written after the data region, followed by the element count.
func Write(w io.Writer, it iterator.CellIterator, count int) error {
	if count < 0 || count > math.MaxInt32 {
		return fmt.Errorf("%w: element count %d", dberrors.ErrInvalidArgument, count)
	}

	var (
		bw      = bufio.NewWriter(w)
		offsets = make([]int32, 0, count)
		buf     []byte
		prev    []byte
		offset  int64
	)
	for ; it.Valid(); it.Next() {
		c := it.Cell()
		if len(offsets) > 0 && bytes.Compare(prev, c.Key) >= 0 {
			return fmt.Errorf("%w: %q after %q", dberrors.ErrUnsorted, c.Key, prev)
		}
		if len(c.Key) > math.MaxInt32 || len(c.Value.Data) > math.MaxInt32 {
			return fmt.Errorf("%w: cell too large", dberrors.ErrInvalidArgument)
		}

		buf = appendCell(buf[:0], c)
		if offset+int64(len(buf)) > math.MaxInt32 {
			return fmt.Errorf("%w: data region exceeds %d bytes", dberrors.ErrInvalidArgument, math.MaxInt32)
		}
		offsets = append(offsets, int32(offset))
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("%w: write element: %w", dberrors.ErrStorageIO, err)
		}

		offset += int64(len(buf))
		prev = c.Key
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("read cells: %w", err)
	}
	if len(offsets) != count {
		return fmt.Errorf("%w: expected %d elements, got %d", dberrors.ErrInvalidArgument, count, len(offsets))
	}

	buf = buf[:0]
	for _, off := range offsets {
		buf = order.AppendUint32(buf, uint32(off))
	}
	buf = order.AppendUint32(buf, uint32(count))
	if _, err := bw.Write(buf); err != nil {
		return fmt.Errorf("%w: write index: %w", dberrors.ErrStorageIO, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: flush table: %w", dberrors.ErrStorageIO, err)
	}

	return nil
}

// WriteFile creates (or truncates) path, writes the table and syncs it.
func WriteFile(path string, it iterator.CellIterator, count int) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("%w: %w", dberrors.ErrStorageIO, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", dberrors.ErrStorageIO, cerr)
		}
	}()

	if err := Write(file, it, count); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: %w", dberrors.ErrStorageIO, err)
	}

	return nil
}
