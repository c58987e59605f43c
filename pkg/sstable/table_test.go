package sstable

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"lsmkv/pkg/cell"
	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/iterator"
	"lsmkv/pkg/types"
)

func live(key, value string, ts int64) cell.Cell {
	return cell.New([]byte(key), cell.Live(types.Timestamp(ts), []byte(value)))
}

func dead(key string, ts int64) cell.Cell {
	return cell.New([]byte(key), cell.Tombstone(types.Timestamp(ts)))
}

func encode(t *testing.T, cells []cell.Cell) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := Write(&buf, iterator.FromSlice(cells), len(cells)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return buf.Bytes()
}

func load(t *testing.T, cells []cell.Cell) *Table {
	t.Helper()

	table, err := Load(encode(t, cells))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return table
}

func TestWriteAndReadBack(t *testing.T) {
	cells := []cell.Cell{
		live("a", "1", 10),
		dead("b", 20),
		live("c", "", 30),
		live("d", "four", 40),
	}

	path := filepath.Join(t.TempDir(), "0.dat")
	if err := WriteFile(path, iterator.FromSlice(cells), len(cells)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	table, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer table.Close()

	if table.Len() != len(cells) {
		t.Fatalf("Expected %d elements, got %d", len(cells), table.Len())
	}

	got, err := iterator.Collect(table.IteratorFrom(nil))
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(got) != len(cells) {
		t.Fatalf("Expected %d cells, got %d", len(cells), len(got))
	}
	for i := range cells {
		want, have := cells[i], got[i]
		if !bytes.Equal(want.Key, have.Key) ||
			want.Value.Timestamp != have.Value.Timestamp ||
			want.Value.Tombstone != have.Value.Tombstone ||
			!bytes.Equal(want.Value.Data, have.Value.Data) {
			t.Fatalf("cell %d: expected %+v, got %+v", i, want, have)
		}
	}
	if got[2].Value.Data == nil {
		t.Fatal("Expected empty live value to decode as non-nil")
	}
}

func TestLayout(t *testing.T) {
	data := encode(t, []cell.Cell{live("k", "v", 1), dead("z", 2)})

	want := []byte{
		0, 0, 0, 1, 'k', 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1, 'v',
		0, 0, 0, 1, 'z', 0, 0, 0, 0, 0, 0, 0, 2, 0xff, 0xff, 0xff, 0xff,
		0, 0, 0, 0,
		0, 0, 0, 18,
		0, 0, 0, 2,
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("Expected layout\n%x\ngot\n%x", want, data)
	}
}

func TestEmptyTable(t *testing.T) {
	data := encode(t, nil)
	if !bytes.Equal(data, []byte{0, 0, 0, 0}) {
		t.Fatalf("Expected a bare trailer, got %x", data)
	}

	table, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pos, found := table.Seek([]byte("x")); pos != 0 || found {
		t.Fatalf("Expected (0, false), got (%d, %v)", pos, found)
	}
	if it := table.IteratorFrom(nil); it.Valid() {
		t.Fatal("Expected empty iterator")
	}
}

func TestSeek(t *testing.T) {
	table := load(t, []cell.Cell{live("b", "1", 1), live("d", "2", 1), live("f", "3", 1)})

	tests := []struct {
		key   string
		pos   int
		found bool
	}{
		{key: "", pos: 0},
		{key: "a", pos: 0},
		{key: "b", pos: 0, found: true},
		{key: "c", pos: 1},
		{key: "d", pos: 1, found: true},
		{key: "f", pos: 2, found: true},
		{key: "g", pos: 3},
	}
	for _, tt := range tests {
		t.Run("key_"+tt.key, func(t *testing.T) {
			pos, found := table.Seek([]byte(tt.key))
			if pos != tt.pos || found != tt.found {
				t.Fatalf("Expected (%d, %v), got (%d, %v)", tt.pos, tt.found, pos, found)
			}
		})
	}

	t.Run("IteratorFromMiddle", func(t *testing.T) {
		got, err := iterator.Collect(table.IteratorFrom([]byte("c")))
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(got) != 2 || string(got[0].Key) != "d" || string(got[1].Key) != "f" {
			t.Fatalf("Expected [d f], got %v", got)
		}
	})

	t.Run("IteratorPastEnd", func(t *testing.T) {
		if it := table.IteratorFrom([]byte("g")); it.Valid() {
			t.Fatalf("Expected no cells, got %q", it.Cell().Key)
		}
	})
}

func TestGet(t *testing.T) {
	table := load(t, []cell.Cell{live("a", "1", 5), dead("b", 6)})

	v, found, err := table.Get([]byte("a"))
	if err != nil || !found || string(v.Data) != "1" || v.Timestamp != 5 {
		t.Fatalf("Expected a=1@5, got %+v found=%v err=%v", v, found, err)
	}

	v, found, err = table.Get([]byte("b"))
	if err != nil || !found || !v.Tombstone {
		t.Fatalf("Expected tombstone for b, got %+v found=%v err=%v", v, found, err)
	}

	if _, found, err = table.Get([]byte("c")); err != nil || found {
		t.Fatalf("Expected c to be absent, found=%v err=%v", found, err)
	}

	if !table.MayContain([]byte("a")) || !table.MayContain([]byte("b")) {
		t.Fatal("bloom filter lost a stored key")
	}

	_ = table.Close()
	if _, _, err := table.Get([]byte("a")); !errors.Is(err, dberrors.ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
}

func TestMaxTimestamp(t *testing.T) {
	table := load(t, []cell.Cell{live("a", "1", 7), dead("b", 42), live("c", "3", 9)})
	if got := table.MaxTimestamp(); got != 42 {
		t.Fatalf("Expected 42, got %d", got)
	}

	if got := load(t, nil).MaxTimestamp(); got != 0 {
		t.Fatalf("Expected 0 for an empty table, got %d", got)
	}
}

func TestIteratorSurvivesClose(t *testing.T) {
	table := load(t, []cell.Cell{live("a", "1", 1), live("b", "2", 1)})

	it := table.IteratorFrom(nil)
	_ = table.Close()

	got, err := iterator.Collect(it)
	if err != nil || len(got) != 2 {
		t.Fatalf("Expected 2 cells from an open iterator, got %d err=%v", len(got), err)
	}
	if it := table.IteratorFrom(nil); it.Valid() || !errors.Is(it.Err(), dberrors.ErrClosed) {
		t.Fatalf("Expected closed table iterator to fail, err=%v", it.Err())
	}
}

func TestMutationsUnsupported(t *testing.T) {
	table := load(t, []cell.Cell{live("a", "1", 1)})

	if err := table.Upsert([]byte("a"), []byte("2")); !errors.Is(err, dberrors.ErrUnsupportedOperation) {
		t.Fatalf("Expected ErrUnsupportedOperation from Upsert, got %v", err)
	}
	if err := table.Remove([]byte("a")); !errors.Is(err, dberrors.ErrUnsupportedOperation) {
		t.Fatalf("Expected ErrUnsupportedOperation from Remove, got %v", err)
	}
}

func TestWriteValidation(t *testing.T) {
	t.Run("CountMismatch", func(t *testing.T) {
		cells := []cell.Cell{live("a", "1", 1)}
		err := Write(&bytes.Buffer{}, iterator.FromSlice(cells), 2)
		if !errors.Is(err, dberrors.ErrInvalidArgument) {
			t.Fatalf("Expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Unsorted", func(t *testing.T) {
		cells := []cell.Cell{live("b", "1", 1), live("a", "2", 1)}
		err := Write(&bytes.Buffer{}, iterator.FromSlice(cells), 2)
		if !errors.Is(err, dberrors.ErrUnsorted) {
			t.Fatalf("Expected ErrUnsorted, got %v", err)
		}
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		cells := []cell.Cell{live("a", "1", 2), live("a", "2", 1)}
		err := Write(&bytes.Buffer{}, iterator.FromSlice(cells), 2)
		if !errors.Is(err, dberrors.ErrUnsorted) {
			t.Fatalf("Expected ErrUnsorted, got %v", err)
		}
	})
}

func TestLoadMalformed(t *testing.T) {
	valid := encode(t, []cell.Cell{live("a", "1", 1), live("b", "2", 1)})

	corrupt := func(mutate func([]byte) []byte) []byte {
		return mutate(bytes.Clone(valid))
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "Empty", data: nil},
		{name: "ShortTrailer", data: []byte{0, 0}},
		{name: "NegativeCount", data: []byte{0xff, 0xff, 0xff, 0xff}},
		{name: "CountTooLarge", data: []byte{0, 0, 0, 9}},
		{name: "OffsetOutOfRange", data: corrupt(func(b []byte) []byte {
			// second offset points past the data region
			b[len(b)-5] = 0x7f
			return b
		})},
		{name: "KeyLengthOutOfRange", data: corrupt(func(b []byte) []byte {
			b[3] = 0x7f
			return b
		})},
		{name: "KeysOutOfOrder", data: corrupt(func(b []byte) []byte {
			b[4] = 'z'
			return b
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.data); !errors.Is(err, dberrors.ErrMalformedTable) {
				t.Fatalf("Expected ErrMalformedTable, got %v", err)
			}
		})
	}
}

func TestCorruptValueLengthStopsIteration(t *testing.T) {
	data := encode(t, []cell.Cell{live("a", "1", 1), live("b", "2", 1)})

	// value_length of the second element: 18 (first element) + 4 + 1 + 8
	data[18+13+3] = 0x7f

	table, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	it := table.IteratorFrom(nil)
	if !it.Valid() || string(it.Cell().Key) != "a" {
		t.Fatal("Expected the first element to decode")
	}
	it.Next()
	if it.Valid() {
		t.Fatal("Expected iteration to stop at the corrupt element")
	}
	if !errors.Is(it.Err(), dberrors.ErrMalformedTable) {
		t.Fatalf("Expected ErrMalformedTable, got %v", it.Err())
	}

	if _, _, err := table.Get([]byte("b")); !errors.Is(err, dberrors.ErrMalformedTable) {
		t.Fatalf("Expected ErrMalformedTable from Get, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.dat"))
	if !errors.Is(err, dberrors.ErrStorageIO) {
		t.Fatalf("Expected ErrStorageIO, got %v", err)
	}
}
