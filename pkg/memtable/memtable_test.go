package memtable

import (
	"testing"

	"lsmkv/pkg/cell"
	"lsmkv/pkg/iterator"
	"lsmkv/pkg/types"
)

type counterClock struct {
	now types.Timestamp
}

func (c *counterClock) Next() types.Timestamp {
	c.now++
	return c.now
}

func keys(t *testing.T, it *Iterator) []string {
	t.Helper()

	cells, err := iterator.Collect(it)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = string(c.Key)
	}
	return out
}

func TestUpsertAndGet(t *testing.T) {
	mt := New(&counterClock{})

	mt.Upsert([]byte("a"), []byte("1"))
	mt.Upsert([]byte("a"), []byte("2"))

	v, ok := mt.Get([]byte("a"))
	if !ok {
		t.Fatal("Expected a to be present")
	}
	if string(v.Data) != "2" || v.Timestamp != 2 || v.Tombstone {
		t.Fatalf("Expected a=2@2, got %+v", v)
	}
	if mt.Len() != 1 {
		t.Fatalf("Expected 1 key, got %d", mt.Len())
	}
}

func TestUpsertCopiesInput(t *testing.T) {
	mt := New(&counterClock{})

	key, value := []byte("k"), []byte("v")
	mt.Upsert(key, value)
	key[0], value[0] = 'x', 'x'

	v, ok := mt.Get([]byte("k"))
	if !ok || string(v.Data) != "v" {
		t.Fatalf("Expected stored copy k=v, got %+v ok=%v", v, ok)
	}
}

func TestRemoveKeepsTombstone(t *testing.T) {
	mt := New(&counterClock{})

	mt.Upsert([]byte("a"), []byte("1"))
	mt.Remove([]byte("a"))
	mt.Remove([]byte("never-written"))

	v, ok := mt.Get([]byte("a"))
	if !ok || !v.Tombstone || v.Data != nil {
		t.Fatalf("Expected tombstone for a, got %+v ok=%v", v, ok)
	}
	if mt.Len() != 2 {
		t.Fatalf("Expected 2 keys including tombstones, got %d", mt.Len())
	}
}

func TestIteratorFrom(t *testing.T) {
	mt := New(&counterClock{})
	for _, k := range []string{"d", "b", "f", "a"} {
		mt.Upsert([]byte(k), []byte(k))
	}
	mt.Remove([]byte("c"))

	tests := []struct {
		from string
		want []string
	}{
		{from: "", want: []string{"a", "b", "c", "d", "f"}},
		{from: "c", want: []string{"c", "d", "f"}},
		{from: "cc", want: []string{"d", "f"}},
		{from: "z", want: []string{}},
	}
	for _, tt := range tests {
		t.Run("from_"+tt.from, func(t *testing.T) {
			got := keys(t, mt.IteratorFrom([]byte(tt.from)))
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestIteratorCloseEarly(t *testing.T) {
	mt := New(&counterClock{})
	for _, k := range []string{"a", "b", "c"} {
		mt.Upsert([]byte(k), nil)
	}

	it := mt.IteratorFrom(nil)
	if !it.Valid() || string(it.Cell().Key) != "a" {
		t.Fatal("Expected iterator positioned on a")
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if it.Valid() {
		t.Fatal("Expected closed iterator to be invalid")
	}
}

func TestSizeAccounting(t *testing.T) {
	mt := New(&counterClock{})

	if mt.ApproximateSize() != 0 {
		t.Fatalf("Expected empty memtable, got %d", mt.ApproximateSize())
	}

	mt.Upsert([]byte("key"), []byte("value"))
	want := int64(cell.EncodedSize([]byte("key"), cell.Live(0, []byte("value"))))
	if got := mt.ApproximateSize(); got != want || got != 24 {
		t.Fatalf("Expected %d, got %d", want, got)
	}

	mt.Upsert([]byte("key"), []byte("v"))
	if got := mt.ApproximateSize(); got != 20 {
		t.Fatalf("Expected 20 after overwrite, got %d", got)
	}

	mt.Remove([]byte("key"))
	if got := mt.ApproximateSize(); got != 19 {
		t.Fatalf("Expected 19 for a tombstone, got %d", got)
	}

	mt.Upsert([]byte("other"), nil)
	if got := mt.ApproximateSize(); got != 19+21 {
		t.Fatalf("Expected 40, got %d", got)
	}
}
