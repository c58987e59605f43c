package iterator

import (
	"container/heap"
	"errors"

	"lsmkv/pkg/cell"
)

type source struct {
	it  CellIterator
	ind int
}

// sourceHeap is a min-heap of sources keyed by their current cell.
type sourceHeap []source

func (h sourceHeap) Len() int { return len(h) }

func (h sourceHeap) Less(i, j int) bool {
	if c := cell.Compare(h[i].it.Cell(), h[j].it.Cell()); c != 0 {
		return c < 0
	}
	return h[i].ind < h[j].ind
}

func (h sourceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *sourceHeap) Push(x any) { *h = append(*h, x.(source)) }

func (h *sourceHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	*h = old[:n-1]
	return s
}

// MergeIterator interleaves several ascending iterators into one sequence
// ordered by cell.Compare. Cells that compare equal come out in source order,
// so earlier sources shadow later ones.
type MergeIterator struct {
	all  []CellIterator
	heap sourceHeap
	err  error
}

func Merge(its ...CellIterator) *MergeIterator {
	m := &MergeIterator{
		all:  its,
		heap: make(sourceHeap, 0, len(its)),
	}
	for i, it := range its {
		if !m.admit(source{it: it, ind: i}) {
			break
		}
	}
	heap.Init(&m.heap)
	return m
}

// admit pushes a positioned source onto the heap. It returns false once a
// source has failed; the merge stops at the first fault.
func (m *MergeIterator) admit(s source) bool {
	if err := s.it.Err(); err != nil {
		m.err = err
		m.heap = m.heap[:0]
		return false
	}
	if s.it.Valid() {
		m.heap = append(m.heap, s)
	}
	return true
}

func (m *MergeIterator) Valid() bool {
	return m.err == nil && len(m.heap) > 0
}

func (m *MergeIterator) Cell() cell.Cell {
	return m.heap[0].it.Cell()
}

func (m *MergeIterator) Next() {
	if !m.Valid() {
		return
	}
	top := m.heap[0]
	top.it.Next()
	if err := top.it.Err(); err != nil {
		m.err = err
		m.heap = m.heap[:0]
		return
	}
	if top.it.Valid() {
		heap.Fix(&m.heap, 0)
		return
	}
	heap.Pop(&m.heap)
}

func (m *MergeIterator) Err() error {
	return m.err
}

func (m *MergeIterator) Close() error {
	var errs []error
	for _, it := range m.all {
		errs = append(errs, it.Close())
	}
	m.heap = m.heap[:0]
	return errors.Join(errs...)
}
