package sstable

import "lsmkv/pkg/cell"

// Iterator decodes table elements on demand.
type Iterator struct {
	img *image
	pos int

	cur   cell.Cell
	valid bool
	err   error
}

func (it *Iterator) load() {
	it.valid = false
	if it.img == nil || it.pos >= it.img.len() {
		return
	}

	c, err := it.img.cellAt(it.pos)
	if err != nil {
		it.err = err
		return
	}
	it.cur = c
	it.valid = true
}

func (it *Iterator) Valid() bool {
	return it.valid
}

func (it *Iterator) Next() {
	if !it.valid {
		return
	}
	it.pos++
	it.load()
}

func (it *Iterator) Cell() cell.Cell {
	return it.cur
}

func (it *Iterator) Err() error {
	return it.err
}

func (it *Iterator) Close() error {
	it.valid = false
	return nil
}
