// Package index provides a compact binary cell index format.
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/eak1mov/go-tmx/tile"
)

// Item represents a single record in the index: a cell position and its
// raw GID. Records are stored little-endian, 16 bytes each.
// It is designed to be easily portable to other languages and utilities.
type Item struct {
	Layer uint32
	X     int32
	Y     int32
	GID   uint32
}

func ItemOf(cell tile.Cell) Item {
	return Item{Layer: cell.Layer, X: cell.X, Y: cell.Y, GID: cell.GID}
}

func (i Item) Cell() tile.Cell {
	return tile.Cell{Layer: i.Layer, X: i.X, Y: i.Y, GID: i.GID}
}

func WriteAll(items []Item, writer io.Writer) error {
	return binary.Write(writer, binary.LittleEndian, items)
}

func ReadAll(indexData []byte) ([]Item, error) {
	itemSize := binary.Size(Item{})
	if len(indexData)%itemSize != 0 {
		return nil, fmt.Errorf("index size %d is not a multiple of %d", len(indexData), itemSize)
	}
	items := make([]Item, len(indexData)/itemSize)

	err := binary.Read(bytes.NewReader(indexData), binary.LittleEndian, items)
	if err != nil {
		return nil, err
	}

	return items, nil
}

type cellKey struct {
	layer uint32
	x, y  int32
}

// Reader implements tile.Reader and tile.Visitor interfaces over loaded
// index items.
type Reader struct {
	items  []Item
	lookup map[cellKey]uint32
}

func NewReader(indexData []byte) (*Reader, error) {
	items, err := ReadAll(indexData)
	if err != nil {
		return nil, err
	}
	lookup := make(map[cellKey]uint32, len(items))
	for _, item := range items {
		lookup[cellKey{item.Layer, item.X, item.Y}] = item.GID
	}
	return &Reader{items: items, lookup: lookup}, nil
}

func (r *Reader) ReadCell(layer uint32, x, y int32) (uint32, error) {
	return r.lookup[cellKey{layer, x, y}], nil
}

// VisitCells visits cells in index order.
func (r *Reader) VisitCells(visitor func(tile.Cell) error) error {
	for _, item := range r.items {
		if err := visitor(item.Cell()); err != nil {
			return err
		}
	}
	return nil
}
