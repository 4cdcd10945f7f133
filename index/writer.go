package index

import (
	"cmp"
	"io"
	"math"
	"math/bits"
	"slices"

	"github.com/eak1mov/go-tmx/tile"
	"github.com/google/hilbert"
)

// Writer implements tile.Writer interface. It buffers cells and on Finalize
// writes them grouped by layer, each layer ordered along a Hilbert curve
// covering the bounds of its cells, so that nearby cells are stored close to
// each other.
type Writer struct {
	out   io.Writer
	items []Item
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) WriteCell(cell tile.Cell) error {
	w.items = append(w.items, ItemOf(cell))
	return nil
}

func (w *Writer) Finalize() error {
	if err := SortHilbert(w.items); err != nil {
		return err
	}
	return WriteAll(w.items, w.out)
}

// SortHilbert orders items by layer, then by Hilbert code within the layer.
func SortHilbert(items []Item) error {
	slices.SortFunc(items, func(a, b Item) int {
		return cmp.Compare(a.Layer, b.Layer)
	})
	for start := 0; start < len(items); {
		end := start + 1
		for end < len(items) && items[end].Layer == items[start].Layer {
			end++
		}
		if err := sortLayer(items[start:end]); err != nil {
			return err
		}
		start = end
	}
	return nil
}

func sortLayer(items []Item) error {
	minX, minY := int32(math.MaxInt32), int32(math.MaxInt32)
	maxX, maxY := int32(math.MinInt32), int32(math.MinInt32)
	for _, item := range items {
		minX, minY = min(minX, item.X), min(minY, item.Y)
		maxX, maxY = max(maxX, item.X), max(maxY, item.Y)
	}
	extent := uint64(max(int64(maxX)-int64(minX), int64(maxY)-int64(minY))) + 1
	side := 1 << bits.Len64(extent-1)

	h, err := hilbert.NewHilbert(side)
	if err != nil {
		return err
	}
	codes := make(map[Item]int, len(items))
	for _, item := range items {
		code, err := h.MapInverse(int(int64(item.X)-int64(minX)), int(int64(item.Y)-int64(minY)))
		if err != nil {
			return err
		}
		codes[item] = code
	}
	slices.SortStableFunc(items, func(a, b Item) int {
		return cmp.Compare(codes[a], codes[b])
	})
	return nil
}
