// Package tile provides common cell interfaces and types shared by the map
// loader and the exporters.
package tile

// Cell is a non-empty cell of a tile layer. Layer is the index of the layer
// among the tile layers of the map, GID is the raw value with flip flags.
type Cell struct {
	Layer uint32
	X     int32
	Y     int32
	GID   uint32
}

// Writer defines an interface for writing cells to a storage.
type Writer interface {
	// WriteCell writes a single cell.
	WriteCell(cell Cell) error

	// Finalize completes the writing process: flushes buffers, writes indices.
	// It must be called before closing the Writer.
	Finalize() error
}

type Reader interface {
	// ReadCell reads the GID stored for a position.
	// If the cell does not exist, it returns 0 with no error.
	ReadCell(layer uint32, x, y int32) (uint32, error)
}

type Visitor interface {
	// VisitCells visits all cells, calling the visitor for each.
	// It returns an error if visiting fails.
	// Order of cells is implementation-defined.
	VisitCells(visitor func(Cell) error) error
}
