// Package store reads and writes map cells and metadata in a sqlite database.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"image"

	"github.com/eak1mov/go-tmx/tile"
	"github.com/eak1mov/go-tmx/tmx/spec"
)

// LayerStats summarizes the stored cells of one layer. Bounds is the
// smallest rectangle holding them, in cells.
type LayerStats struct {
	Layer  uint32
	Cells  int
	Bounds image.Rectangle
}

// Reader implements tile.Reader and tile.Visitor for a sqlite cell
// database written by Writer.
type Reader struct {
	db     *sql.DB
	lookup *sql.Stmt
}

// NewReader opens the database read-only. The returned Reader must be
// closed after use.
func NewReader(filePath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	lookup, err := db.Prepare("SELECT tile, flags FROM cells WHERE layer = ? AND y = ? AND x = ?")
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return &Reader{db: db, lookup: lookup}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.lookup.Close(), r.db.Close())
}

func (r *Reader) ReadMetadata() (map[string]string, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}
	return metadata, rows.Err()
}

// Layers returns the stats of every layer holding cells, by layer index.
func (r *Reader) Layers() ([]LayerStats, error) {
	rows, err := r.db.Query("SELECT layer, cells, min_x, min_y, max_x, max_y FROM layers ORDER BY layer")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var layers []LayerStats
	for rows.Next() {
		var s LayerStats
		b := &s.Bounds
		if err := rows.Scan(&s.Layer, &s.Cells, &b.Min.X, &b.Min.Y, &b.Max.X, &b.Max.Y); err != nil {
			return nil, err
		}
		layers = append(layers, s)
	}
	return layers, rows.Err()
}

func (r *Reader) ReadCell(layer uint32, x, y int32) (uint32, error) {
	var id, flags uint32
	if err := r.lookup.QueryRow(layer, y, x).Scan(&id, &flags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return uint32(spec.Compose(id, spec.Flip(flags))), nil
}

// VisitCells visits cells ordered by layer, row and column.
func (r *Reader) VisitCells(visitor func(tile.Cell) error) error {
	return r.visit(visitor, "SELECT layer, x, y, tile, flags FROM cells ORDER BY layer, y, x")
}

// VisitRegion visits the cells of layer inside region, ordered by row and
// column.
func (r *Reader) VisitRegion(layer uint32, region image.Rectangle, visitor func(tile.Cell) error) error {
	return r.visit(visitor, `
		SELECT layer, x, y, tile, flags FROM cells
		WHERE layer = ? AND y >= ? AND y < ? AND x >= ? AND x < ?
		ORDER BY y, x`,
		layer, region.Min.Y, region.Max.Y, region.Min.X, region.Max.X)
}

// VisitTile visits the cells of any layer showing the tile with the given
// GID, whatever their flip flags.
func (r *Reader) VisitTile(gid uint32, visitor func(tile.Cell) error) error {
	return r.visit(visitor, "SELECT layer, x, y, tile, flags FROM cells WHERE tile = ? ORDER BY layer, y, x",
		spec.GID(gid).ID())
}

func (r *Reader) visit(visitor func(tile.Cell) error, query string, args ...any) error {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cell tile.Cell
		var id, flags uint32
		if err := rows.Scan(&cell.Layer, &cell.X, &cell.Y, &id, &flags); err != nil {
			return err
		}
		cell.GID = uint32(spec.Compose(id, spec.Flip(flags)))
		if err := visitor(cell); err != nil {
			return err
		}
	}
	return rows.Err()
}
