package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eak1mov/go-tmx/tile"
	"github.com/eak1mov/go-tmx/tmx/spec"
)

const schema = `
	CREATE TABLE metadata (name TEXT PRIMARY KEY, value TEXT);
	CREATE TABLE cells (
		layer INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		tile INTEGER NOT NULL,
		flags INTEGER NOT NULL
	);
	CREATE TABLE layers (
		layer INTEGER PRIMARY KEY,
		cells INTEGER NOT NULL,
		min_x INTEGER NOT NULL,
		min_y INTEGER NOT NULL,
		max_x INTEGER NOT NULL,
		max_y INTEGER NOT NULL
	);
`

// Writer implements tile.Writer for a sqlite cell database. Cells are
// inserted in a single transaction committed by Finalize; the GID is stored
// split into the tile id and the flip flags so that cells can be queried by
// tile regardless of orientation.
type Writer struct {
	db     *sql.DB
	tx     *sql.Tx
	insert *sql.Stmt
	logger *slog.Logger
	count  int
}

type writerConfig struct {
	Metadata map[string]string
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates the schema in a new sqlite file and stores the metadata.
func NewWriter(filePath string, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	w, err := initWriter(db, config)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return w, nil
}

func initWriter(db *sql.DB, config writerConfig) (*Writer, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	for k, v := range config.Metadata {
		if _, err := db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v); err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	insert, err := tx.Prepare("INSERT INTO cells (layer, x, y, tile, flags) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, errors.Join(err, tx.Rollback())
	}
	return &Writer{db: db, tx: tx, insert: insert, logger: config.Logger}, nil
}

// Close releases the database. Cells written after the last Finalize are
// discarded.
func (w *Writer) Close() error {
	err := w.insert.Close()
	if w.tx != nil {
		err = errors.Join(err, w.tx.Rollback())
	}
	return errors.Join(err, w.db.Close())
}

// WriteCell stores a non-empty cell.
func (w *Writer) WriteCell(cell tile.Cell) error {
	id, flags := spec.GID(cell.GID).Split()
	if id == 0 {
		return fmt.Errorf("store: empty cell at layer %d (%d,%d)", cell.Layer, cell.X, cell.Y)
	}
	if _, err := w.insert.Exec(cell.Layer, cell.X, cell.Y, id, uint32(flags)); err != nil {
		return err
	}
	w.count++
	return nil
}

// Finalize commits the cells, rejects duplicate positions and records the
// per-layer cell count and bounds.
func (w *Writer) Finalize() error {
	if w.tx == nil {
		return errors.New("store: already finalized")
	}
	tx := w.tx
	w.tx = nil
	if err := tx.Commit(); err != nil {
		return err
	}

	w.logger.Debug("store: indexing cells", "cells", w.count)
	if _, err := w.db.Exec("CREATE UNIQUE INDEX cell_index ON cells (layer, y, x)"); err != nil {
		return fmt.Errorf("store: duplicate cell position: %w", err)
	}
	if _, err := w.db.Exec(`
		INSERT INTO layers (layer, cells, min_x, min_y, max_x, max_y)
		SELECT layer, COUNT(*), MIN(x), MIN(y), MAX(x) + 1, MAX(y) + 1 FROM cells GROUP BY layer
	`); err != nil {
		return err
	}
	w.logger.Debug("store: finalized", "cells", w.count)
	return nil
}
