package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/eak1mov/go-tmx/index"
	"github.com/eak1mov/go-tmx/store"
	"github.com/eak1mov/go-tmx/tile"
	"github.com/eak1mov/go-tmx/tmx"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type exportCmd struct {
	inputPath    string
	outputFormat string
	outputPath   string
}

func (c *exportCmd) Name() string     { return "export" }
func (c *exportCmd) Synopsis() string { return "export the tile layer cells of a map" }
func (c *exportCmd) Usage() string {
	return "tmxutils export -i <path> -o <path> [-of <format>]\n"
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input map path")
	f.StringVar(&c.outputPath, "o", "", "Output path")
	f.StringVar(&c.outputFormat, "of", "", "Output format (sqlite, index)")
}

func mapMetadata(m *tmx.Map) map[string]string {
	metadata := map[string]string{
		"source":      m.Path,
		"orientation": m.Orientation.String(),
		"tilewidth":   strconv.Itoa(m.TileWidth),
		"tileheight":  strconv.Itoa(m.TileHeight),
		"infinite":    strconv.FormatBool(m.Infinite),
	}
	if !m.Infinite {
		metadata["width"] = strconv.Itoa(m.Width)
		metadata["height"] = strconv.Itoa(m.Height)
	}
	for i, layer := range m.TileLayers() {
		metadata[fmt.Sprintf("layer.%d", i)] = layer.Name
	}
	for _, ts := range m.Tilesets() {
		metadata[fmt.Sprintf("tileset.%d", ts.FirstGID)] = ts.Tileset.Name
	}
	return metadata
}

// openWriter returns a cell writer and a function releasing its resources.
func openWriter(format, outputPath string, metadata map[string]string, logger *slog.Logger) (tile.Writer, func() error, error) {
	switch format {
	case "sqlite":
		w, err := store.NewWriter(outputPath, store.WithMetadata(metadata), store.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	case "index":
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, nil, err
		}
		return index.NewWriter(f), f.Close, nil
	}
	return nil, nil, fmt.Errorf("invalid output format: %q", format)
}

func copyCells(w tile.Writer, v tile.Visitor) error {
	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	err := v.VisitCells(func(cell tile.Cell) error {
		err := w.WriteCell(cell)
		bar.Add(1)
		return err
	})
	bar.Finish()
	fmt.Println()

	if err != nil {
		return err
	}
	return w.Finalize()
}

// writeCells copies the cells of v into w and releases w exactly once, also
// when copying fails.
func writeCells(w tile.Writer, closeWriter func() error, v tile.Visitor) error {
	return errors.Join(copyCells(w, v), closeWriter())
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	e := envOf(args)
	m, err := e.cfg.Loader(e.logger).LoadMap(ctx, c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	writer, closeWriter, err := openWriter(deduceFormat(c.outputFormat, c.outputPath), c.outputPath, mapMetadata(m), e.logger)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if err := writeCells(writer, closeWriter, m); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
