package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/eak1mov/go-tmx/tmx"
	"github.com/google/subcommands"
)

type infoCmd struct {
	inputPath string
}

func (c *infoCmd) Name() string     { return "info" }
func (c *infoCmd) Synopsis() string { return "print map summary: tilesets and layer tree" }
func (c *infoCmd) Usage() string {
	return "tmxutils info -i <path>\n"
}
func (c *infoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input map path")
}

func (c *infoCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	e := envOf(args)
	m, err := e.cfg.Loader(e.logger).LoadMap(ctx, c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	printMap(os.Stdout, m)
	return subcommands.ExitSuccess
}

func printMap(w io.Writer, m *tmx.Map) {
	size := fmt.Sprintf("%dx%d", m.Width, m.Height)
	if m.Infinite {
		size = fmt.Sprintf("infinite, %dx%d chunks", m.ChunkWidth, m.ChunkHeight)
	}
	fmt.Fprintf(w, "map %s: %v %s, tile %dx%d, %v\n", m.Path, m.Orientation, size, m.TileWidth, m.TileHeight, m.RenderOrder)

	for _, ts := range m.Tilesets() {
		source := ts.Tileset.Path
		if source == "" {
			source = "inline"
		}
		fmt.Fprintf(w, "tileset %q: gids %d-%d (%s)\n",
			ts.Tileset.Name, ts.FirstGID, ts.FirstGID+ts.Tileset.Size()-1, source)
	}

	tileLayer := 0
	var printLayers func(layers []tmx.Layer, depth int)
	printLayers = func(layers []tmx.Layer, depth int) {
		for _, layer := range layers {
			indent := strings.Repeat("  ", depth)
			info := layer.Info()
			switch l := layer.(type) {
			case *tmx.TileLayer:
				minX, minY, maxX, maxY := l.Bounds()
				fmt.Fprintf(w, "%slayer #%d %q: tiles [%d,%d)-[%d,%d)\n", indent, tileLayer, info.Name, minX, maxX, minY, maxY)
				tileLayer++
			case *tmx.ObjectLayer:
				fmt.Fprintf(w, "%sobjectgroup %q: %d objects\n", indent, info.Name, len(l.Objects))
			case *tmx.ImageLayer:
				source := ""
				if l.Image != nil {
					source = l.Image.Source
				}
				fmt.Fprintf(w, "%simagelayer %q: %s\n", indent, info.Name, source)
			case *tmx.GroupLayer:
				fmt.Fprintf(w, "%sgroup %q\n", indent, info.Name)
				printLayers(l.Layers, depth+1)
			}
		}
	}
	printLayers(m.Layers(), 0)
}
