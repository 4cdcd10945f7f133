package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"
)

type tileCmd struct {
	inputPath string
	layer     int
	x, y      int
}

func (c *tileCmd) Name() string     { return "tile" }
func (c *tileCmd) Synopsis() string { return "print the tile at a cell of a tile layer" }
func (c *tileCmd) Usage() string {
	return "tmxutils tile -i <path> -x <x> -y <y> [-layer <n>]\n"
}
func (c *tileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input map path")
	f.IntVar(&c.layer, "layer", 0, "Tile layer index, depth-first")
	f.IntVar(&c.x, "x", 0, "Cell column")
	f.IntVar(&c.y, "y", 0, "Cell row")
}

func (c *tileCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	e := envOf(args)
	m, err := e.cfg.Loader(e.logger).LoadMap(ctx, c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	lt, ok := m.TileAt(c.layer, c.x, c.y)
	if !ok {
		fmt.Println("empty")
		return subcommands.ExitSuccess
	}
	fmt.Printf("gid %d: tileset %q (firstgid %d) tile %d, flip h=%v v=%v d=%v\n",
		uint32(lt.GID), lt.Tileset.Tileset.Name, lt.Tileset.FirstGID, lt.ID,
		lt.Flip.Horizontal(), lt.Flip.Vertical(), lt.Flip.Diagonal())
	if data, ok := lt.Data(); ok && data.Class != "" {
		fmt.Printf("class %q\n", data.Class)
	}
	return subcommands.ExitSuccess
}
