package tmx

import (
	"fmt"
	"image/color"
	"iter"
	"slices"
	"sort"

	"github.com/eak1mov/go-tmx/tile"
	"github.com/eak1mov/go-tmx/tmx/spec"
)

type Orientation uint8

const (
	Orthogonal Orientation = iota
	Isometric
	Staggered
	Hexagonal
)

func parseOrientation(value string) (Orientation, error) {
	switch value {
	case "", "orthogonal":
		return Orthogonal, nil
	case "isometric":
		return Isometric, nil
	case "staggered":
		return Staggered, nil
	case "hexagonal":
		return Hexagonal, nil
	}
	return 0, fmt.Errorf("%w: orientation %q", ErrUnsupported, value)
}

func (o Orientation) String() string {
	switch o {
	case Orthogonal:
		return "orthogonal"
	case Isometric:
		return "isometric"
	case Staggered:
		return "staggered"
	case Hexagonal:
		return "hexagonal"
	}
	return fmt.Sprintf("Orientation(%d)", uint8(o))
}

type RenderOrder uint8

const (
	RightDown RenderOrder = iota
	RightUp
	LeftDown
	LeftUp
)

func parseRenderOrder(value string) (RenderOrder, error) {
	switch value {
	case "", "right-down":
		return RightDown, nil
	case "right-up":
		return RightUp, nil
	case "left-down":
		return LeftDown, nil
	case "left-up":
		return LeftUp, nil
	}
	return 0, fmt.Errorf("%w: renderorder %q", ErrUnsupported, value)
}

func (r RenderOrder) String() string {
	switch r {
	case RightDown:
		return "right-down"
	case RightUp:
		return "right-up"
	case LeftDown:
		return "left-down"
	case LeftUp:
		return "left-up"
	}
	return fmt.Sprintf("RenderOrder(%d)", uint8(r))
}

// Map is a loaded TMX map. It is immutable: exported fields and the values
// returned by its accessors must not be modified.
type Map struct {
	Path            string
	Version         string
	TiledVersion    string
	Class           string
	Orientation     Orientation
	RenderOrder     RenderOrder
	Width           int // in tiles, ignored by infinite maps
	Height          int
	TileWidth       int
	TileHeight      int
	Infinite        bool
	ChunkWidth      int
	ChunkHeight     int
	HexSideLength   int
	StaggerAxis     string
	StaggerIndex    string
	ParallaxOriginX float64
	ParallaxOriginY float64
	BackgroundColor *color.NRGBA
	NextLayerID     uint32
	NextObjectID    uint32
	Properties      Properties

	tilesets   []MapTileset // sorted by FirstGID, ranges disjoint
	layers     []Layer
	tileLayers []*TileLayer
}

// LayerTile is a non-empty cell resolved against the map tilesets.
type LayerTile struct {
	GID     spec.GID
	Flip    spec.Flip
	Tileset MapTileset
	ID      uint32 // local tile id in Tileset
}

// Data returns the extra tile data of the tileset, if any.
func (t LayerTile) Data() (*Tile, bool) {
	return t.Tileset.Tileset.Tile(t.ID)
}

func (m *Map) Tilesets() []MapTileset {
	return slices.Clone(m.tilesets)
}

// Layers returns the root layers in declared order.
func (m *Map) Layers() []Layer {
	return slices.Clone(m.layers)
}

// AllLayers iterates over the layer tree depth-first, parents before
// children.
func (m *Map) AllLayers() iter.Seq[Layer] {
	return func(yield func(Layer) bool) {
		walkLayers(m.layers, yield)
	}
}

func walkLayers(layers []Layer, yield func(Layer) bool) bool {
	for _, layer := range layers {
		if !yield(layer) {
			return false
		}
		if group, ok := layer.(*GroupLayer); ok {
			if !walkLayers(group.Layers, yield) {
				return false
			}
		}
	}
	return true
}

// TileLayers returns the tile layers of the tree in depth-first order.
// TileAt and VisitCells address layers by their index in this list.
func (m *Map) TileLayers() []*TileLayer {
	return slices.Clone(m.tileLayers)
}

// LayerByName returns the first layer named name in depth-first order.
func (m *Map) LayerByName(name string) (Layer, bool) {
	for layer := range m.AllLayers() {
		if layer.Info().Name == name {
			return layer, true
		}
	}
	return nil, false
}

// TilesetForGID finds the tileset owning gid and the local tile id. Flip
// flags are ignored. It reports false for the empty gid and for gids outside
// of every tileset range.
func (m *Map) TilesetForGID(gid spec.GID) (MapTileset, uint32, bool) {
	return findTileset(m.tilesets, gid)
}

func findTileset(tilesets []MapTileset, gid spec.GID) (MapTileset, uint32, bool) {
	id := gid.ID()
	if id == 0 {
		return MapTileset{}, 0, false
	}
	// first tileset starting after id
	i := sort.Search(len(tilesets), func(i int) bool {
		return tilesets[i].FirstGID > id
	})
	if i == 0 || !tilesets[i-1].Contains(id) {
		return MapTileset{}, 0, false
	}
	ts := tilesets[i-1]
	return ts, id - ts.FirstGID, true
}

// TileAt returns the tile at (x, y) of the layer-th tile layer. It reports
// false for empty cells, positions outside of the layer or its chunks, and
// unknown layers.
func (m *Map) TileAt(layer, x, y int) (LayerTile, bool) {
	if layer < 0 || layer >= len(m.tileLayers) {
		return LayerTile{}, false
	}
	return m.resolve(m.tileLayers[layer].GIDAt(x, y))
}

func (m *Map) resolve(gid spec.GID) (LayerTile, bool) {
	ts, id, ok := m.TilesetForGID(gid)
	if !ok {
		return LayerTile{}, false
	}
	return LayerTile{GID: gid, Flip: gid.Flags(), Tileset: ts, ID: id}, true
}

// ObjectTile resolves the GID of a tile object. GIDs inherited from a
// template refer to the template's tileset rather than the map's.
func (m *Map) ObjectTile(obj *Object) (LayerTile, bool) {
	if obj.GID.Empty() {
		return LayerTile{}, false
	}
	if obj.gidTileset != nil {
		ts := *obj.gidTileset
		id := obj.GID.ID()
		if !ts.Contains(id) {
			return LayerTile{}, false
		}
		return LayerTile{GID: obj.GID, Flip: obj.GID.Flags(), Tileset: ts, ID: id - ts.FirstGID}, true
	}
	return m.resolve(obj.GID)
}

// VisitCells calls visitor for every non-empty cell of every tile layer.
// Cell.Layer is the index of the layer in TileLayers.
func (m *Map) VisitCells(visitor func(tile.Cell) error) error {
	for i, layer := range m.tileLayers {
		for pos, gid := range layer.Cells() {
			cell := tile.Cell{Layer: uint32(i), X: int32(pos.X), Y: int32(pos.Y), GID: uint32(gid)}
			if err := visitor(cell); err != nil {
				return err
			}
		}
	}
	return nil
}
