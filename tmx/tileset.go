package tmx

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// Tileset is a parsed tileset definition. It does not know its first GID:
// the same external tileset may be used by several maps at different
// offsets, see MapTileset.
type Tileset struct {
	Path            string // resolved path of the TSX document, empty for inline tilesets
	Name            string
	Class           string
	TileWidth       int
	TileHeight      int
	Spacing         int
	Margin          int
	TileCount       int
	Columns         int
	TileOffsetX     int
	TileOffsetY     int
	ObjectAlignment string
	Image           *Image // shared image, nil for image collection tilesets
	Properties      Properties

	// Tiles holds the tiles that carry extra data, keyed by local id.
	Tiles map[uint32]*Tile

	size uint32
}

type Image struct {
	Source string // resolved relative to the declaring document
	Format string
	Trans  *color.NRGBA
	Width  int
	Height int
}

type Tile struct {
	ID          uint32
	Class       string
	Probability float64
	Image       *Image
	Animation   []Frame
	Collision   *ObjectLayer
	Properties  Properties
}

type Frame struct {
	TileID   uint32
	Duration time.Duration
}

// MapTileset is a tileset as referenced by a map or template: it owns the
// GIDs [FirstGID, FirstGID+Tileset.Size()).
type MapTileset struct {
	FirstGID uint32
	Tileset  *Tileset
}

func (m MapTileset) Contains(id uint32) bool {
	return m.Tileset != nil && id >= m.FirstGID && id-m.FirstGID < m.Tileset.Size()
}

// Size returns the number of GIDs the tileset owns.
func (ts *Tileset) Size() uint32 {
	return ts.size
}

func (ts *Tileset) Tile(id uint32) (*Tile, bool) {
	tile, ok := ts.Tiles[id]
	return tile, ok
}

// TileRect returns the source rectangle of a tile in the shared image.
func (ts *Tileset) TileRect(id uint32) image.Rectangle {
	if ts.Columns <= 0 {
		return image.Rectangle{}
	}
	col := int(id) % ts.Columns
	row := int(id) / ts.Columns
	x := ts.Margin + col*(ts.TileWidth+ts.Spacing)
	y := ts.Margin + row*(ts.TileHeight+ts.Spacing)
	return image.Rect(x, y, x+ts.TileWidth, y+ts.TileHeight)
}

// buildTileset builds a tileset declared in the document at docPath.
func buildTileset(raw *xmlTileset, docPath string) (*Tileset, error) {
	if raw.TileWidth <= 0 || raw.TileHeight <= 0 {
		return nil, formatErrorf("tile size %dx%d", raw.TileWidth, raw.TileHeight)
	}
	if raw.Spacing < 0 || raw.Margin < 0 {
		return nil, formatErrorf("negative spacing %d or margin %d", raw.Spacing, raw.Margin)
	}
	if raw.TileCount < 0 || raw.Columns < 0 {
		return nil, formatErrorf("negative tilecount %d or columns %d", raw.TileCount, raw.Columns)
	}

	ts := &Tileset{
		Name:            raw.Name,
		Class:           raw.Class,
		TileWidth:       raw.TileWidth,
		TileHeight:      raw.TileHeight,
		Spacing:         raw.Spacing,
		Margin:          raw.Margin,
		TileCount:       raw.TileCount,
		Columns:         raw.Columns,
		ObjectAlignment: raw.ObjectAlignment,
		Tiles:           make(map[uint32]*Tile, len(raw.Tiles)),
	}
	if raw.TileOffset != nil {
		ts.TileOffsetX = raw.TileOffset.X
		ts.TileOffsetY = raw.TileOffset.Y
	}

	var err error
	if ts.Properties, err = buildProperties(raw.Properties); err != nil {
		return nil, err
	}

	if raw.Image != nil {
		if ts.Image, err = buildImage(raw.Image, docPath); err != nil {
			return nil, err
		}
		if err := ts.checkGeometry(); err != nil {
			return nil, err
		}
	}

	ts.size = uint32(ts.TileCount)
	for _, rt := range raw.Tiles {
		if ts.Image != nil && int(rt.ID) >= ts.TileCount {
			return nil, formatErrorf("tile %d outside of tilecount %d", rt.ID, ts.TileCount)
		}
		ts.size = max(ts.size, rt.ID+1)
	}

	for i := range raw.Tiles {
		rt := &raw.Tiles[i]
		if _, dup := ts.Tiles[rt.ID]; dup {
			return nil, formatErrorf("duplicate tile %d", rt.ID)
		}
		tile, err := ts.buildTile(rt, docPath)
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", rt.ID, err)
		}
		ts.Tiles[rt.ID] = tile
	}

	return ts, nil
}

// checkGeometry verifies that the shared image tiles exactly given tile
// size, margin and spacing, and that the declared columns and tile count fit it.
func (ts *Tileset) checkGeometry() error {
	img := ts.Image
	if img.Width <= 0 || img.Height <= 0 {
		return formatErrorf("image %q: size %dx%d not declared", img.Source, img.Width, img.Height)
	}
	spanX := img.Width - 2*ts.Margin + ts.Spacing
	spanY := img.Height - 2*ts.Margin + ts.Spacing
	columns := spanX / (ts.TileWidth + ts.Spacing)
	rows := spanY / (ts.TileHeight + ts.Spacing)
	if columns <= 0 || rows <= 0 {
		return formatErrorf("image %q (%dx%d) holds no %dx%d tile with margin %d",
			img.Source, img.Width, img.Height, ts.TileWidth, ts.TileHeight, ts.Margin)
	}
	if spanX%(ts.TileWidth+ts.Spacing) != 0 || spanY%(ts.TileHeight+ts.Spacing) != 0 {
		return formatErrorf("image %q (%dx%d) does not tile exactly into %dx%d tiles with margin %d and spacing %d",
			img.Source, img.Width, img.Height, ts.TileWidth, ts.TileHeight, ts.Margin, ts.Spacing)
	}

	if ts.Columns == 0 {
		ts.Columns = columns
	} else if ts.Columns != columns {
		return formatErrorf("columns %d, image %q (%dx%d) holds %d columns of %dpx tiles with margin %d and spacing %d",
			ts.Columns, img.Source, img.Width, img.Height, columns, ts.TileWidth, ts.Margin, ts.Spacing)
	}

	if ts.TileCount == 0 {
		ts.TileCount = columns * rows
	} else if ts.TileCount > columns*rows {
		return formatErrorf("tilecount %d, image %q holds %dx%d tiles", ts.TileCount, img.Source, columns, rows)
	}
	return nil
}

func (ts *Tileset) buildTile(raw *xmlTile, docPath string) (*Tile, error) {
	tile := &Tile{
		ID:          raw.ID,
		Class:       raw.Class,
		Probability: 1,
	}
	if tile.Class == "" {
		tile.Class = raw.Type
	}
	if raw.Probability != nil {
		tile.Probability = *raw.Probability
	}

	var err error
	if tile.Properties, err = buildProperties(raw.Properties); err != nil {
		return nil, err
	}

	if raw.Image != nil {
		if tile.Image, err = buildImage(raw.Image, docPath); err != nil {
			return nil, err
		}
	}

	if raw.Animation != nil {
		if len(raw.Animation.Frames) == 0 {
			return nil, formatErrorf("empty animation")
		}
		tile.Animation = make([]Frame, len(raw.Animation.Frames))
		for i, f := range raw.Animation.Frames {
			if f.Duration <= 0 {
				return nil, formatErrorf("animation frame %d: duration %dms", i, f.Duration)
			}
			if f.TileID >= ts.size {
				return nil, formatErrorf("animation frame %d: tile %d outside of tileset", i, f.TileID)
			}
			tile.Animation[i] = Frame{TileID: f.TileID, Duration: time.Duration(f.Duration) * time.Millisecond}
		}
	}

	if raw.ObjectGroup != nil {
		if tile.Collision, err = buildCollision(raw.ObjectGroup); err != nil {
			return nil, fmt.Errorf("collision: %w", err)
		}
	}

	return tile, nil
}

// buildCollision builds a tile collision group. Its objects are shapes in
// tile-local coordinates; tile objects and templates are not allowed there.
func buildCollision(raw *xmlObjectGroup) (*ObjectLayer, error) {
	layer, err := buildObjectLayerInfo(raw)
	if err != nil {
		return nil, err
	}
	for i := range raw.Objects {
		ro := &raw.Objects[i]
		if ro.Template != "" {
			return nil, fmt.Errorf("%w: template %q in tile collision object %d", ErrUnsupported, ro.Template, ro.ID)
		}
		if deref(ro.GID) != 0 {
			return nil, formatErrorf("tile object %d in tile collision", ro.ID)
		}
		obj, err := buildObject(ro)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", ro.ID, err)
		}
		layer.Objects = append(layer.Objects, obj)
	}
	return layer, nil
}

func buildImage(raw *xmlImage, docPath string) (*Image, error) {
	if raw.Source == "" {
		if raw.Data != nil {
			return nil, fmt.Errorf("%w: embedded image data", ErrUnsupported)
		}
		return nil, formatErrorf("image without source")
	}
	trans, err := parseColor(raw.Trans)
	if err != nil {
		return nil, err
	}
	return &Image{
		Source: resolvePath(docPath, raw.Source),
		Format: raw.Format,
		Trans:  trans,
		Width:  raw.Width,
		Height: raw.Height,
	}, nil
}
