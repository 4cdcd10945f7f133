package tmx

import (
	"cmp"
	"fmt"
	"image"
	"image/color"
	"iter"
	"maps"
	"slices"

	"github.com/eak1mov/go-tmx/tmx/spec"
)

// Layer is one of *TileLayer, *ObjectLayer, *ImageLayer or *GroupLayer.
type Layer interface {
	Info() *LayerInfo
	isLayer()
}

// LayerInfo holds the attributes shared by all layer kinds. Values are
// stored as declared: a group's offset, opacity, visibility, tint and
// parallax are not applied to its children.
type LayerInfo struct {
	ID         uint32
	Name       string
	Class      string
	Visible    bool
	Opacity    float64
	OffsetX    float64
	OffsetY    float64
	ParallaxX  float64
	ParallaxY  float64
	TintColor  *color.NRGBA
	Properties Properties
}

func (l *LayerInfo) Info() *LayerInfo { return l }

// TileLayer is a grid of GIDs. Finite layers hold Width*Height cells;
// infinite layers hold sparse chunks keyed by their origin.
type TileLayer struct {
	LayerInfo
	Width  int
	Height int

	cells       []spec.GID
	chunks      map[ChunkOrigin]*Chunk
	chunkWidth  int
	chunkHeight int
}

// ChunkOrigin is the tile coordinate of the top-left cell of a chunk.
type ChunkOrigin struct {
	X, Y int
}

type Chunk struct {
	X, Y          int
	Width, Height int
	Cells         []spec.GID // row-major, Width*Height
}

type DrawOrder uint8

const (
	DrawOrderTopDown DrawOrder = iota
	DrawOrderIndex
)

type ObjectLayer struct {
	LayerInfo
	Color     *color.NRGBA
	DrawOrder DrawOrder
	Objects   []*Object
}

type ImageLayer struct {
	LayerInfo
	Image   *Image // nil if the layer has no image
	RepeatX bool
	RepeatY bool
}

type GroupLayer struct {
	LayerInfo
	Layers []Layer
}

func (*TileLayer) isLayer()   {}
func (*ObjectLayer) isLayer() {}
func (*ImageLayer) isLayer()  {}
func (*GroupLayer) isLayer()  {}

// Infinite reports whether the layer is stored as chunks.
func (l *TileLayer) Infinite() bool {
	return l.chunks != nil
}

// GIDAt returns the raw GID at (x, y), or 0 outside of the layer or of any
// chunk.
func (l *TileLayer) GIDAt(x, y int) spec.GID {
	if l.chunks != nil {
		origin := ChunkOrigin{X: floorDiv(x, l.chunkWidth) * l.chunkWidth, Y: floorDiv(y, l.chunkHeight) * l.chunkHeight}
		chunk, ok := l.chunks[origin]
		if !ok {
			return 0
		}
		return chunk.Cells[(y-chunk.Y)*chunk.Width+(x-chunk.X)]
	}
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return 0
	}
	return l.cells[y*l.Width+x]
}

// ChunkSize returns the chunk dimensions of an infinite layer.
func (l *TileLayer) ChunkSize() (int, int) {
	return l.chunkWidth, l.chunkHeight
}

func (l *TileLayer) Chunk(origin ChunkOrigin) (*Chunk, bool) {
	chunk, ok := l.chunks[origin]
	return chunk, ok
}

// Chunks iterates over the chunks of an infinite layer, row by row.
func (l *TileLayer) Chunks() iter.Seq[*Chunk] {
	origins := slices.SortedFunc(maps.Keys(l.chunks), func(a, b ChunkOrigin) int {
		return cmp.Or(cmp.Compare(a.Y, b.Y), cmp.Compare(a.X, b.X))
	})
	return func(yield func(*Chunk) bool) {
		for _, origin := range origins {
			if !yield(l.chunks[origin]) {
				return
			}
		}
	}
}

// Cells iterates over the non-empty cells of the layer.
func (l *TileLayer) Cells() iter.Seq2[image.Point, spec.GID] {
	return func(yield func(image.Point, spec.GID) bool) {
		if l.chunks == nil {
			visitGrid(0, 0, l.Width, l.cells, yield)
			return
		}
		for chunk := range l.Chunks() {
			if !visitGrid(chunk.X, chunk.Y, chunk.Width, chunk.Cells, yield) {
				return
			}
		}
	}
}

func visitGrid(x0, y0, width int, cells []spec.GID, yield func(image.Point, spec.GID) bool) bool {
	for i, gid := range cells {
		if gid.Empty() {
			continue
		}
		if !yield(image.Pt(x0+i%width, y0+i/width), gid) {
			return false
		}
	}
	return true
}

// Bounds returns the tile rectangle [minX, maxX) x [minY, maxY) covered by
// the layer's cells or chunks.
func (l *TileLayer) Bounds() (minX, minY, maxX, maxY int) {
	if l.chunks == nil {
		return 0, 0, l.Width, l.Height
	}
	first := true
	for _, chunk := range l.chunks {
		if first {
			minX, minY, maxX, maxY = chunk.X, chunk.Y, chunk.X+chunk.Width, chunk.Y+chunk.Height
			first = false
			continue
		}
		minX = min(minX, chunk.X)
		minY = min(minY, chunk.Y)
		maxX = max(maxX, chunk.X+chunk.Width)
		maxY = max(maxY, chunk.Y+chunk.Height)
	}
	return
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// pendingObject is an object whose template is resolved after the layer
// tree is built.
type pendingObject struct {
	obj     *Object
	raw     *xmlObject
	docPath string
}

type layerBuilder struct {
	docPath     string
	infinite    bool
	chunkWidth  int
	chunkHeight int
	pending     []pendingObject
}

func (b *layerBuilder) buildLayers(nodes []xmlLayerNode) ([]Layer, error) {
	layers := make([]Layer, 0, len(nodes))
	for i := range nodes {
		layer, err := b.buildLayer(&nodes[i])
		if err != nil {
			return nil, err
		}
		if layer != nil {
			layers = append(layers, layer)
		}
	}
	return layers, nil
}

func (b *layerBuilder) buildLayer(node *xmlLayerNode) (Layer, error) {
	switch {
	case node.Tile != nil:
		layer, err := b.buildTileLayer(node.Tile)
		return layer, locate(b.docPath, fmt.Sprintf("layer %q", node.Tile.Name), err)
	case node.Object != nil:
		layer, err := b.buildObjectLayer(node.Object)
		return layer, locate(b.docPath, fmt.Sprintf("objectgroup %q", node.Object.Name), err)
	case node.Image != nil:
		layer, err := b.buildImageLayer(node.Image)
		return layer, locate(b.docPath, fmt.Sprintf("imagelayer %q", node.Image.Name), err)
	case node.Group != nil:
		info, err := buildLayerInfo(&node.Group.xmlLayerAttrs)
		if err != nil {
			return nil, locate(b.docPath, fmt.Sprintf("group %q", node.Group.Name), err)
		}
		children, err := b.buildLayers(node.Group.Layers)
		if err != nil {
			return nil, err
		}
		return &GroupLayer{LayerInfo: info, Layers: children}, nil
	}
	return nil, nil
}

func buildLayerInfo(raw *xmlLayerAttrs) (LayerInfo, error) {
	info := LayerInfo{
		ID:        raw.ID,
		Name:      raw.Name,
		Class:     raw.Class,
		Visible:   raw.Visible == nil || *raw.Visible,
		Opacity:   1,
		OffsetX:   raw.OffsetX,
		OffsetY:   raw.OffsetY,
		ParallaxX: 1,
		ParallaxY: 1,
	}
	if raw.Opacity != nil {
		info.Opacity = *raw.Opacity
	}
	if raw.ParallaxX != nil {
		info.ParallaxX = *raw.ParallaxX
	}
	if raw.ParallaxY != nil {
		info.ParallaxY = *raw.ParallaxY
	}
	var err error
	if info.TintColor, err = parseColor(raw.TintColor); err != nil {
		return LayerInfo{}, err
	}
	if info.Properties, err = buildProperties(raw.Properties); err != nil {
		return LayerInfo{}, err
	}
	return info, nil
}

func (b *layerBuilder) buildTileLayer(raw *xmlTileLayer) (*TileLayer, error) {
	info, err := buildLayerInfo(&raw.xmlLayerAttrs)
	if err != nil {
		return nil, err
	}
	layer := &TileLayer{LayerInfo: info, Width: raw.Width, Height: raw.Height}
	if raw.Width < 0 || raw.Height < 0 {
		return nil, formatErrorf("layer size %dx%d", raw.Width, raw.Height)
	}

	data := raw.Data
	if data == nil {
		data = &xmlData{}
	}
	encoding, err := spec.ParseEncoding(data.Encoding)
	if err != nil {
		return nil, err
	}
	compression, err := spec.ParseCompression(data.Compression)
	if err != nil {
		return nil, err
	}

	if !b.infinite {
		if len(data.Chunks) > 0 {
			return nil, formatErrorf("chunked data in a finite map")
		}
		if raw.Data == nil {
			layer.cells = make([]spec.GID, raw.Width*raw.Height)
			return layer, nil
		}
		layer.cells, err = decodeCells(data.Text, data.Tiles, encoding, compression, raw.Width*raw.Height)
		return layer, err
	}

	if len(data.Tiles) > 0 || (encoding != spec.EncodingXML && !isBlank(data.Text)) {
		return nil, formatErrorf("unchunked data in an infinite map")
	}
	layer.chunkWidth = b.chunkWidth
	layer.chunkHeight = b.chunkHeight
	layer.chunks = make(map[ChunkOrigin]*Chunk, len(data.Chunks))
	for i := range data.Chunks {
		rc := &data.Chunks[i]
		chunk, err := b.buildChunk(rc, encoding, compression)
		if err != nil {
			return nil, fmt.Errorf("chunk (%d,%d): %w", rc.X, rc.Y, err)
		}
		origin := ChunkOrigin{X: chunk.X, Y: chunk.Y}
		if _, dup := layer.chunks[origin]; dup {
			return nil, formatErrorf("chunk (%d,%d) overlaps another chunk", rc.X, rc.Y)
		}
		layer.chunks[origin] = chunk
	}
	return layer, nil
}

func (b *layerBuilder) buildChunk(raw *xmlChunk, encoding spec.Encoding, compression spec.Compression) (*Chunk, error) {
	if raw.Width != b.chunkWidth || raw.Height != b.chunkHeight {
		return nil, formatErrorf("size %dx%d, map chunk size is %dx%d", raw.Width, raw.Height, b.chunkWidth, b.chunkHeight)
	}
	if floorDiv(raw.X, b.chunkWidth)*b.chunkWidth != raw.X || floorDiv(raw.Y, b.chunkHeight)*b.chunkHeight != raw.Y {
		return nil, formatErrorf("origin not aligned to the %dx%d chunk grid", b.chunkWidth, b.chunkHeight)
	}
	cells, err := decodeCells(raw.Text, raw.Tiles, encoding, compression, raw.Width*raw.Height)
	if err != nil {
		return nil, err
	}
	return &Chunk{X: raw.X, Y: raw.Y, Width: raw.Width, Height: raw.Height, Cells: cells}, nil
}

func decodeCells(text string, tiles []xmlDataTile, encoding spec.Encoding, compression spec.Compression, count int) ([]spec.GID, error) {
	if encoding != spec.EncodingXML {
		return spec.DecodeCells(text, encoding, compression, count)
	}
	if compression != spec.CompressionNone {
		return nil, fmt.Errorf("%w: compression %v without encoding", ErrUnsupported, compression)
	}
	cells := make([]spec.GID, len(tiles))
	for i, t := range tiles {
		cells[i] = spec.GID(t.GID)
	}
	return cells, spec.CheckCount(cells, count)
}

func isBlank(text string) bool {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func buildObjectLayerInfo(raw *xmlObjectGroup) (*ObjectLayer, error) {
	info, err := buildLayerInfo(&raw.xmlLayerAttrs)
	if err != nil {
		return nil, err
	}
	layer := &ObjectLayer{LayerInfo: info}
	if layer.Color, err = parseColor(raw.Color); err != nil {
		return nil, err
	}
	switch raw.DrawOrder {
	case "", "topdown":
		layer.DrawOrder = DrawOrderTopDown
	case "index":
		layer.DrawOrder = DrawOrderIndex
	default:
		return nil, fmt.Errorf("%w: draworder %q", ErrUnsupported, raw.DrawOrder)
	}
	return layer, nil
}

func (b *layerBuilder) buildObjectLayer(raw *xmlObjectGroup) (*ObjectLayer, error) {
	layer, err := buildObjectLayerInfo(raw)
	if err != nil {
		return nil, err
	}
	layer.Objects = make([]*Object, 0, len(raw.Objects))
	for i := range raw.Objects {
		ro := &raw.Objects[i]
		obj, err := buildObject(ro)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", ro.ID, err)
		}
		if ro.Template != "" {
			obj.TemplatePath = resolvePath(b.docPath, ro.Template)
			b.pending = append(b.pending, pendingObject{obj: obj, raw: ro, docPath: b.docPath})
		}
		layer.Objects = append(layer.Objects, obj)
	}
	return layer, nil
}

func (b *layerBuilder) buildImageLayer(raw *xmlImageLayer) (*ImageLayer, error) {
	info, err := buildLayerInfo(&raw.xmlLayerAttrs)
	if err != nil {
		return nil, err
	}
	layer := &ImageLayer{LayerInfo: info, RepeatX: raw.RepeatX, RepeatY: raw.RepeatY}
	// Tiled writes an empty <image source=""/> for layers without an image.
	if raw.Image != nil && (raw.Image.Source != "" || raw.Image.Data != nil) {
		if layer.Image, err = buildImage(raw.Image, b.docPath); err != nil {
			return nil, err
		}
	}
	return layer, nil
}
