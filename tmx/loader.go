// Package tmx loads Tiled maps (TMX), tilesets (TSX) and object templates
// (TX) into an immutable in-memory model.
package tmx

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eak1mov/go-tmx/tmx/spec"
)

const (
	defaultChunkSize   = 16
	defaultConcurrency = 8
)

// Loader loads maps and resolves the external documents they reference.
// It is safe for concurrent use.
type Loader struct {
	read             ReadFunc
	cache            *Cache
	logger           *slog.Logger
	templateFallback bool
	concurrency      int
}

type loaderConfig struct {
	Read             ReadFunc
	Cache            *Cache
	Logger           *slog.Logger
	TemplateFallback bool
	Concurrency      int
}

type LoaderOption func(*loaderConfig)

// WithReader sets the document source. The default reads the local
// filesystem.
func WithReader(read ReadFunc) LoaderOption {
	return func(c *loaderConfig) { c.Read = read }
}

// WithCache shares external tilesets and templates with other loaders using
// the same cache. By default every Loader owns a fresh cache.
func WithCache(cache *Cache) LoaderOption {
	return func(c *loaderConfig) { c.Cache = cache }
}

func WithLogger(logger *slog.Logger) LoaderOption {
	return func(c *loaderConfig) { c.Logger = logger }
}

// WithTemplateFallback makes template resolution failures non-fatal: the
// referencing object keeps only its local attributes and a warning is
// logged. Without it a failed template fails the whole load.
func WithTemplateFallback() LoaderOption {
	return func(c *loaderConfig) { c.TemplateFallback = true }
}

// WithConcurrency bounds the number of external documents fetched at once.
func WithConcurrency(n int) LoaderOption {
	return func(c *loaderConfig) { c.Concurrency = n }
}

func NewLoader(opts ...LoaderOption) *Loader {
	config := loaderConfig{
		Read:        OSReader(),
		Logger:      slog.New(slog.DiscardHandler),
		Concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Cache == nil {
		config.Cache = NewCache()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Loader{
		read:             config.Read,
		cache:            config.Cache,
		logger:           config.Logger,
		templateFallback: config.TemplateFallback,
		concurrency:      config.Concurrency,
	}
}

func (l *Loader) Cache() *Cache {
	return l.cache
}

// LoadMap loads the map at mapPath together with its external tilesets and
// templates. On failure it returns a *Error and no map.
func (l *Loader) LoadMap(ctx context.Context, mapPath string) (*Map, error) {
	mapPath = path.Clean(mapPath)
	l.logger.Debug("tmx: loading map", "path", mapPath)

	data, err := l.fetch(ctx, mapPath)
	if err != nil {
		return nil, locate(mapPath, "", err)
	}
	var raw xmlMap
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, locate(mapPath, "", fmt.Errorf("%w: %w", ErrFormat, err))
	}

	m, err := l.assemble(ctx, mapPath, &raw)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("tmx: map loaded", "path", mapPath, "tilesets", len(m.tilesets), "tile_layers", len(m.tileLayers))
	return m, nil
}

// LoadTileset loads a standalone TSX document. The tileset is not stored in
// the cache.
func (l *Loader) LoadTileset(ctx context.Context, tilesetPath string) (*Tileset, error) {
	tilesetPath = path.Clean(tilesetPath)
	ts, err := l.fetchTileset(ctx, tilesetPath)
	if err != nil {
		return nil, locate(tilesetPath, "tileset", err)
	}
	return ts, nil
}

func (l *Loader) assemble(ctx context.Context, mapPath string, raw *xmlMap) (*Map, error) {
	m := &Map{
		Path:            mapPath,
		Version:         raw.Version,
		TiledVersion:    raw.TiledVersion,
		Class:           raw.Class,
		Width:           raw.Width,
		Height:          raw.Height,
		TileWidth:       raw.TileWidth,
		TileHeight:      raw.TileHeight,
		Infinite:        raw.Infinite,
		ChunkWidth:      defaultChunkSize,
		ChunkHeight:     defaultChunkSize,
		HexSideLength:   raw.HexSideLength,
		StaggerAxis:     raw.StaggerAxis,
		StaggerIndex:    raw.StaggerIndex,
		ParallaxOriginX: raw.ParallaxOriginX,
		ParallaxOriginY: raw.ParallaxOriginY,
		NextLayerID:     raw.NextLayerID,
		NextObjectID:    raw.NextObjectID,
	}
	if err := l.buildMapAttrs(m, raw); err != nil {
		return nil, locate(mapPath, "map", err)
	}

	var err error
	if m.tilesets, err = l.resolveTilesets(ctx, mapPath, raw.Tilesets); err != nil {
		return nil, err
	}

	builder := &layerBuilder{
		docPath:     mapPath,
		infinite:    m.Infinite,
		chunkWidth:  m.ChunkWidth,
		chunkHeight: m.ChunkHeight,
	}
	if m.layers, err = builder.buildLayers(raw.Layers); err != nil {
		return nil, err
	}
	for layer := range m.AllLayers() {
		if tl, ok := layer.(*TileLayer); ok {
			m.tileLayers = append(m.tileLayers, tl)
		}
	}
	if err := m.checkCells(); err != nil {
		return nil, err
	}

	if err := l.resolveTemplates(ctx, mapPath, builder.pending); err != nil {
		return nil, err
	}
	if err := m.checkObjects(); err != nil {
		return nil, err
	}
	return m, nil
}

func (l *Loader) buildMapAttrs(m *Map, raw *xmlMap) error {
	var err error
	if m.Orientation, err = parseOrientation(raw.Orientation); err != nil {
		return err
	}
	if m.RenderOrder, err = parseRenderOrder(raw.RenderOrder); err != nil {
		return err
	}
	if raw.TileWidth <= 0 || raw.TileHeight <= 0 {
		return formatErrorf("tile size %dx%d", raw.TileWidth, raw.TileHeight)
	}
	if raw.Width < 0 || raw.Height < 0 {
		return formatErrorf("map size %dx%d", raw.Width, raw.Height)
	}
	if raw.EditorSettings != nil && raw.EditorSettings.ChunkSize != nil {
		m.ChunkWidth = raw.EditorSettings.ChunkSize.Width
		m.ChunkHeight = raw.EditorSettings.ChunkSize.Height
		if m.ChunkWidth <= 0 || m.ChunkHeight <= 0 {
			return formatErrorf("chunk size %dx%d", m.ChunkWidth, m.ChunkHeight)
		}
	}
	if m.BackgroundColor, err = parseColor(raw.BackgroundColor); err != nil {
		return err
	}
	m.Properties, err = buildProperties(raw.Properties)
	return err
}

// resolveTilesets builds inline tilesets and loads external ones
// concurrently. The result keeps declaration order.
func (l *Loader) resolveTilesets(ctx context.Context, mapPath string, raws []xmlTileset) ([]MapTileset, error) {
	tilesets := make([]MapTileset, len(raws))
	for i := range raws {
		raw := &raws[i]
		if raw.FirstGID == 0 {
			return nil, locate(mapPath, tilesetElement(raw), formatErrorf("firstgid must be positive"))
		}
		tilesets[i].FirstGID = raw.FirstGID
		if raw.Source != "" {
			continue
		}
		ts, err := buildTileset(raw, mapPath)
		if err != nil {
			return nil, locate(mapPath, tilesetElement(raw), err)
		}
		tilesets[i].Tileset = ts
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i := range raws {
		raw := &raws[i]
		if raw.Source == "" {
			continue
		}
		tilesetPath := resolvePath(mapPath, raw.Source)
		g.Go(func() error {
			ts, err := l.loadTileset(gctx, tilesetPath)
			if err != nil {
				return locate(mapPath, tilesetElement(raw), err)
			}
			tilesets[i].Tileset = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < len(tilesets); i++ {
		prev, cur := tilesets[i-1], tilesets[i]
		element := fmt.Sprintf("tileset firstgid=%d", cur.FirstGID)
		if cur.FirstGID <= prev.FirstGID {
			return nil, locate(mapPath, element, formatErrorf("firstgid not greater than previous firstgid %d", prev.FirstGID))
		}
		if uint64(cur.FirstGID) < uint64(prev.FirstGID)+uint64(prev.Tileset.Size()) {
			return nil, locate(mapPath, element, formatErrorf("overlaps tileset firstgid=%d of %d tiles", prev.FirstGID, prev.Tileset.Size()))
		}
	}
	for _, ts := range tilesets {
		if uint64(ts.FirstGID)+uint64(ts.Tileset.Size()) > uint64(spec.FlipHexRotate) {
			return nil, locate(mapPath, fmt.Sprintf("tileset firstgid=%d", ts.FirstGID), formatErrorf("range exceeds the gid space"))
		}
	}
	return tilesets, nil
}

func tilesetElement(raw *xmlTileset) string {
	if raw.Source == "" {
		return fmt.Sprintf("tileset firstgid=%d", raw.FirstGID)
	}
	return fmt.Sprintf("tileset firstgid=%d source=%q", raw.FirstGID, raw.Source)
}

func (l *Loader) loadTileset(ctx context.Context, tilesetPath string) (*Tileset, error) {
	ts, hit, err := l.cache.tileset(ctx, tilesetPath, func(ctx context.Context) (*Tileset, error) {
		return l.fetchTileset(ctx, tilesetPath)
	})
	if hit {
		l.logger.Debug("tmx: cache hit", "kind", "tileset", "path", tilesetPath)
	}
	return ts, err
}

func (l *Loader) fetchTileset(ctx context.Context, tilesetPath string) (*Tileset, error) {
	data, err := l.fetch(ctx, tilesetPath)
	if err != nil {
		return nil, err
	}
	var doc xmlTilesetDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrResolution, ErrFormat, err)
	}
	ts, err := buildTileset(&doc.xmlTileset, tilesetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	ts.Path = tilesetPath
	l.logger.Debug("tmx: tileset loaded", "path", tilesetPath, "name", ts.Name, "size", ts.Size())
	return ts, nil
}

// resolveTemplates loads the templates of the pending objects and rebuilds
// each object from its template merged with its local attributes.
func (l *Loader) resolveTemplates(ctx context.Context, docPath string, pending []pendingObject) error {
	if len(pending) == 0 {
		return nil
	}

	var mu sync.Mutex
	templates := make(map[string]*Template)
	failures := make(map[string]error)
	seen := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, p := range pending {
		templatePath := p.obj.TemplatePath
		if seen[templatePath] {
			continue
		}
		seen[templatePath] = true
		g.Go(func() error {
			t, err := l.loadTemplate(gctx, templatePath)
			if err != nil && (!l.templateFallback || gctx.Err() != nil) {
				return locate(docPath, fmt.Sprintf("template %q", templatePath), err)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[templatePath] = err
				return nil
			}
			templates[templatePath] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range pending {
		t := templates[p.obj.TemplatePath]
		if t == nil {
			l.logger.Warn("tmx: template unavailable, using local object attributes",
				"path", p.obj.TemplatePath, "object", p.obj.ID, "err", failures[p.obj.TemplatePath])
			continue
		}
		if err := applyTemplate(p, t); err != nil {
			return locate(p.docPath, fmt.Sprintf("object %d", p.obj.ID), err)
		}
	}
	return nil
}

func applyTemplate(p pendingObject, t *Template) error {
	merged := mergeObject(t.raw, p.raw)
	obj, err := buildObject(merged)
	if err != nil {
		return err
	}
	obj.TemplatePath = t.Path
	obj.Template = t
	if p.raw.GID == nil && !obj.GID.Empty() {
		obj.gidTileset = t.Tileset
	}
	*p.obj = *obj
	return nil
}

func (l *Loader) loadTemplate(ctx context.Context, templatePath string) (*Template, error) {
	t, hit, err := l.cache.template(ctx, templatePath, func(ctx context.Context) (*Template, error) {
		return l.fetchTemplate(ctx, templatePath)
	})
	if hit {
		l.logger.Debug("tmx: cache hit", "kind", "template", "path", templatePath)
	}
	return t, err
}

func (l *Loader) fetchTemplate(ctx context.Context, templatePath string) (*Template, error) {
	data, err := l.fetch(ctx, templatePath)
	if err != nil {
		return nil, err
	}
	t, err := l.buildTemplate(ctx, templatePath, data)
	if err != nil {
		if errors.Is(err, ErrResolution) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	l.logger.Debug("tmx: template loaded", "path", templatePath)
	return t, nil
}

func (l *Loader) buildTemplate(ctx context.Context, templatePath string, data []byte) (*Template, error) {
	var doc xmlTemplateDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if doc.Object == nil {
		return nil, formatErrorf("template without object")
	}
	if doc.Object.Template != "" {
		return nil, formatErrorf("template object refers to template %q", doc.Object.Template)
	}

	t := &Template{Path: templatePath, raw: doc.Object}
	if doc.Tileset != nil {
		if doc.Tileset.FirstGID == 0 {
			return nil, formatErrorf("tileset firstgid must be positive")
		}
		var ts *Tileset
		var err error
		if doc.Tileset.Source != "" {
			ts, err = l.loadTileset(ctx, resolvePath(templatePath, doc.Tileset.Source))
		} else {
			ts, err = buildTileset(doc.Tileset, templatePath)
		}
		if err != nil {
			return nil, err
		}
		t.Tileset = &MapTileset{FirstGID: doc.Tileset.FirstGID, Tileset: ts}
	}

	var err error
	if t.Object, err = buildObject(doc.Object); err != nil {
		return nil, err
	}
	if !t.Object.GID.Empty() && (t.Tileset == nil || !t.Tileset.Contains(t.Object.GID.ID())) {
		return nil, formatErrorf("object gid %d not covered by the template tileset", t.Object.GID.ID())
	}
	return t, nil
}

// fetch reads a document, reporting failures as resolution errors.
func (l *Loader) fetch(ctx context.Context, docPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.logger.Debug("tmx: fetching", "path", docPath)
	data, err := l.read(ctx, docPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	return data, nil
}

// checkCells verifies that every non-empty cell belongs to a tileset.
func (m *Map) checkCells() error {
	for _, layer := range m.tileLayers {
		for pos, gid := range layer.Cells() {
			if _, _, ok := m.TilesetForGID(gid); !ok {
				return locate(m.Path, fmt.Sprintf("layer %q", layer.Name),
					formatErrorf("cell (%d,%d): gid %d not covered by any tileset", pos.X, pos.Y, gid.ID()))
			}
		}
	}
	return nil
}

// checkObjects verifies that tile objects refer to a tileset.
func (m *Map) checkObjects() error {
	for layer := range m.AllLayers() {
		ol, ok := layer.(*ObjectLayer)
		if !ok {
			continue
		}
		for _, obj := range ol.Objects {
			if obj.GID.Empty() {
				continue
			}
			if _, ok := m.ObjectTile(obj); !ok {
				return locate(m.Path, fmt.Sprintf("object %d", obj.ID),
					formatErrorf("gid %d not covered by any tileset", obj.GID.ID()))
			}
		}
	}
	return nil
}
