package tmx_test

import (
	"context"
	"image/color"
	"io/fs"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/eak1mov/go-tmx/internal"
	"github.com/eak1mov/go-tmx/tile"
	"github.com/eak1mov/go-tmx/tmx"
	"github.com/eak1mov/go-tmx/tmx/spec"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func testdataLoader(opts ...tmx.LoaderOption) *tmx.Loader {
	opts = append([]tmx.LoaderOption{tmx.WithReader(tmx.FSReader(os.DirFS("testdata")))}, opts...)
	return tmx.NewLoader(opts...)
}

func loadFiles(t *testing.T, files map[string]string, opts ...tmx.LoaderOption) (*tmx.Map, error) {
	t.Helper()
	opts = append([]tmx.LoaderOption{tmx.WithReader(tmx.FSReader(internal.MapFS(files)))}, opts...)
	return tmx.NewLoader(opts...).LoadMap(context.Background(), "map.tmx")
}

func TestLoadExample(t *testing.T) {
	m, err := testdataLoader().LoadMap(context.Background(), "maps/example.tmx")
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}

	if got, want := m.Orientation, tmx.Orthogonal; got != want {
		t.Errorf("Orientation = %v, want = %v", got, want)
	}
	if got, want := m.RenderOrder, tmx.RightDown; got != want {
		t.Errorf("RenderOrder = %v, want = %v", got, want)
	}
	if diff := cmp.Diff(&color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff}, m.BackgroundColor); diff != "" {
		t.Errorf("BackgroundColor mismatch (-want+got):\n%v", diff)
	}
	if v, _ := m.Properties.String("title"); v != "Example" {
		t.Errorf("title property = %q, want %q", v, "Example")
	}
	if v, ok := m.Properties.Object("spawn"); !ok || v != 2 {
		t.Errorf("spawn property = %v, %v, want 2, true", v, ok)
	}

	tilesets := m.Tilesets()
	require.Len(t, tilesets, 2)
	terrain, items := tilesets[0], tilesets[1]
	require.EqualValues(t, 1, terrain.FirstGID)
	require.EqualValues(t, 21, items.FirstGID)
	require.Equal(t, "terrain", terrain.Tileset.Name)
	require.Equal(t, "tilesets/terrain.tsx", terrain.Tileset.Path)
	require.Equal(t, "images/terrain.png", terrain.Tileset.Image.Source)
	require.Equal(t, "tilesets/items.png", items.Tileset.Image.Source)
	require.Equal(t, &color.NRGBA{R: 0xff, B: 0xff, A: 0xff}, items.Tileset.Image.Trans)
	require.Equal(t, 4, items.Tileset.TileOffsetY)
	require.EqualValues(t, 20, terrain.Tileset.Size())

	// cells [0, 5, 23]
	if _, ok := m.TileAt(0, 0, 0); ok {
		t.Errorf("TileAt(0, 0, 0) found a tile in an empty cell")
	}
	for _, tc := range []struct {
		x        int
		firstGID uint32
		id       uint32
	}{
		{x: 1, firstGID: 1, id: 4},
		{x: 2, firstGID: 21, id: 2},
	} {
		lt, ok := m.TileAt(0, tc.x, 0)
		if !ok {
			t.Fatalf("TileAt(0, %d, 0) found no tile", tc.x)
		}
		if lt.Tileset.FirstGID != tc.firstGID || lt.ID != tc.id {
			t.Errorf("TileAt(0, %d, 0) = (firstgid %d, id %d), want (firstgid %d, id %d)",
				tc.x, lt.Tileset.FirstGID, lt.ID, tc.firstGID, tc.id)
		}
	}

	water, ok := m.TileAt(0, 1, 0)
	require.True(t, ok)
	data, ok := water.Data()
	require.True(t, ok)
	require.Equal(t, "water", data.Class)
	require.Equal(t, 0.5, data.Probability)
	speed, _ := data.Properties.Float("speed")
	require.Equal(t, 0.25, speed)

	coin, ok := m.TileAt(0, 2, 0)
	require.True(t, ok)
	data, ok = coin.Data()
	require.True(t, ok)
	if diff := cmp.Diff([]tmx.Frame{{TileID: 2, Duration: 100 * time.Millisecond}, {TileID: 3, Duration: 150 * time.Millisecond}}, data.Animation); diff != "" {
		t.Errorf("Animation mismatch (-want+got):\n%v", diff)
	}
	glow, _ := data.Properties.Color("glow")
	require.Equal(t, &color.NRGBA{A: 0x80, R: 0xff, G: 0xcc}, glow)
	require.NotNil(t, data.Collision)
	require.Equal(t, tmx.DrawOrderIndex, data.Collision.DrawOrder)
	var shapes []tmx.Shape
	for _, obj := range data.Collision.Objects {
		shapes = append(shapes, obj.Shape)
	}
	wantShapes := []tmx.Shape{tmx.Rectangle{}, tmx.Ellipse{}, tmx.Polygon{Points: []tmx.Vec2{{0, 0}, {16, 0}, {8, 16}}}}
	if diff := cmp.Diff(wantShapes, shapes); diff != "" {
		t.Errorf("collision shapes mismatch (-want+got):\n%v", diff)
	}

	// legacy <tile gid> data in the nested layer, first cell flipped
	flipped, ok := m.TileAt(1, 0, 0)
	require.True(t, ok)
	require.True(t, flipped.Flip.Horizontal())
	require.False(t, flipped.Flip.Vertical())
	require.EqualValues(t, 21, flipped.Tileset.FirstGID)
	require.EqualValues(t, 0, flipped.ID)

	var cells []tile.Cell
	err = m.VisitCells(func(c tile.Cell) error {
		cells = append(cells, c)
		return nil
	})
	require.NoError(t, err)
	wantCells := []tile.Cell{
		{Layer: 0, X: 1, Y: 0, GID: 5},
		{Layer: 0, X: 2, Y: 0, GID: 23},
		{Layer: 1, X: 0, Y: 0, GID: 0x80000015},
		{Layer: 1, X: 2, Y: 0, GID: 1},
	}
	if diff := cmp.Diff(wantCells, cells); diff != "" {
		t.Errorf("VisitCells mismatch (-want+got):\n%v", diff)
	}
}

func TestLoadExampleLayerTree(t *testing.T) {
	m, err := testdataLoader().LoadMap(context.Background(), "maps/example.tmx")
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}

	var names []string
	for layer := range m.AllLayers() {
		names = append(names, layer.Info().Name)
	}
	if diff := cmp.Diff([]string{"ground", "decor", "overlay", "things", "sky"}, names); diff != "" {
		t.Errorf("layer order mismatch (-want+got):\n%v", diff)
	}

	layers := m.Layers()
	require.Len(t, layers, 3)
	group, ok := layers[1].(*tmx.GroupLayer)
	require.True(t, ok, "layer 1 is %T, want *tmx.GroupLayer", layers[1])

	// group attributes are stored as declared, not applied to children
	require.Equal(t, 8.0, group.OffsetX)
	require.Equal(t, -4.0, group.OffsetY)
	require.Equal(t, 0.5, group.Opacity)
	require.False(t, group.Visible)
	require.Equal(t, &color.NRGBA{R: 0xff, A: 0xff}, group.TintColor)

	overlay, ok := group.Layers[0].(*tmx.TileLayer)
	require.True(t, ok)
	require.Equal(t, 0.75, overlay.Opacity)
	require.Equal(t, 0.0, overlay.OffsetX)
	require.True(t, overlay.Visible)
	require.Nil(t, overlay.TintColor)

	things, ok := m.LayerByName("things")
	require.True(t, ok)
	objects := things.(*tmx.ObjectLayer)
	require.Equal(t, &color.NRGBA{G: 0xff, A: 0xff}, objects.Color)
	require.Len(t, objects.Objects, 3)

	chest := objects.Objects[0]
	require.Equal(t, "container", chest.Class)
	lt, ok := m.ObjectTile(chest)
	require.True(t, ok)
	require.EqualValues(t, 21, lt.Tileset.FirstGID)
	require.EqualValues(t, 2, lt.ID)

	require.Equal(t, tmx.Point{}, objects.Objects[1].Shape)
	wantText := tmx.Text{
		Value:      "Welcome",
		FontFamily: "sans-serif",
		PixelSize:  12,
		Wrap:       true,
		Color:      color.NRGBA{A: 0xff},
		Kerning:    true,
		HAlign:     "center",
		VAlign:     "top",
	}
	if diff := cmp.Diff(wantText, objects.Objects[2].Shape); diff != "" {
		t.Errorf("text shape mismatch (-want+got):\n%v", diff)
	}

	sky := layers[2].(*tmx.ImageLayer)
	require.Equal(t, 0.5, sky.ParallaxX)
	require.Equal(t, 1.0, sky.ParallaxY)
	require.True(t, sky.RepeatX)
	require.False(t, sky.RepeatY)
	require.Equal(t, "images/sky.png", sky.Image.Source)

	if _, ok := m.LayerByName("missing"); ok {
		t.Errorf("LayerByName(missing) found a layer")
	}
	if _, ok := m.TileAt(5, 0, 0); ok {
		t.Errorf("TileAt on an unknown layer found a tile")
	}
}

func TestTilesetForGID(t *testing.T) {
	m, err := testdataLoader().LoadMap(context.Background(), "maps/example.tmx")
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}

	for _, tc := range []struct {
		gid      spec.GID
		ok       bool
		firstGID uint32
		id       uint32
	}{
		{gid: 0, ok: false},
		{gid: spec.Compose(0, spec.FlipHorizontal|spec.FlipDiagonal), ok: false},
		{gid: 1, ok: true, firstGID: 1, id: 0},
		{gid: 20, ok: true, firstGID: 1, id: 19},
		{gid: 21, ok: true, firstGID: 21, id: 0},
		{gid: spec.Compose(40, spec.FlipVertical), ok: true, firstGID: 21, id: 19},
		{gid: 41, ok: false},
		{gid: 1 << 27, ok: false},
	} {
		ts, id, ok := m.TilesetForGID(tc.gid)
		if ok != tc.ok {
			t.Errorf("TilesetForGID(%#x) ok = %v, want %v", uint32(tc.gid), ok, tc.ok)
			continue
		}
		if ok && (ts.FirstGID != tc.firstGID || id != tc.id) {
			t.Errorf("TilesetForGID(%#x) = (firstgid %d, id %d), want (firstgid %d, id %d)",
				uint32(tc.gid), ts.FirstGID, id, tc.firstGID, tc.id)
		}
	}
}

func TestCacheIdentity(t *testing.T) {
	reader := internal.NewCountingReader(tmx.FSReader(os.DirFS("testdata")))
	cache := tmx.NewCache()
	loader := tmx.NewLoader(tmx.WithReader(reader.Read), tmx.WithCache(cache))

	first, err := loader.LoadMap(context.Background(), "maps/example.tmx")
	require.NoError(t, err)
	second, err := loader.LoadMap(context.Background(), "maps/example.tmx")
	require.NoError(t, err)

	if first == second {
		t.Errorf("LoadMap returned the same map twice")
	}
	for i := range first.Tilesets() {
		if first.Tilesets()[i].Tileset != second.Tilesets()[i].Tileset {
			t.Errorf("tileset %d: cache returned distinct instances", i)
		}
	}
	require.Equal(t, 1, reader.Count("tilesets/terrain.tsx"))
	require.Equal(t, 1, reader.Count("tilesets/items.tsx"))
	require.Equal(t, 2, reader.Count("maps/example.tmx"))
	require.Equal(t, 2, cache.Len())

	ts, ok := cache.Tileset("tilesets/terrain.tsx")
	require.True(t, ok)
	require.Same(t, first.Tilesets()[0].Tileset, ts)

	// a loader with its own cache fetches again
	other := tmx.NewLoader(tmx.WithReader(reader.Read))
	third, err := other.LoadMap(context.Background(), "maps/example.tmx")
	require.NoError(t, err)
	require.NotSame(t, first.Tilesets()[0].Tileset, third.Tilesets()[0].Tileset)
	require.Equal(t, 2, reader.Count("tilesets/terrain.tsx"))
}

func TestConcurrentLoadsFetchOnce(t *testing.T) {
	reader := internal.NewCountingReader(tmx.FSReader(os.DirFS("testdata")))
	loader := tmx.NewLoader(tmx.WithReader(reader.Read), tmx.WithConcurrency(2))

	const n = 8
	maps := make([]*tmx.Map, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			maps[i], errs[i] = loader.LoadMap(context.Background(), "maps/example.tmx")
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		require.Same(t, maps[0].Tilesets()[1].Tileset, maps[i].Tilesets()[1].Tileset)
	}
	require.Equal(t, 1, reader.Count("tilesets/terrain.tsx"))
	require.Equal(t, 1, reader.Count("tilesets/items.tsx"))
}

func TestSharedLoadOutlivesFailedCaller(t *testing.T) {
	base := tmx.FSReader(internal.MapFS(map[string]string{
		"x.tsx": `<tileset name="x" tilewidth="8" tileheight="8" tilecount="1" columns="1"><image source="x.png" width="8" height="8"/></tileset>`,
		"a.tmx": `<map tilewidth="8" tileheight="8"><tileset firstgid="1" source="x.tsx"/><tileset firstgid="2" source="missing.tsx"/></map>`,
		"b.tmx": `<map tilewidth="8" tileheight="8"><tileset firstgid="1" source="x.tsx"/></map>`,
	}))
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	read := func(ctx context.Context, name string) ([]byte, error) {
		if name == "x.tsx" {
			once.Do(func() { close(started) })
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		return base(ctx, name)
	}
	loader := tmx.NewLoader(tmx.WithReader(read))

	// a.tmx fails on its missing tileset while x.tsx is in flight, which
	// cancels the context its x.tsx load was started with
	errA := make(chan error, 1)
	go func() {
		_, err := loader.LoadMap(context.Background(), "a.tmx")
		errA <- err
	}()
	<-started
	require.ErrorIs(t, <-errA, fs.ErrNotExist)

	resB := make(chan error, 1)
	go func() {
		m, err := loader.LoadMap(context.Background(), "b.tmx")
		if err == nil && m.Tilesets()[0].Tileset.Name != "x" {
			t.Errorf("b.tmx tileset = %q, want x", m.Tilesets()[0].Tileset.Name)
		}
		resB <- err
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, <-resB)

	ts, ok := loader.Cache().Tileset("x.tsx")
	require.True(t, ok)
	require.Equal(t, "x", ts.Name)
}

func TestLoadTilesetNotCached(t *testing.T) {
	reader := internal.NewCountingReader(tmx.FSReader(os.DirFS("testdata")))
	loader := tmx.NewLoader(tmx.WithReader(reader.Read))

	ts, err := loader.LoadTileset(context.Background(), "tilesets/items.tsx")
	require.NoError(t, err)
	require.Equal(t, "items", ts.Name)
	require.Equal(t, "pickup", ts.Class)
	require.Equal(t, 10, ts.Columns)
	require.Equal(t, 0, loader.Cache().Len())

	_, err = loader.LoadMap(context.Background(), "maps/example.tmx")
	require.NoError(t, err)
	require.Equal(t, 2, reader.Count("tilesets/items.tsx"))
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testdataLoader().LoadMap(ctx, "maps/example.tmx")
	require.ErrorIs(t, err, context.Canceled)
}

const inlineTileset = `<tileset firstgid="1" name="t" tilewidth="8" tileheight="8" tilecount="100" columns="10"><image source="t.png" width="80" height="80"/></tileset>`

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		files   map[string]string
		kind    error
		element string
	}{
		{
			name:  "missing map",
			files: map[string]string{},
			kind:  tmx.ErrResolution,
		},
		{
			name:  "malformed xml",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8"><layer`},
			kind:  tmx.ErrFormat,
		},
		{
			name: "missing external tileset",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8" width="1" height="1">
				<tileset firstgid="1" source="missing.tsx"/></map>`},
			kind:    tmx.ErrResolution,
			element: `tileset firstgid=1 source="missing.tsx"`,
		},
		{
			name: "unparsable external tileset",
			files: map[string]string{
				"map.tmx": `<map tilewidth="8" tileheight="8"><tileset firstgid="1" source="bad.tsx"/></map>`,
				"bad.tsx": `<tileset name="bad" tilewidth="0" tileheight="8"/>`,
			},
			kind: tmx.ErrResolution,
		},
		{
			name: "unknown orientation",
			files: map[string]string{"map.tmx": `<map orientation="spherical" tilewidth="8" tileheight="8"/>`},
			kind: tmx.ErrUnsupported,
		},
		{
			name: "unknown compression",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8" width="1" height="1">
				<layer name="l" width="1" height="1"><data encoding="base64" compression="lz4">AAAAAA==</data></layer></map>`},
			kind:    tmx.ErrUnsupported,
			element: `layer "l"`,
		},
		{
			name: "corrupt gzip",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8" width="1" height="1">
				<layer name="l" width="1" height="1"><data encoding="base64" compression="gzip">AAAAAA==</data></layer></map>`},
			kind: tmx.ErrDecode,
		},
		{
			name: "cell count mismatch",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8" width="2" height="2">` + inlineTileset + `
				<layer name="l" width="2" height="2"><data encoding="csv">1,2,3</data></layer></map>`},
			kind: tmx.ErrFormat,
		},
		{
			name: "gid outside of tilesets",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8" width="2" height="1">` + inlineTileset + `
				<layer name="l" width="2" height="1"><data encoding="csv">1,101</data></layer></map>`},
			kind:    tmx.ErrFormat,
			element: `layer "l"`,
		},
		{
			name: "tile object outside of tilesets",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8">` + inlineTileset + `
				<objectgroup name="o"><object id="7" gid="500"/></objectgroup></map>`},
			kind:    tmx.ErrFormat,
			element: "object 7",
		},
		{
			name: "firstgid out of order",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8">` + inlineTileset +
				`<tileset firstgid="1" name="u" tilewidth="8" tileheight="8" tilecount="1" columns="1"><image source="u.png" width="8" height="8"/></tileset></map>`},
			kind:    tmx.ErrFormat,
			element: "tileset firstgid=1",
		},
		{
			name: "overlapping tilesets",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8">` + inlineTileset +
				`<tileset firstgid="50" name="u" tilewidth="8" tileheight="8" tilecount="1" columns="1"><image source="u.png" width="8" height="8"/></tileset></map>`},
			kind:    tmx.ErrFormat,
			element: "tileset firstgid=50",
		},
		{
			name: "zero firstgid",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8">
				<tileset firstgid="0" name="u" tilewidth="8" tileheight="8" tilecount="1" columns="1"><image source="u.png" width="8" height="8"/></tileset></map>`},
			kind: tmx.ErrFormat,
		},
		{
			name: "unknown property type",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8">
				<properties><property name="p" type="vector" value="1"/></properties></map>`},
			kind: tmx.ErrUnsupported,
		},
		{
			name: "bad int property",
			files: map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8">
				<properties><property name="p" type="int" value="one"/></properties></map>`},
			kind: tmx.ErrFormat,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := loadFiles(t, tc.files)
			require.Nil(t, m)
			require.ErrorIs(t, err, tc.kind)

			var located *tmx.Error
			require.ErrorAs(t, err, &located)
			require.Equal(t, "map.tmx", located.Path)
			if tc.element != "" {
				require.Equal(t, tc.element, located.Element)
			}
		})
	}
}

func TestMissingTilesetIsNotExist(t *testing.T) {
	_, err := loadFiles(t, map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8">
		<tileset firstgid="1" source="gone.tsx"/></map>`})
	require.ErrorIs(t, err, tmx.ErrResolution)
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.ErrorContains(t, err, `map.tmx: tileset firstgid=1 source="gone.tsx"`)
}

func TestNestedPaths(t *testing.T) {
	files := map[string]string{
		"a/b/map.tmx": `<map tilewidth="8" tileheight="8" width="1" height="1">
			<tileset firstgid="1" source="../ts/x.tsx"/>
			<layer name="l" width="1" height="1"><data encoding="csv">2</data></layer></map>`,
		"a/ts/x.tsx": `<tileset name="x" tilewidth="8" tileheight="8">
			<tile id="0"><image source="img/zero.png" width="8" height="8"/></tile>
			<tile id="1"><image source="/abs/one.png" width="8" height="8"/></tile></tileset>`,
	}
	loader := tmx.NewLoader(tmx.WithReader(tmx.FSReader(internal.MapFS(files))))
	m, err := loader.LoadMap(context.Background(), "a/b/map.tmx")
	require.NoError(t, err)

	ts := m.Tilesets()[0].Tileset
	require.Equal(t, "a/ts/x.tsx", ts.Path)
	require.EqualValues(t, 2, ts.Size())
	require.Nil(t, ts.Image)

	zero, _ := ts.Tile(0)
	require.Equal(t, "a/ts/img/zero.png", zero.Image.Source)
	one, _ := ts.Tile(1)
	require.Equal(t, "/abs/one.png", one.Image.Source)

	lt, ok := m.TileAt(0, 0, 0)
	require.True(t, ok)
	require.EqualValues(t, 1, lt.ID)
}

func TestPolylineObject(t *testing.T) {
	m, err := loadFiles(t, map[string]string{"map.tmx": `<map tilewidth="8" tileheight="8">
		<objectgroup name="o">
			<object id="1" name="path" x="1" y="2" rotation="45" visible="0"><polyline points="0,0 4.5,-2"/></object>
		</objectgroup></map>`})
	require.NoError(t, err)

	objects := m.Layers()[0].(*tmx.ObjectLayer).Objects
	want := []*tmx.Object{{
		ID:         1,
		Name:       "path",
		X:          1,
		Y:          2,
		Rotation:   45,
		Visible:    false,
		Shape:      tmx.Polyline{Points: []tmx.Vec2{{0, 0}, {4.5, -2}}},
		Properties: tmx.Properties{},
	}}
	if diff := cmp.Diff(want, objects, cmpopts.IgnoreUnexported(tmx.Object{})); diff != "" {
		t.Errorf("objects mismatch (-want+got):\n%v", diff)
	}
	layer, ok := m.LayerByName("o")
	require.True(t, ok)
	require.Equal(t, tmx.DrawOrderTopDown, layer.(*tmx.ObjectLayer).DrawOrder)
}
