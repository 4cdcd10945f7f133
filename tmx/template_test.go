package tmx_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/eak1mov/go-tmx/internal"
	"github.com/eak1mov/go-tmx/tmx"
	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	reader := internal.NewCountingReader(tmx.FSReader(os.DirFS("testdata")))
	loader := tmx.NewLoader(tmx.WithReader(reader.Read))

	m, err := loader.LoadMap(context.Background(), "maps/templated.tmx")
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}

	layer, ok := m.LayerByName("objects")
	require.True(t, ok)
	objects := layer.(*tmx.ObjectLayer).Objects
	require.Len(t, objects, 4)
	chest, mimic, zone, custom := objects[0], objects[1], objects[2], objects[3]

	require.EqualValues(t, 1, chest.ID)
	require.Equal(t, "chest", chest.Name)
	require.Equal(t, "container", chest.Class)
	require.Equal(t, 32.0, chest.X)
	require.Equal(t, 48.0, chest.Y)
	require.Equal(t, 16.0, chest.Width)
	require.Equal(t, "templates/chest.tx", chest.TemplatePath)
	require.NotNil(t, chest.Template)
	locked, _ := chest.Properties.Bool("locked")
	require.True(t, locked)
	loot, _ := chest.Properties.String("loot")
	require.Equal(t, "gold", loot)

	// the inherited gid refers to the template tileset, which the map lacks
	lt, ok := m.ObjectTile(chest)
	require.True(t, ok)
	require.Equal(t, "items", lt.Tileset.Tileset.Name)
	require.EqualValues(t, 1, lt.Tileset.FirstGID)
	require.EqualValues(t, 2, lt.ID)
	require.Same(t, chest.Template.Tileset.Tileset, lt.Tileset.Tileset)

	require.Equal(t, "mimic", mimic.Name)
	require.Same(t, chest.Template, mimic.Template)
	locked, _ = mimic.Properties.Bool("locked")
	require.False(t, locked)
	loot, _ = mimic.Properties.String("loot")
	require.Equal(t, "gold", loot)

	require.Equal(t, tmx.Ellipse{}, zone.Shape)
	require.Equal(t, 32.0, zone.Width)
	require.Equal(t, 24.0, zone.Height)
	require.Equal(t, 5.0, zone.X)
	require.Nil(t, zone.Template.Tileset)

	// a gid set on the instance refers to the map tilesets
	lt, ok = m.ObjectTile(custom)
	require.True(t, ok)
	require.Equal(t, "terrain", lt.Tileset.Tileset.Name)
	require.EqualValues(t, 6, lt.ID)

	require.Equal(t, 1, reader.Count("templates/chest.tx"))
	require.Equal(t, 1, reader.Count("templates/zone.tx"))
	require.Equal(t, 1, reader.Count("tilesets/items.tsx"))
	require.Equal(t, 4, loader.Cache().Len())

	cached, ok := loader.Cache().Template("templates/chest.tx")
	require.True(t, ok)
	require.Same(t, chest.Template, cached)
}

const missingTemplateMap = `<map tilewidth="8" tileheight="8">
	<objectgroup name="o">
		<object id="3" name="local" template="missing.tx" x="1" y="2"/>
	</objectgroup></map>`

func TestTemplateFailureIsFatal(t *testing.T) {
	m, err := loadFiles(t, map[string]string{"map.tmx": missingTemplateMap})
	require.Nil(t, m)
	require.ErrorIs(t, err, tmx.ErrResolution)

	var located *tmx.Error
	require.ErrorAs(t, err, &located)
	require.Equal(t, "map.tmx", located.Path)
	require.Equal(t, `template "missing.tx"`, located.Element)
}

func TestTemplateFallback(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	m, err := loadFiles(t, map[string]string{"map.tmx": missingTemplateMap},
		tmx.WithTemplateFallback(), tmx.WithLogger(logger))
	require.NoError(t, err)

	obj := m.Layers()[0].(*tmx.ObjectLayer).Objects[0]
	require.Equal(t, "local", obj.Name)
	require.Equal(t, 1.0, obj.X)
	require.Equal(t, 2.0, obj.Y)
	require.Equal(t, tmx.Rectangle{}, obj.Shape)
	require.Equal(t, "missing.tx", obj.TemplatePath)
	require.Nil(t, obj.Template)

	require.Contains(t, logs.String(), "template unavailable")
	require.Contains(t, logs.String(), "missing.tx")
}

func TestTemplateErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		template string
		kind     error
	}{
		{
			name:     "not a template",
			template: `<map/>`,
			kind:     tmx.ErrFormat,
		},
		{
			name:     "no object",
			template: `<template/>`,
			kind:     tmx.ErrFormat,
		},
		{
			name:     "tile object without tileset",
			template: `<template><object gid="4"/></template>`,
			kind:     tmx.ErrFormat,
		},
		{
			name:     "missing template tileset",
			template: `<template><tileset firstgid="1" source="gone.tsx"/><object gid="1"/></template>`,
			kind:     tmx.ErrResolution,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadFiles(t, map[string]string{
				"map.tmx": `<map tilewidth="8" tileheight="8"><objectgroup name="o">
					<object id="1" template="t.tx"/></objectgroup></map>`,
				"t.tx": tc.template,
			})
			require.ErrorIs(t, err, tmx.ErrResolution)
			require.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestTemplateInlineTileset(t *testing.T) {
	m, err := loadFiles(t, map[string]string{
		"map.tmx": `<map tilewidth="8" tileheight="8"><objectgroup name="o">
			<object id="1" template="tpl/t.tx" x="4" y="4"/></objectgroup></map>`,
		"tpl/t.tx": `<template>
			<tileset firstgid="10" name="inline" tilewidth="8" tileheight="8" tilecount="4" columns="2">
				<image source="sheet.png" width="16" height="16"/>
			</tileset>
			<object gid="2147483661" width="8" height="8"/></template>`,
	})
	require.NoError(t, err)

	obj := m.Layers()[0].(*tmx.ObjectLayer).Objects[0]
	lt, ok := m.ObjectTile(obj)
	require.True(t, ok)
	require.EqualValues(t, 3, lt.ID)
	require.True(t, lt.Flip.Horizontal())
	require.Equal(t, "tpl/sheet.png", lt.Tileset.Tileset.Image.Source)
	require.Empty(t, m.Tilesets())
}
