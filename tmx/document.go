package tmx

import (
	"encoding/xml"
	"fmt"
)

// Raw XML shapes of TMX, TSX and TX documents. Optional attributes whose
// absence differs from their zero value are pointers.

type xmlMap struct {
	XMLName         xml.Name           `xml:"map"`
	Version         string             `xml:"version,attr"`
	TiledVersion    string             `xml:"tiledversion,attr"`
	Class           string             `xml:"class,attr"`
	Orientation     string             `xml:"orientation,attr"`
	RenderOrder     string             `xml:"renderorder,attr"`
	Width           int                `xml:"width,attr"`
	Height          int                `xml:"height,attr"`
	TileWidth       int                `xml:"tilewidth,attr"`
	TileHeight      int                `xml:"tileheight,attr"`
	HexSideLength   int                `xml:"hexsidelength,attr"`
	StaggerAxis     string             `xml:"staggeraxis,attr"`
	StaggerIndex    string             `xml:"staggerindex,attr"`
	ParallaxOriginX float64            `xml:"parallaxoriginx,attr"`
	ParallaxOriginY float64            `xml:"parallaxoriginy,attr"`
	BackgroundColor string             `xml:"backgroundcolor,attr"`
	NextLayerID     uint32             `xml:"nextlayerid,attr"`
	NextObjectID    uint32             `xml:"nextobjectid,attr"`
	Infinite        bool               `xml:"infinite,attr"`
	EditorSettings  *xmlEditorSettings `xml:"editorsettings"`
	Properties      *xmlProperties     `xml:"properties"`
	Tilesets        []xmlTileset       `xml:"tileset"`
	Layers          []xmlLayerNode     `xml:",any"`
}

type xmlEditorSettings struct {
	ChunkSize *struct {
		Width  int `xml:"width,attr"`
		Height int `xml:"height,attr"`
	} `xml:"chunksize"`
}

type xmlTileset struct {
	FirstGID        uint32         `xml:"firstgid,attr"`
	Source          string         `xml:"source,attr"`
	Name            string         `xml:"name,attr"`
	Class           string         `xml:"class,attr"`
	TileWidth       int            `xml:"tilewidth,attr"`
	TileHeight      int            `xml:"tileheight,attr"`
	Spacing         int            `xml:"spacing,attr"`
	Margin          int            `xml:"margin,attr"`
	TileCount       int            `xml:"tilecount,attr"`
	Columns         int            `xml:"columns,attr"`
	ObjectAlignment string         `xml:"objectalignment,attr"`
	TileOffset      *xmlTileOffset `xml:"tileoffset"`
	Image           *xmlImage      `xml:"image"`
	Properties      *xmlProperties `xml:"properties"`
	Tiles           []xmlTile      `xml:"tile"`
}

// xmlTilesetDoc is the root of an external TSX document.
type xmlTilesetDoc struct {
	XMLName xml.Name `xml:"tileset"`
	xmlTileset
}

type xmlTileOffset struct {
	X int `xml:"x,attr"`
	Y int `xml:"y,attr"`
}

type xmlImage struct {
	Source string    `xml:"source,attr"`
	Format string    `xml:"format,attr"`
	Trans  string    `xml:"trans,attr"`
	Width  int       `xml:"width,attr"`
	Height int       `xml:"height,attr"`
	Data   *struct{} `xml:"data"`
}

type xmlTile struct {
	ID          uint32          `xml:"id,attr"`
	Type        string          `xml:"type,attr"`
	Class       string          `xml:"class,attr"`
	Probability *float64        `xml:"probability,attr"`
	Image       *xmlImage       `xml:"image"`
	Properties  *xmlProperties  `xml:"properties"`
	ObjectGroup *xmlObjectGroup `xml:"objectgroup"`
	Animation   *struct {
		Frames []xmlFrame `xml:"frame"`
	} `xml:"animation"`
}

type xmlFrame struct {
	TileID   uint32 `xml:"tileid,attr"`
	Duration int    `xml:"duration,attr"`
}

type xmlProperties struct {
	Properties []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	Name         string         `xml:"name,attr"`
	Type         string         `xml:"type,attr"`
	PropertyType string         `xml:"propertytype,attr"`
	Value        *string        `xml:"value,attr"`
	Text         string         `xml:",chardata"`
	Members      *xmlProperties `xml:"properties"`
}

type xmlLayerAttrs struct {
	ID         uint32         `xml:"id,attr"`
	Name       string         `xml:"name,attr"`
	Class      string         `xml:"class,attr"`
	Visible    *bool          `xml:"visible,attr"`
	Opacity    *float64       `xml:"opacity,attr"`
	OffsetX    float64        `xml:"offsetx,attr"`
	OffsetY    float64        `xml:"offsety,attr"`
	ParallaxX  *float64       `xml:"parallaxx,attr"`
	ParallaxY  *float64       `xml:"parallaxy,attr"`
	TintColor  string         `xml:"tintcolor,attr"`
	Properties *xmlProperties `xml:"properties"`
}

// xmlLayerNode holds exactly one layer element of a map or group, or none
// when the element is not a layer (it is skipped).
type xmlLayerNode struct {
	Tile   *xmlTileLayer
	Object *xmlObjectGroup
	Image  *xmlImageLayer
	Group  *xmlGroup
}

func (n *xmlLayerNode) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var target any
	switch start.Name.Local {
	case "layer":
		n.Tile = new(xmlTileLayer)
		target = n.Tile
	case "objectgroup":
		n.Object = new(xmlObjectGroup)
		target = n.Object
	case "imagelayer":
		n.Image = new(xmlImageLayer)
		target = n.Image
	case "group":
		n.Group = new(xmlGroup)
		target = n.Group
	default:
		return d.Skip()
	}
	if err := d.DecodeElement(target, &start); err != nil {
		return fmt.Errorf("<%s>: %w", start.Name.Local, err)
	}
	return nil
}

type xmlTileLayer struct {
	xmlLayerAttrs
	Width  int      `xml:"width,attr"`
	Height int      `xml:"height,attr"`
	Data   *xmlData `xml:"data"`
}

type xmlData struct {
	Encoding    string        `xml:"encoding,attr"`
	Compression string        `xml:"compression,attr"`
	Text        string        `xml:",chardata"`
	Tiles       []xmlDataTile `xml:"tile"`
	Chunks      []xmlChunk    `xml:"chunk"`
}

type xmlChunk struct {
	X      int           `xml:"x,attr"`
	Y      int           `xml:"y,attr"`
	Width  int           `xml:"width,attr"`
	Height int           `xml:"height,attr"`
	Text   string        `xml:",chardata"`
	Tiles  []xmlDataTile `xml:"tile"`
}

type xmlDataTile struct {
	GID uint32 `xml:"gid,attr"`
}

type xmlObjectGroup struct {
	xmlLayerAttrs
	Color     string      `xml:"color,attr"`
	DrawOrder string      `xml:"draworder,attr"`
	Objects   []xmlObject `xml:"object"`
}

type xmlImageLayer struct {
	xmlLayerAttrs
	RepeatX bool      `xml:"repeatx,attr"`
	RepeatY bool      `xml:"repeaty,attr"`
	Image   *xmlImage `xml:"image"`
}

type xmlGroup struct {
	xmlLayerAttrs
	Layers []xmlLayerNode `xml:",any"`
}

type xmlObject struct {
	ID         uint32         `xml:"id,attr"`
	Name       *string        `xml:"name,attr"`
	Type       *string        `xml:"type,attr"`
	Class      *string        `xml:"class,attr"`
	X          *float64       `xml:"x,attr"`
	Y          *float64       `xml:"y,attr"`
	Width      *float64       `xml:"width,attr"`
	Height     *float64       `xml:"height,attr"`
	Rotation   *float64       `xml:"rotation,attr"`
	GID        *uint32        `xml:"gid,attr"`
	Visible    *bool          `xml:"visible,attr"`
	Template   string         `xml:"template,attr"`
	Properties *xmlProperties `xml:"properties"`
	Ellipse    *struct{}      `xml:"ellipse"`
	Point      *struct{}      `xml:"point"`
	Polygon    *xmlPoints     `xml:"polygon"`
	Polyline   *xmlPoints     `xml:"polyline"`
	Text       *xmlText       `xml:"text"`
}

type xmlPoints struct {
	Points string `xml:"points,attr"`
}

type xmlText struct {
	FontFamily *string `xml:"fontfamily,attr"`
	PixelSize  *int    `xml:"pixelsize,attr"`
	Wrap       bool    `xml:"wrap,attr"`
	Color      string  `xml:"color,attr"`
	Bold       bool    `xml:"bold,attr"`
	Italic     bool    `xml:"italic,attr"`
	Underline  bool    `xml:"underline,attr"`
	Strikeout  bool    `xml:"strikeout,attr"`
	Kerning    *bool   `xml:"kerning,attr"`
	HAlign     string  `xml:"halign,attr"`
	VAlign     string  `xml:"valign,attr"`
	Value      string  `xml:",chardata"`
}

// xmlTemplateDoc is the root of an external TX document.
type xmlTemplateDoc struct {
	XMLName xml.Name    `xml:"template"`
	Tileset *xmlTileset `xml:"tileset"`
	Object  *xmlObject  `xml:"object"`
}

func (o *xmlObject) hasShape() bool {
	return o.Ellipse != nil || o.Point != nil || o.Polygon != nil || o.Polyline != nil || o.Text != nil
}

// mergeObject overlays the attributes set on an object instance onto the
// object of its template.
func mergeObject(base, local *xmlObject) *xmlObject {
	merged := *base
	merged.ID = local.ID
	merged.Template = local.Template
	override(&merged.Name, local.Name)
	override(&merged.Type, local.Type)
	override(&merged.Class, local.Class)
	override(&merged.X, local.X)
	override(&merged.Y, local.Y)
	override(&merged.Width, local.Width)
	override(&merged.Height, local.Height)
	override(&merged.Rotation, local.Rotation)
	override(&merged.GID, local.GID)
	override(&merged.Visible, local.Visible)

	if local.hasShape() {
		merged.Ellipse = local.Ellipse
		merged.Point = local.Point
		merged.Polygon = local.Polygon
		merged.Polyline = local.Polyline
		merged.Text = local.Text
	}

	merged.Properties = mergeProperties(base.Properties, local.Properties)
	return &merged
}

func override[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func mergeProperties(base, local *xmlProperties) *xmlProperties {
	if base == nil {
		return local
	}
	if local == nil {
		return base
	}
	merged := &xmlProperties{}
	seen := make(map[string]bool, len(local.Properties))
	for _, p := range local.Properties {
		seen[p.Name] = true
	}
	for _, p := range base.Properties {
		if !seen[p.Name] {
			merged.Properties = append(merged.Properties, p)
		}
	}
	merged.Properties = append(merged.Properties, local.Properties...)
	return merged
}
