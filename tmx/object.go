package tmx

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/eak1mov/go-tmx/tmx/spec"
)

// Shape is the geometry of an Object: one of Rectangle, Ellipse, Point,
// Polygon, Polyline or Text. Rectangle and Ellipse extents are the object's
// Width and Height.
type Shape interface {
	isShape()
}

type Rectangle struct{}

type Ellipse struct{}

type Point struct{}

// Vec2 is a point relative to the object position.
type Vec2 struct {
	X, Y float64
}

type Polygon struct {
	Points []Vec2
}

type Polyline struct {
	Points []Vec2
}

type Text struct {
	Value      string
	FontFamily string
	PixelSize  int
	Wrap       bool
	Color      color.NRGBA
	Bold       bool
	Italic     bool
	Underline  bool
	Strikeout  bool
	Kerning    bool
	HAlign     string // left, center, right or justify
	VAlign     string // top, center or bottom
}

func (Rectangle) isShape() {}
func (Ellipse) isShape()   {}
func (Point) isShape()     {}
func (Polygon) isShape()   {}
func (Polyline) isShape()  {}
func (Text) isShape()      {}

// Object is an entry of an object layer or of a tile collision group.
// Tile objects have a non-zero GID and a Rectangle shape.
type Object struct {
	ID         uint32
	Name       string
	Class      string
	X, Y       float64
	Width      float64
	Height     float64
	Rotation   float64 // degrees, clockwise
	Visible    bool
	GID        spec.GID
	Shape      Shape
	Properties Properties

	// TemplatePath is the resolved path of the template the object
	// instantiates, empty if none. Template is nil when the template could
	// not be loaded and template fallback is enabled.
	TemplatePath string
	Template     *Template

	// gidTileset is the template tileset that GID refers to when the GID was
	// inherited from the template rather than set on the instance.
	gidTileset *MapTileset
}

func buildObject(raw *xmlObject) (*Object, error) {
	obj := &Object{
		ID:       raw.ID,
		Name:     deref(raw.Name),
		Class:    deref(raw.Class),
		X:        deref(raw.X),
		Y:        deref(raw.Y),
		Width:    deref(raw.Width),
		Height:   deref(raw.Height),
		Rotation: deref(raw.Rotation),
		Visible:  raw.Visible == nil || *raw.Visible,
		GID:      spec.GID(deref(raw.GID)),
	}
	if obj.Class == "" {
		obj.Class = deref(raw.Type)
	}

	var err error
	obj.Properties, err = buildProperties(raw.Properties)
	if err != nil {
		return nil, err
	}

	switch {
	case raw.Ellipse != nil:
		obj.Shape = Ellipse{}
	case raw.Point != nil:
		obj.Shape = Point{}
	case raw.Polygon != nil:
		points, err := parsePoints(raw.Polygon.Points)
		if err != nil {
			return nil, err
		}
		obj.Shape = Polygon{Points: points}
	case raw.Polyline != nil:
		points, err := parsePoints(raw.Polyline.Points)
		if err != nil {
			return nil, err
		}
		obj.Shape = Polyline{Points: points}
	case raw.Text != nil:
		text, err := buildText(raw.Text)
		if err != nil {
			return nil, err
		}
		obj.Shape = text
	default:
		obj.Shape = Rectangle{}
	}

	return obj, nil
}

func buildText(raw *xmlText) (Text, error) {
	text := Text{
		Value:      raw.Value,
		FontFamily: "sans-serif",
		PixelSize:  16,
		Wrap:       raw.Wrap,
		Color:      color.NRGBA{A: 0xff},
		Bold:       raw.Bold,
		Italic:     raw.Italic,
		Underline:  raw.Underline,
		Strikeout:  raw.Strikeout,
		Kerning:    raw.Kerning == nil || *raw.Kerning,
		HAlign:     raw.HAlign,
		VAlign:     raw.VAlign,
	}
	if raw.FontFamily != nil {
		text.FontFamily = *raw.FontFamily
	}
	if raw.PixelSize != nil {
		text.PixelSize = *raw.PixelSize
	}
	if text.HAlign == "" {
		text.HAlign = "left"
	}
	if text.VAlign == "" {
		text.VAlign = "top"
	}
	c, err := parseColor(raw.Color)
	if err != nil {
		return Text{}, err
	}
	if c != nil {
		text.Color = *c
	}
	return text, nil
}

// parsePoints parses a "x1,y1 x2,y2 ..." point list.
func parsePoints(value string) ([]Vec2, error) {
	fields := strings.Fields(value)
	points := make([]Vec2, 0, len(fields))
	for _, field := range fields {
		xs, ys, found := strings.Cut(field, ",")
		if !found {
			return nil, formatErrorf("point %q: expected x,y", field)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: point %q: %w", ErrFormat, field, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: point %q: %w", ErrFormat, field, err)
		}
		points = append(points, Vec2{X: x, Y: y})
	}
	return points, nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
