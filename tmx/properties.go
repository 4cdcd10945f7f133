package tmx

import (
	"fmt"
	"image/color"
	"strconv"
)

type PropertyType uint8

const (
	PropertyString PropertyType = iota
	PropertyInt
	PropertyFloat
	PropertyBool
	PropertyColor
	PropertyFile
	PropertyObject
	PropertyClass
)

// Property is a typed custom property value. Only the field matching Type
// is meaningful.
type Property struct {
	Type PropertyType

	String  string       // string, file
	Int     int64        // int
	Float   float64      // float
	Bool    bool         // bool
	Color   *color.NRGBA // color; nil when the value is empty
	Object  uint32       // object id, 0 for none
	Class   string       // custom class name of a class property
	Members Properties   // members of a class property
}

// Properties maps property names to values.
type Properties map[string]Property

func (p Properties) lookup(name string, kind PropertyType) (Property, bool) {
	value, ok := p[name]
	if !ok || value.Type != kind {
		return Property{}, false
	}
	return value, true
}

func (p Properties) String(name string) (string, bool) {
	value, ok := p.lookup(name, PropertyString)
	return value.String, ok
}

func (p Properties) Int(name string) (int64, bool) {
	value, ok := p.lookup(name, PropertyInt)
	return value.Int, ok
}

func (p Properties) Float(name string) (float64, bool) {
	value, ok := p.lookup(name, PropertyFloat)
	return value.Float, ok
}

func (p Properties) Bool(name string) (bool, bool) {
	value, ok := p.lookup(name, PropertyBool)
	return value.Bool, ok
}

func (p Properties) Color(name string) (*color.NRGBA, bool) {
	value, ok := p.lookup(name, PropertyColor)
	return value.Color, ok
}

func (p Properties) File(name string) (string, bool) {
	value, ok := p.lookup(name, PropertyFile)
	return value.String, ok
}

func (p Properties) Object(name string) (uint32, bool) {
	value, ok := p.lookup(name, PropertyObject)
	return value.Object, ok
}

func (p Properties) Class(name string) (Properties, bool) {
	value, ok := p.lookup(name, PropertyClass)
	return value.Members, ok
}

func buildProperties(raw *xmlProperties) (Properties, error) {
	properties := make(Properties)
	if raw == nil {
		return properties, nil
	}
	for _, rp := range raw.Properties {
		value, err := buildProperty(&rp)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", rp.Name, err)
		}
		properties[rp.Name] = value
	}
	return properties, nil
}

func buildProperty(raw *xmlProperty) (Property, error) {
	text := raw.Text
	if raw.Value != nil {
		text = *raw.Value
	}

	var err error
	var p Property
	switch raw.Type {
	case "", "string":
		p = Property{Type: PropertyString, String: text}
	case "int":
		p.Type = PropertyInt
		p.Int, err = strconv.ParseInt(text, 10, 64)
	case "float":
		p.Type = PropertyFloat
		p.Float, err = strconv.ParseFloat(text, 64)
	case "bool":
		p.Type = PropertyBool
		p.Bool, err = strconv.ParseBool(text)
	case "color":
		p = Property{Type: PropertyColor}
		p.Color, err = parseColor(text)
		return p, err
	case "file":
		p = Property{Type: PropertyFile, String: text}
	case "object":
		p.Type = PropertyObject
		var id uint64
		id, err = strconv.ParseUint(text, 10, 32)
		p.Object = uint32(id)
	case "class":
		p = Property{Type: PropertyClass, Class: raw.PropertyType}
		p.Members, err = buildProperties(raw.Members)
		return p, err
	default:
		return Property{}, fmt.Errorf("%w: property type %q", ErrUnsupported, raw.Type)
	}
	if err != nil {
		return Property{}, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return p, nil
}
