package tmx

// Template is a reusable object definition loaded from a TX document.
// Objects instantiating it keep a pointer to the shared value.
type Template struct {
	Path    string
	Tileset *MapTileset // tileset the template object's GID refers to, if any
	Object  *Object

	raw *xmlObject
}
