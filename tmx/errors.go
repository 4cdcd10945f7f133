package tmx

import (
	"fmt"

	"github.com/eak1mov/go-tmx/tmx/spec"
)

var (
	ErrFormat      = spec.ErrFormat
	ErrDecode      = spec.ErrDecode
	ErrResolution  = spec.ErrResolution
	ErrUnsupported = spec.ErrUnsupported
)

// Error locates a load failure in a source document. Err wraps one of the
// Err* kinds above and, where there is one, the underlying cause.
type Error struct {
	Path    string // document the failing element was read from
	Element string // e.g. `layer "ground"`, `tileset firstgid=21`, `object 7`
	Err     error
}

func (e *Error) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Element, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func locate(path, element string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Path: path, Element: element, Err: err}
}

func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}
