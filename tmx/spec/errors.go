package spec

import "errors"

var (
	// ErrFormat reports malformed markup, length mismatches, overlapping chunks
	// or inconsistent tileset geometry.
	ErrFormat = errors.New("tmx: invalid format")

	// ErrDecode reports a base64 or decompression failure.
	ErrDecode = errors.New("tmx: decode failed")

	// ErrResolution reports an external reference that could not be fetched or parsed.
	ErrResolution = errors.New("tmx: resolution failed")

	// ErrUnsupported reports a construct that is recognized but not handled,
	// e.g. an unknown compression tag.
	ErrUnsupported = errors.New("tmx: unsupported feature")
)
