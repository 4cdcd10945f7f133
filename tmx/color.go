package tmx

import (
	"encoding/hex"
	"image/color"
	"strings"
)

// parseColor parses "#RRGGBB" or "#AARRGGBB" (the leading '#' is optional).
// An empty value yields nil.
func parseColor(value string) (*color.NRGBA, error) {
	if value == "" {
		return nil, nil
	}
	digits, err := hex.DecodeString(strings.TrimPrefix(value, "#"))
	if err != nil {
		return nil, formatErrorf("color %q: %v", value, err)
	}
	switch len(digits) {
	case 3:
		return &color.NRGBA{R: digits[0], G: digits[1], B: digits[2], A: 0xff}, nil
	case 4:
		return &color.NRGBA{A: digits[0], R: digits[1], G: digits[2], B: digits[3]}, nil
	}
	return nil, formatErrorf("color %q: expected #RRGGBB or #AARRGGBB", value)
}
