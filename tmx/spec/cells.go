package spec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const cellSize = 4

// DecodeCells decodes the text content of a <data> or <chunk> element into
// exactly count cells. EncodingXML content is carried by child elements, so
// it is rejected here; use CheckCount on the parsed GIDs instead.
func DecodeCells(text string, encoding Encoding, compression Compression, count int) ([]GID, error) {
	var cells []GID
	var err error

	switch encoding {
	case EncodingCSV:
		if compression != CompressionNone {
			return nil, fmt.Errorf("%w: compression %v with csv encoding", ErrUnsupported, compression)
		}
		cells, err = DecodeCSV(text)
	case EncodingBase64:
		var data []byte
		data, err = DecodeBase64(text)
		if err != nil {
			return nil, err
		}
		data, err = Decompress(data, compression)
		if err != nil {
			return nil, err
		}
		if len(data) != count*cellSize {
			return nil, fmt.Errorf("%w: expected %d bytes of tile data, got %d", ErrFormat, count*cellSize, len(data))
		}
		cells, err = DecodeBinary(data)
	default:
		return nil, fmt.Errorf("%w: encoding %v has no text form", ErrUnsupported, encoding)
	}
	if err != nil {
		return nil, err
	}

	return cells, CheckCount(cells, count)
}

// CheckCount verifies that a decoded cell sequence covers the declared area.
func CheckCount(cells []GID, count int) error {
	if len(cells) != count {
		return fmt.Errorf("%w: expected %d cells, got %d", ErrFormat, count, len(cells))
	}
	return nil
}

// DecodeBinary splits raw layer bytes into 4-byte little-endian cells.
func DecodeBinary(data []byte) ([]GID, error) {
	if len(data)%cellSize != 0 {
		return nil, fmt.Errorf("%w: tile data length %d is not a multiple of %d", ErrFormat, len(data), cellSize)
	}
	cells := make([]GID, len(data)/cellSize)
	for i := range cells {
		cells[i] = GID(binary.LittleEndian.Uint32(data[i*cellSize:]))
	}
	return cells, nil
}

// DecodeCSV parses comma-separated decimal cells. Whitespace around values and
// a single trailing comma are accepted.
func DecodeCSV(text string) ([]GID, error) {
	fields := strings.Split(strings.TrimSpace(text), ",")
	if len(fields) > 0 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}

	cells := make([]GID, len(fields))
	for i, field := range fields {
		value, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: csv cell %d: %w", ErrFormat, i, err)
		}
		cells[i] = GID(value)
	}
	return cells, nil
}

func EncodeBinary(cells []GID) []byte {
	data := make([]byte, 0, len(cells)*cellSize)
	for _, cell := range cells {
		data = binary.LittleEndian.AppendUint32(data, uint32(cell))
	}
	return data
}

// EncodeCells is the inverse of DecodeCells.
func EncodeCells(cells []GID, encoding Encoding, compression Compression) (string, error) {
	switch encoding {
	case EncodingCSV:
		if compression != CompressionNone {
			return "", fmt.Errorf("%w: compression %v with csv encoding", ErrUnsupported, compression)
		}
		values := make([]string, len(cells))
		for i, cell := range cells {
			values[i] = strconv.FormatUint(uint64(cell), 10)
		}
		return strings.Join(values, ","), nil
	case EncodingBase64:
		data, err := Compress(EncodeBinary(cells), compression)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return "", fmt.Errorf("%w: encoding %v has no text form", ErrUnsupported, encoding)
}
