// Package spec implements the low-level TMX layer data codecs: tile data
// encodings, compressions and global tile IDs.
package spec

import "fmt"

type Encoding uint8

const (
	EncodingXML Encoding = iota // no encoding attribute, one <tile> element per cell
	EncodingCSV
	EncodingBase64
)

type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZlib
	CompressionZstd
)

func ParseEncoding(value string) (Encoding, error) {
	switch value {
	case "":
		return EncodingXML, nil
	case "csv":
		return EncodingCSV, nil
	case "base64":
		return EncodingBase64, nil
	}
	return 0, fmt.Errorf("%w: encoding %q", ErrUnsupported, value)
}

func ParseCompression(value string) (Compression, error) {
	switch value {
	case "":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zlib":
		return CompressionZlib, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return 0, fmt.Errorf("%w: compression %q", ErrUnsupported, value)
}

func (e Encoding) String() string {
	switch e {
	case EncodingXML:
		return "xml"
	case EncodingCSV:
		return "csv"
	case EncodingBase64:
		return "base64"
	}
	return fmt.Sprintf("Encoding(%d)", uint8(e))
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}
