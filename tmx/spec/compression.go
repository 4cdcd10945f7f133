package spec

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

func Compress(data []byte, compression Compression) ([]byte, error) {
	if compression == CompressionNone {
		return data, nil
	}

	if compression == CompressionZstd {
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to compress: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, nil), nil
	}

	var buffer bytes.Buffer
	var writer io.WriteCloser
	switch compression {
	case CompressionGzip:
		writer, _ = gzip.NewWriterLevel(&buffer, gzip.BestCompression)
	case CompressionZlib:
		writer, _ = zlib.NewWriterLevel(&buffer, zlib.BestCompression)
	default:
		return nil, fmt.Errorf("%w: compression %v", ErrUnsupported, compression)
	}

	_, err := writer.Write(data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}

	return buffer.Bytes(), nil
}

func Decompress(data []byte, compression Compression) ([]byte, error) {
	var reader io.ReadCloser
	var err error

	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		reader, err = gzip.NewReader(bytes.NewReader(data))
	case CompressionZlib:
		reader, err = zlib.NewReader(bytes.NewReader(data))
	case CompressionZstd:
		return decompressZstd(data)
	default:
		return nil, fmt.Errorf("%w: compression %v", ErrUnsupported, compression)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrDecode, compression, err)
	}
	defer reader.Close()

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrDecode, compression, err)
	}

	return result, nil
}

func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrDecode, err)
	}
	defer decoder.Close()

	result, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrDecode, err)
	}
	return result, nil
}

// DecodeBase64 decodes standard base64 text, ignoring surrounding whitespace.
func DecodeBase64(text string) ([]byte, error) {
	result, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrDecode, err)
	}
	return result, nil
}
