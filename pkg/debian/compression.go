package debian

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type Compression string

const (
	CompressionNone Compression = ""
	CompressionBZIP Compression = "bz2"
	CompressionGZIP Compression = "gz"
	CompressionXZ   Compression = "xz"
	CompressionZSTD Compression = "zst"
)

func ParseCompression(s string) Compression {
	switch s {
	case "bz2", ".bz2":
		return CompressionBZIP
	case "gz", ".gz":
		return CompressionGZIP
	case "xz", ".xz":
		return CompressionXZ
	case "zst", ".zst":
		return CompressionZSTD
	default:
		return CompressionNone
	}
}

// CompressionFromName picks the compression by the suffix of a file name or URL.
func CompressionFromName(name string) Compression {
	return ParseCompression(path.Ext(name))
}

func (c Compression) String() string {
	return string(c)
}

func (c Compression) Extension() string {
	if c == CompressionNone {
		return ""
	}
	return "." + string(c)
}

func (c Compression) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGZIP:
		w = gzip.NewWriter(&buf)
	case CompressionXZ:
		xzw, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = xzw
	case CompressionZSTD:
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = zw
	case CompressionBZIP:
		return nil, fmt.Errorf("bzip compression not implemented")
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Reader wraps in with a decompressor. Closing the result does not close in.
func (c Compression) Reader(in io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(in), nil
	case CompressionGZIP:
		gz, err := gzip.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gz, nil
	case CompressionXZ:
		xzr, err := xz.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return io.NopCloser(xzr), nil
	case CompressionZSTD:
		zr, err := zstd.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	case CompressionBZIP:
		return io.NopCloser(bzip2.NewReader(in)), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}
