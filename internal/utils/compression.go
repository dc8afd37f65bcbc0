package utils

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression identifies a stream compression by its magic bytes
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionXZ
	CompressionLZ4
	CompressionBzip2
)

// String returns the string representation of Compression
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionXZ:
		return "xz"
	case CompressionLZ4:
		return "lz4"
	case CompressionBzip2:
		return "bzip2"
	default:
		return "none"
	}
}

var (
	gzipMagic  = []byte{0x1F, 0x8B}
	zstdMagic  = []byte{0x28, 0xB5, 0x2F, 0xFD}
	xzMagic    = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	lz4Magic   = []byte{0x04, 0x22, 0x4D, 0x18}
	bzip2Magic = []byte("BZh")
)

// SniffCompression inspects the leading bytes of a stream
func SniffCompression(header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(header, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(header, xzMagic):
		return CompressionXZ
	case bytes.HasPrefix(header, lz4Magic):
		return CompressionLZ4
	case bytes.HasPrefix(header, bzip2Magic):
		return CompressionBzip2
	default:
		return CompressionNone
	}
}

// Decompress returns a reader yielding the decompressed content of r.
// The compression is recognized from the content, not a file name; an
// uncompressed stream is passed through unchanged.
func Decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(r)
	header, _ := br.Peek(len(xzMagic))

	c := SniffCompression(header)
	switch c {
	case CompressionGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, err
		}
		return gr, c, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, c, err
		}
		return zr.IOReadCloser(), c, nil
	case CompressionXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, c, err
		}
		return io.NopCloser(xr), c, nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(br)), c, nil
	case CompressionBzip2:
		return io.NopCloser(bzip2.NewReader(br)), c, nil
	default:
		return io.NopCloser(br), c, nil
	}
}
