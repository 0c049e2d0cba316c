package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	Gzip = "gzip"
	Zstd = "zstd"
	LZ4  = "lz4"
)

// Extension is the file suffix for algo, including the dot.
func Extension(algo string) string {
	switch algo {
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	default:
		return ".gz"
	}
}

// FromExtension guesses the algorithm from a file name; "" means plain.
func FromExtension(name string) string {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return Gzip
	case strings.HasSuffix(name, ".zst"):
		return Zstd
	case strings.HasSuffix(name, ".lz4"):
		return LZ4
	default:
		return ""
	}
}

// NewWriter wraps dst. Closing the returned writer flushes the trailer but
// does not close dst.
func NewWriter(algo string, dst io.Writer) (io.WriteCloser, error) {
	switch algo {
	case Gzip, "":
		return gzip.NewWriter(dst), nil
	case Zstd:
		zw, err := zstd.NewWriter(dst)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, nil
	case LZ4:
		return lz4.NewWriter(dst), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", algo)
	}
}

// NewReader wraps src for decompression.
func NewReader(algo string, src io.Reader) (io.ReadCloser, error) {
	switch algo {
	case Gzip:
		gr, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gr, nil
	case Zstd:
		zr, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", algo)
	}
}
