// Package compress unwraps compressed backup artifacts while they are
// fetched. The tool never produces artifacts, so only the reader side exists.
package compress

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	TypeNone = "none"
	TypeGzip = "gzip"
	TypeZstd = "zstd"
)

// DetectKind infers the compression from an artifact name. The trailing
// extension wins: orders.bak.zst is zstd, orders.bak is uncompressed.
func DetectKind(name string) string {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return TypeGzip
	case strings.HasSuffix(name, ".zst"):
		return TypeZstd
	default:
		return TypeNone
	}
}

func WrapReader(kind string, r io.Reader) (io.ReadCloser, error) {
	switch kind {
	case "", TypeNone:
		return io.NopCloser(r), nil
	case TypeGzip:
		return gzip.NewReader(r)
	case TypeZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{Decoder: dec}, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", kind)
	}
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
