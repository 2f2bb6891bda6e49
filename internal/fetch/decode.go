package fetch

import (
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Content encodings understood by Decompress.
const (
	EncodingIdentity = ""
	EncodingGzip     = "gzip"
	EncodingZstd     = "zstd"
	EncodingBrotli   = "br"
)

// acceptEncoding is sent on every request.
const acceptEncoding = "zstd, br, gzip"

// readCloser pairs a decoding reader with the close funcs it needs.
type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Decompress wraps r in a reader for encoding. Closing the result closes r.
func Decompress(r io.ReadCloser, encoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case EncodingIdentity, "identity":
		return r, nil

	case EncodingGzip, "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		return &readCloser{Reader: gz, closers: []func() error{gz.Close, r.Close}}, nil

	case EncodingZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(256<<20))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open zstd reader: %w", err)
		}
		return &readCloser{Reader: zr, closers: []func() error{func() error { zr.Close(); return nil }, r.Close}}, nil

	case EncodingBrotli:
		return &readCloser{Reader: brotli.NewReader(r), closers: []func() error{r.Close}}, nil

	default:
		r.Close()
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// EncodingForName infers a compression encoding from a file name suffix
// and returns it with the suffix removed.
func EncodingForName(name string) (encoding, base string) {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".gz":
		return EncodingGzip, strings.TrimSuffix(name, name[len(name)-len(ext):])
	case ".zst", ".zstd":
		return EncodingZstd, strings.TrimSuffix(name, name[len(name)-len(ext):])
	case ".br":
		return EncodingBrotli, strings.TrimSuffix(name, name[len(name)-len(ext):])
	}
	return EncodingIdentity, name
}
