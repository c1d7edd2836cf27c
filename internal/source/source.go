// Package source opens the byte streams decoders read, undoing any
// compression on the way.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Codec string

const (
	Auto   Codec = "auto"
	None   Codec = "none"
	Gzip   Codec = "gzip"
	Zstd   Codec = "zstd"
	Snappy Codec = "snappy"
	LZ4    Codec = "lz4"
)

const (
	ExtGzip   = ".gz"
	ExtZstd   = ".zst"
	ExtSnappy = ".sz"
	ExtLZ4    = ".lz4"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

var ErrUnknownCodec = errors.New("unknown compression codec")

func ParseCodec(s string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return Auto, nil
	}
	if slices.Contains(Codecs(), c) {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
}

// Codecs lists every accepted compression setting.
func Codecs() []Codec {
	return []Codec{Auto, None, Gzip, Zstd, Snappy, LZ4}
}

// FromFileExtension picks the codec a file name implies; unknown extensions
// read uncompressed.
func FromFileExtension(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtGzip:
		return Gzip
	case ExtZstd:
		return Zstd
	case ExtSnappy:
		return Snappy
	case ExtLZ4:
		return LZ4
	default:
		return None
	}
}

// Open opens path (or stdin for "-") and wraps it in the decompressor for c.
// Auto selects the codec from the file extension.
func Open(path string, c Codec) (io.ReadCloser, error) {
	if c == Auto || c == "" {
		c = FromFileExtension(path)
	}
	var f io.ReadCloser
	if path == Stdin {
		f = io.NopCloser(os.Stdin)
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		f = file
	}
	r, err := NewReader(f, c)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s as %s: %w", path, c, err)
	}
	return &stack{Reader: r, closers: []io.Closer{r, f}}, nil
}

// NewReader wraps r in the decompressor for c. Closing the result does not
// close r.
func NewReader(r io.Reader, c Codec) (io.ReadCloser, error) {
	switch c {
	case None, Auto, "":
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case Zstd:
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, c)
	}
}

// NewWriter wraps w in the compressor for c. Close flushes the compressed
// stream but does not close w.
func NewWriter(w io.Writer, c Codec) (io.WriteCloser, error) {
	switch c {
	case None, Auto, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return zw, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, c)
	}
}

// stack closes its closers in order and reports the first failure.
type stack struct {
	io.Reader
	closers []io.Closer
}

func (s *stack) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
