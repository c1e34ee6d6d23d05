// Package compression wraps output streams with a compression codec so the
// tap can write compressed message files.
//
// Snappy and S2 are the fastest, LZ4 close behind, Zstd gives the best
// ratio and Gzip is readable everywhere.
//
//	w, err := compression.NewWriter(file, compression.Zstd, compression.Default)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm names a codec.
type Algorithm string

const (
	None   Algorithm = "none"
	Gzip   Algorithm = "gzip"
	Snappy Algorithm = "snappy"
	LZ4    Algorithm = "lz4"
	Zstd   Algorithm = "zstd"
	S2     Algorithm = "s2"
)

// Level trades speed for ratio. Codecs without levels ignore it.
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

type codec struct {
	ext       string
	newWriter func(dst io.Writer, level Level) (io.WriteCloser, error)
	newReader func(src io.Reader) (io.ReadCloser, error)
}

var codecs = map[Algorithm]codec{
	None: {
		newWriter: func(dst io.Writer, _ Level) (io.WriteCloser, error) { return nopCloser{dst}, nil },
		newReader: func(src io.Reader) (io.ReadCloser, error) { return io.NopCloser(src), nil },
	},
	Gzip: {
		ext: ".gz",
		newWriter: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l := gzip.DefaultCompression
			switch level {
			case Fastest:
				l = gzip.BestSpeed
			case Best:
				l = gzip.BestCompression
			}
			return gzip.NewWriterLevel(dst, l)
		},
		newReader: func(src io.Reader) (io.ReadCloser, error) { return gzip.NewReader(src) },
	},
	Snappy: {
		ext:       ".sz",
		newWriter: func(dst io.Writer, _ Level) (io.WriteCloser, error) { return snappy.NewBufferedWriter(dst), nil },
		newReader: func(src io.Reader) (io.ReadCloser, error) { return io.NopCloser(snappy.NewReader(src)), nil },
	},
	LZ4: {
		ext: ".lz4",
		newWriter: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l := lz4.Level5
			switch level {
			case Fastest:
				l = lz4.Fast
			case Best:
				l = lz4.Level9
			}
			w := lz4.NewWriter(dst)
			if err := w.Apply(lz4.CompressionLevelOption(l)); err != nil {
				return nil, err
			}
			return w, nil
		},
		newReader: func(src io.Reader) (io.ReadCloser, error) { return io.NopCloser(lz4.NewReader(src)), nil },
	},
	Zstd: {
		ext: ".zst",
		newWriter: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l := zstd.SpeedDefault
			switch level {
			case Fastest:
				l = zstd.SpeedFastest
			case Better:
				l = zstd.SpeedBetterCompression
			case Best:
				l = zstd.SpeedBestCompression
			}
			return zstd.NewWriter(dst, zstd.WithEncoderLevel(l))
		},
		newReader: func(src io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(src)
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		},
	},
	S2: {
		ext: ".s2",
		newWriter: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			var opts []s2.WriterOption
			switch level {
			case Better:
				opts = append(opts, s2.WriterBetterCompression())
			case Best:
				opts = append(opts, s2.WriterBestCompression())
			}
			return s2.NewWriter(dst, opts...), nil
		},
		newReader: func(src io.Reader) (io.ReadCloser, error) { return io.NopCloser(s2.NewReader(src)), nil },
	},
}

// ParseAlgorithm validates a configured algorithm name. Empty means None.
func ParseAlgorithm(name string) (Algorithm, error) {
	algo := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if algo == "" {
		return None, nil
	}
	if _, ok := codecs[algo]; !ok {
		return "", fmt.Errorf("unsupported compression algorithm: %s", name)
	}
	return algo, nil
}

var levels = map[string]Level{
	"":        Default,
	"default": Default,
	"fastest": Fastest,
	"better":  Better,
	"best":    Best,
}

// ParseLevel validates a configured level name: fastest, default, better
// or best. Empty means Default.
func ParseLevel(name string) (Level, error) {
	l, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unsupported compression level: %s", name)
	}
	return l, nil
}

// Extension returns the conventional file suffix, including the dot.
func (a Algorithm) Extension() string {
	return codecs[a].ext
}

// NewWriter returns a writer that compresses into dst. Close flushes the
// codec but does not close dst.
func NewWriter(dst io.Writer, algo Algorithm, level Level) (io.WriteCloser, error) {
	if algo == "" {
		algo = None
	}
	c, ok := codecs[algo]
	if !ok {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
	return c.newWriter(dst, level)
}

// NewReader returns a reader that decompresses src.
func NewReader(src io.Reader, algo Algorithm) (io.ReadCloser, error) {
	if algo == "" {
		algo = None
	}
	c, ok := codecs[algo]
	if !ok {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
	return c.newReader(src)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
