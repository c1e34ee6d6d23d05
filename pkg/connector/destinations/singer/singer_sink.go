// Package singer implements the sink that writes SCHEMA, RECORD and STATE
// messages as line-delimited JSON, to stdout or to an optionally compressed
// file.
package singer

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/compression"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/core"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/logger"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/metrics"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
	"go.uber.org/zap"
)

const timeExtractedFormat = "2006-01-02T15:04:05.000000Z"

type schemaMessage struct {
	Type               string                 `json:"type"`
	Stream             string                 `json:"stream"`
	Schema             map[string]interface{} `json:"schema"`
	KeyProperties      []string               `json:"key_properties"`
	BookmarkProperties []string               `json:"bookmark_properties,omitempty"`
}

type recordMessage struct {
	Type          string        `json:"type"`
	Stream        string        `json:"stream"`
	Record        models.Record `json:"record"`
	TimeExtracted string        `json:"time_extracted,omitempty"`
}

type stateMessage struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Sink writes tap messages, one JSON document per line.
type Sink struct {
	mu      sync.Mutex
	logger  *zap.Logger
	file    *os.File
	codec   io.WriteCloser
	writer  *bufio.Writer
	encoder *jsonpool.LineEncoder
	path    string
	records int64
	closed  bool
}

// New creates a sink writing to w. Close flushes but does not close w.
func New(w io.Writer) *Sink {
	s := &Sink{
		logger: logger.Get().With(zap.String("component", "singer_sink")),
		writer: bufio.NewWriterSize(w, 64*1024),
	}
	s.encoder = jsonpool.NewLineEncoder(s.writer)
	return s
}

// NewFromConfig creates a sink for cfg.Output: stdout when no path is set,
// otherwise a file with the compression extension appended.
func NewFromConfig(cfg *config.Config) (core.Sink, error) {
	if cfg.Output.Path == "" || cfg.Output.Path == "-" {
		return New(os.Stdout), nil
	}

	algo, err := compression.ParseAlgorithm(cfg.Output.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
	}
	level, err := compression.ParseLevel(cfg.Output.CompressionLevel)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression level")
	}

	path := cfg.Output.Path
	if ext := algo.Extension(); ext != "" && !strings.HasSuffix(path, ext) {
		path += ext
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("path", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}

	codec, err := compression.NewWriter(file, algo, level)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}

	s := New(codec)
	s.file = file
	s.codec = codec
	s.path = path
	s.logger.Info("writing tap output to file",
		zap.String("path", path),
		zap.String("compression", string(algo)))
	return s, nil
}

// WriteSchema writes a SCHEMA message.
func (s *Sink) WriteSchema(ctx context.Context, schema models.Schema) error {
	keys := schema.KeyProperties
	if keys == nil {
		keys = []string{}
	}
	return s.write("SCHEMA", schema.Stream, &schemaMessage{
		Type:               "SCHEMA",
		Stream:             schema.Stream,
		Schema:             schema.Properties,
		KeyProperties:      keys,
		BookmarkProperties: schema.BookmarkProperties,
	})
}

// WriteRecord writes a RECORD message.
func (s *Sink) WriteRecord(ctx context.Context, msg models.RecordMessage) error {
	m := &recordMessage{
		Type:   "RECORD",
		Stream: msg.Stream,
		Record: msg.Record,
	}
	if !msg.TimeExtracted.IsZero() {
		m.TimeExtracted = msg.TimeExtracted.UTC().Format(timeExtractedFormat)
	}
	if err := s.write("RECORD", msg.Stream, m); err != nil {
		return err
	}
	s.mu.Lock()
	s.records++
	s.mu.Unlock()
	metrics.RecordsEmitted.WithLabelValues(msg.Stream).Inc()
	return nil
}

// WriteState writes a STATE message and flushes buffered output so the
// checkpoint never precedes the records it covers.
func (s *Sink) WriteState(ctx context.Context, value interface{}) error {
	if err := s.write("STATE", "", &stateMessage{Type: "STATE", Value: value}); err != nil {
		return err
	}
	return s.flush()
}

func (s *Sink) write(kind, stream string, msg interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	if err := s.encoder.Encode(msg); err != nil {
		s.logger.Error("failed to write message",
			zap.String("type", kind),
			zap.String("stream", stream),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write "+kind+" message").
			WithDetail("stream", stream)
	}
	return nil
}

func (s *Sink) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	// Compressors hold their own block; push it to the file so a STATE
	// message is readable once WriteState returns.
	if f, ok := s.codec.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush compressed output")
		}
	}
	return nil
}

// RecordsWritten returns the number of RECORD messages written.
func (s *Sink) RecordsWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// Close flushes output and closes the compressor and file, if any.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	if s.codec != nil {
		if err := s.codec.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed output")
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output file")
		}
		s.logger.Info("output file closed",
			zap.String("path", s.path),
			zap.Int64("records", s.records))
	}
	return nil
}
