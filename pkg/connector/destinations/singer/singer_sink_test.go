package singer

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/compression"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkMessages(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	sink := New(&buf)

	require.NoError(t, sink.WriteSchema(ctx, models.Schema{
		Stream:             "campaigns",
		Properties:         map[string]interface{}{"type": "object"},
		KeyProperties:      []string{"id"},
		BookmarkProperties: []string{"last_modified_time"},
	}))
	require.NoError(t, sink.WriteRecord(ctx, models.RecordMessage{
		Stream:        "campaigns",
		Record:        models.Record{"id": 42, "name": "<Spring>"},
		TimeExtracted: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}))
	assert.Zero(t, buf.Len(), "records stay buffered until a state checkpoint")

	require.NoError(t, sink.WriteState(ctx, map[string]interface{}{
		"bookmarks": map[string]interface{}{"campaigns": "2024-01-02T00:00:00.000000Z"},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"type":"SCHEMA","stream":"campaigns","schema":{"type":"object"},"key_properties":["id"],"bookmark_properties":["last_modified_time"]}`, lines[0])
	assert.JSONEq(t, `{"type":"RECORD","stream":"campaigns","record":{"id":42,"name":"<Spring>"},"time_extracted":"2024-01-02T03:04:05.000000Z"}`, lines[1])
	assert.Contains(t, lines[1], "<Spring>", "HTML is not escaped")
	assert.JSONEq(t, `{"type":"STATE","value":{"bookmarks":{"campaigns":"2024-01-02T00:00:00.000000Z"}}}`, lines[2])

	assert.Equal(t, int64(1), sink.RecordsWritten())

	require.NoError(t, sink.Close(ctx))
	require.Error(t, sink.WriteState(ctx, nil))
}

func TestSinkEmptyKeyProperties(t *testing.T) {
	var buf bytes.Buffer
	sink := New(&buf)
	require.NoError(t, sink.WriteSchema(context.Background(), models.Schema{Stream: "s"}))
	require.NoError(t, sink.Close(context.Background()))
	assert.Contains(t, buf.String(), `"key_properties":[]`)
}

func TestNewFromConfigCompressedFile(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig()
	cfg.Output.Path = filepath.Join(t.TempDir(), "out", "tap.jsonl")
	cfg.Output.Compression = "gzip"

	sink, err := NewFromConfig(cfg)
	require.NoError(t, err)

	require.NoError(t, sink.WriteRecord(ctx, models.RecordMessage{Stream: "accounts", Record: models.Record{"id": 1}}))
	require.NoError(t, sink.WriteRecord(ctx, models.RecordMessage{Stream: "accounts", Record: models.Record{"id": 2}}))
	require.NoError(t, sink.Close(ctx))

	f, err := os.Open(cfg.Output.Path + ".gz")
	require.NoError(t, err)
	defer f.Close()

	r, err := compression.NewReader(f, compression.Gzip)
	require.NoError(t, err)
	defer r.Close()

	var got []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"type":"RECORD","stream":"accounts","record":{"id":2}}`, got[1])
}

func TestWriteStateFlushesCompressedOutput(t *testing.T) {
	for _, algo := range []string{"gzip", "s2"} {
		t.Run(algo, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.NewConfig()
			cfg.Output.Path = filepath.Join(t.TempDir(), "tap.jsonl")
			cfg.Output.Compression = algo

			sink, err := NewFromConfig(cfg)
			require.NoError(t, err)
			defer sink.Close(ctx)

			require.NoError(t, sink.WriteRecord(ctx, models.RecordMessage{Stream: "campaigns", Record: models.Record{"id": 7}}))
			require.NoError(t, sink.WriteState(ctx, map[string]interface{}{
				"bookmarks": map[string]interface{}{"campaigns": "2024-01-02T00:00:00.000000Z"},
			}))

			parsed, err := compression.ParseAlgorithm(algo)
			require.NoError(t, err)
			f, err := os.Open(cfg.Output.Path + parsed.Extension())
			require.NoError(t, err)
			defer f.Close()

			r, err := compression.NewReader(f, parsed)
			require.NoError(t, err)
			// The stream is not terminated yet, so only the data matters.
			data, _ := io.ReadAll(r)

			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			require.Len(t, lines, 2)
			assert.Contains(t, lines[0], `"type":"RECORD"`)
			assert.Contains(t, lines[1], `"type":"STATE"`)
			assert.Contains(t, lines[1], "2024-01-02T00:00:00.000000Z")
		})
	}
}

func TestNewFromConfigRejectsUnknownCompression(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Output.Path = filepath.Join(t.TempDir(), "tap.jsonl")
	cfg.Output.Compression = "rar"

	_, err := NewFromConfig(cfg)
	require.Error(t, err)
}
