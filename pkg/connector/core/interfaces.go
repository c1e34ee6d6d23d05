// Package core defines the contracts between sources, sinks and the API
// transport.
package core

import (
	"context"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
	ConnectorTypeSink   ConnectorType = "sink"
)

// APIClient fetches one page of a REST endpoint. endpoint labels logs and
// metrics. Non-2xx responses return an error whose text carries the status
// code and response body.
type APIClient interface {
	Get(ctx context.Context, url, endpoint string, headers map[string]string) (map[string]interface{}, error)
}

// Source is the interface that source connectors implement
type Source interface {
	// Name returns the connector name
	Name() string
	// Discover returns the schema of every stream the source can extract
	Discover(ctx context.Context) ([]models.Schema, error)
	// Sync extracts all selected streams, writing messages to the sink
	Sync(ctx context.Context) error
	// Close releases resources
	Close(ctx context.Context) error
}

// Sink receives the messages produced by a sync: stream schemas, records
// and bookmark state checkpoints. Write errors are fatal to the sync.
type Sink interface {
	WriteSchema(ctx context.Context, schema models.Schema) error
	WriteRecord(ctx context.Context, msg models.RecordMessage) error
	WriteState(ctx context.Context, value interface{}) error
	Close(ctx context.Context) error
}
