// Package registry maps connector names to factories so the CLI can build a
// source and sink from configuration alone.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/core"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/logger"
	"go.uber.org/zap"
)

// SourceFactory creates a source that writes its messages to sink.
type SourceFactory func(ctx context.Context, cfg *config.Config, sink core.Sink) (core.Source, error)

// SinkFactory creates a sink from the output configuration.
type SinkFactory func(cfg *config.Config) (core.Sink, error)

// factories is a named set of factories of one kind.
type factories[F any] struct {
	kind   string
	mu     sync.RWMutex
	byName map[string]F
}

func newFactories[F any](kind string) *factories[F] {
	return &factories[F]{kind: kind, byName: make(map[string]F)}
}

func (f *factories[F]) add(name string, factory F) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byName[name]; ok {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s %s already registered", f.kind, name))
	}
	f.byName[name] = factory
	return nil
}

func (f *factories[F]) get(name string) (F, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	factory, ok := f.byName[name]
	if !ok {
		return factory, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s %s not found", f.kind, name))
	}
	return factory, nil
}

func (f *factories[F]) names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.byName))
	for name := range f.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Registry holds source and sink factories.
type Registry struct {
	sources *factories[SourceFactory]
	sinks   *factories[SinkFactory]
}

var global = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: newFactories[SourceFactory]("source connector"),
		sinks:   newFactories[SinkFactory]("sink"),
	}
}

// RegisterSource adds a source factory. Names are unique.
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	return r.sources.add(name, factory)
}

// RegisterSink adds a sink factory. Names are unique.
func (r *Registry) RegisterSink(name string, factory SinkFactory) error {
	return r.sinks.add(name, factory)
}

// CreateSource builds the named source writing to sink.
func (r *Registry) CreateSource(ctx context.Context, name string, cfg *config.Config, sink core.Sink) (core.Source, error) {
	factory, err := r.sources.get(name)
	if err != nil {
		return nil, err
	}
	src, err := factory(ctx, cfg, sink)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create source connector %s", name))
	}
	logger.FromContext(ctx, logger.Get()).Debug("source connector created", zap.String("name", name))
	return src, nil
}

// CreateSink builds the named sink.
func (r *Registry) CreateSink(name string, cfg *config.Config) (core.Sink, error) {
	factory, err := r.sinks.get(name)
	if err != nil {
		return nil, err
	}
	sink, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create sink %s", name))
	}
	logger.Get().Debug("sink created", zap.String("name", name))
	return sink, nil
}

// ListSources returns the registered source names, sorted.
func (r *Registry) ListSources() []string { return r.sources.names() }

// ListSinks returns the registered sink names, sorted.
func (r *Registry) ListSinks() []string { return r.sinks.names() }

// HasSource reports whether name is a registered source.
func (r *Registry) HasSource(name string) bool {
	_, err := r.sources.get(name)
	return err == nil
}

// RegisterSource registers a source in the global registry.
func RegisterSource(name string, factory SourceFactory) error {
	return global.RegisterSource(name, factory)
}

// RegisterSink registers a sink in the global registry.
func RegisterSink(name string, factory SinkFactory) error {
	return global.RegisterSink(name, factory)
}

// CreateSource builds a source from the global registry.
func CreateSource(ctx context.Context, name string, cfg *config.Config, sink core.Sink) (core.Source, error) {
	return global.CreateSource(ctx, name, cfg, sink)
}

// CreateSink builds a sink from the global registry.
func CreateSink(name string, cfg *config.Config) (core.Sink, error) {
	return global.CreateSink(name, cfg)
}

// ListSources returns the sources in the global registry.
func ListSources() []string { return global.ListSources() }

// ListSinks returns the sinks in the global registry.
func ListSinks() []string { return global.ListSinks() }

// GetRegistry returns the global registry.
func GetRegistry() *Registry { return global }
