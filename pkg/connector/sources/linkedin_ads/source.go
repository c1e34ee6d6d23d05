// Package linkedinads implements the LinkedIn Ads source: account
// structure streams (accounts, campaign groups, campaigns, creatives, video
// ads, account users) and ad analytics broken down by campaign, creative
// and member demographics.
//
// Structural streams are paginated per account and fan out to their child
// streams for every parent record. Analytics streams are fetched in date
// windows from the bookmark to today, with the selected metrics split into
// field-limited requests whose responses are merged back into one row per
// pivot value and day. Demographic pivots are resolved to display names.
//
// Bookmarks are checkpointed to the sink and the state store after every
// page of a top-level stream and once per parent sync for child streams.
package linkedinads

import (
	"context"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/clients"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/base"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/core"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/logger"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/state"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/transform"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Version is reported by the connector and the CLI.
const Version = "1.0.0"

// Deps are the collaborators of a Source. Only Sink is required; the rest
// are built from the configuration when nil.
type Deps struct {
	Sink        core.Sink
	Client      core.APIClient
	Store       state.Store
	Transformer Transformer
	Tracer      trace.Tracer
	Now         func() time.Time
}

// Source is the LinkedIn Ads source connector.
type Source struct {
	*base.BaseConnector

	cfg        *config.Config
	catalog    *Catalog
	sink       core.Sink
	client     core.APIClient
	httpClient *clients.HTTPClient
	store      state.Store
	deps       Deps
}

// NewSource validates cfg and wires the source's collaborators.
func NewSource(ctx context.Context, cfg *config.Config, deps Deps) (*Source, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	if deps.Sink == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "a sink is required")
	}

	s := &Source{
		BaseConnector: base.NewBaseConnector("linkedin_ads", core.ConnectorTypeSource, Version),
		cfg:           cfg,
		sink:          deps.Sink,
		deps:          deps,
	}
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize base connector")
	}

	catalog, err := NewCatalog(cfg.Streams)
	if err != nil {
		return nil, err
	}
	s.catalog = catalog

	client := deps.Client
	if client == nil {
		tokens, err := clients.NewTokenSource(ctx, cfg.Credentials, nil)
		if err != nil {
			return nil, err
		}
		httpClient := clients.NewHTTPClient(clients.HTTPConfigFromConfig(cfg), tokens, s.GetLogger())
		s.httpClient = httpClient
		client = httpClient
	}
	s.client = s.WrapClient(client)

	s.store = deps.Store
	if s.store == nil {
		if s.store, err = state.Open(ctx, cfg.State); err != nil {
			return nil, err
		}
	}

	s.GetLogger().Info("LinkedIn Ads source initialized",
		zap.Strings("streams", catalog.Selected()),
		zap.Strings("accounts", cfg.AccountIDs),
		zap.Int("page_size", cfg.PageSize),
		zap.Int("date_window_size", cfg.DateWindowSize))
	return s, nil
}

// Discover returns the schema of every stream.
func (s *Source) Discover(ctx context.Context) ([]models.Schema, error) {
	out := make([]models.Schema, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, d.Schema())
	}
	return out, nil
}

// Sync loads the saved state and extracts the selected streams.
func (s *Source) Sync(ctx context.Context) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	transformer := s.deps.Transformer
	if transformer == nil {
		transformer = TransformFunc(transform.Transform)
	}
	tracer := s.deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/ajitpratap0/linkedin-ads-tap/linkedin_ads")
	}
	log := logger.FromContext(ctx, s.GetLogger())

	syncer, err := NewSyncer(SyncerConfig{
		Client:         s.client,
		Sink:           s.sink,
		State:          st,
		Store:          s.store,
		Catalog:        s.catalog,
		Transformer:    transformer,
		Logger:         log,
		Tracer:         tracer,
		Now:            s.deps.Now,
		StartDate:      s.cfg.StartDate,
		PageSize:       s.cfg.PageSize,
		DateWindowSize: s.cfg.DateWindowSize,
		Accounts:       s.cfg.AccountIDs,
	})
	if err != nil {
		return err
	}

	started := time.Now()
	if err := syncer.Run(ctx); err != nil {
		log.Error("sync failed", zap.Error(err))
		return err
	}
	log.Info("sync completed", zap.Duration("duration", time.Since(started)))
	return nil
}

// Close releases the HTTP client's connections and any store resources.
func (s *Source) Close(ctx context.Context) error {
	if s.httpClient != nil {
		_ = s.httpClient.Close()
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.GetLogger().Warn("failed to close state store", zap.Error(err))
		}
	}
	return s.BaseConnector.Close(ctx)
}
