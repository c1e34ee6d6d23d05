package linkedinads

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/core"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/metrics"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/state"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Transformer normalizes the collection under dataKey of a decoded page.
type Transformer interface {
	Transform(body map[string]interface{}, dataKey, stream string) []models.Record
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(body map[string]interface{}, dataKey, stream string) []models.Record

// Transform calls f.
func (f TransformFunc) Transform(body map[string]interface{}, dataKey, stream string) []models.Record {
	return f(body, dataKey, stream)
}

// SyncerConfig holds everything a Syncer needs. Client, Sink, State and
// Store are required.
type SyncerConfig struct {
	Client      core.APIClient
	Sink        core.Sink
	State       *state.State
	Store       state.Store
	Catalog     *Catalog
	Transformer Transformer
	Logger      *zap.Logger
	Tracer      trace.Tracer
	Now         func() time.Time

	StartDate      string
	PageSize       int
	DateWindowSize int
	Accounts       []string
}

// Syncer extracts the selected streams. It runs one request at a time;
// child streams are synced inside their parent's page loop.
type Syncer struct {
	client      core.APIClient
	sink        core.Sink
	state       *state.State
	store       state.Store
	catalog     *Catalog
	transformer Transformer
	resolvers   *Resolvers
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time

	startDate  string
	pageSize   int
	windowSize int
	accounts   []string

	schemas map[string]bool
}

// scope is the per-invocation context of a stream sync.
type scope struct {
	// parentID is the parent record's id for child streams.
	parentID string
	// accounts are the ids used by account-scoped streams.
	accounts []string
	// overlay is applied over the descriptor params for this invocation.
	overlay Params
}

type syncResult struct {
	records  int
	bookmark string
}

// target is one request chain, with the account it belongs to if any.
type target struct {
	account string
	url     string
}

// NewSyncer validates cfg and creates a Syncer.
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.Client == nil || cfg.Sink == nil || cfg.State == nil || cfg.Store == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "syncer requires a client, sink, state and store")
	}
	start, err := state.ParseTime(cfg.StartDate)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date")
	}
	if cfg.DateWindowSize <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("date_window_size must be positive, got %d", cfg.DateWindowSize))
	}
	if cfg.Catalog == nil {
		cfg.Catalog = &Catalog{}
	}
	if cfg.Transformer == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "syncer requires a transformer")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger.With(zap.String("component", "syncer"))

	return &Syncer{
		client:      cfg.Client,
		sink:        cfg.Sink,
		state:       cfg.State,
		store:       cfg.Store,
		catalog:     cfg.Catalog,
		transformer: cfg.Transformer,
		resolvers:   NewResolvers(cfg.Client, logger, cfg.Tracer),
		logger:      logger,
		tracer:      cfg.Tracer,
		now:         cfg.Now,
		startDate:   state.FormatTime(start),
		pageSize:    cfg.PageSize,
		windowSize:  cfg.DateWindowSize,
		accounts:    cfg.Accounts,
		schemas:     make(map[string]bool),
	}, nil
}

// Run syncs every top-level stream that is selected or has a selected
// descendant, in registry order.
func (s *Syncer) Run(ctx context.Context) error {
	for _, d := range descriptors {
		if d.Parent != "" || !s.catalog.Needed(d) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.catalog.IsSelected(d.Name) {
			if err := s.writeSchema(ctx, d); err != nil {
				return err
			}
		}

		started := time.Now()
		res, err := s.syncStream(ctx, d, scope{accounts: s.accounts})
		if err != nil {
			return err
		}
		s.logger.Info("stream synced",
			zap.String("stream", d.Name),
			zap.Int("records", res.records),
			zap.String("bookmark", res.bookmark),
			zap.Duration("duration", time.Since(started)))
	}
	return nil
}

// syncStream syncs a structural stream. A descriptor's tolerated error is
// logged and reported as an empty sync with the bookmark unchanged.
func (s *Syncer) syncStream(ctx context.Context, d *Descriptor, sc scope) (syncResult, error) {
	ctx, span := s.tracer.Start(ctx, "sync.stream", trace.WithAttributes(
		attribute.String("stream", d.Name),
		attribute.String("parent_id", sc.parentID),
	))
	defer span.End()

	res, err := s.syncEndpoint(ctx, d, sc)
	if err != nil && d.ToleratedError != "" && errors.Contains(err, d.ToleratedError) {
		s.logger.Warn("access denied, skipping stream; re-authenticate with the required permissions",
			zap.String("stream", d.Name),
			zap.String("parent_id", sc.parentID),
			zap.Error(err))
		return syncResult{bookmark: s.bookmark(d)}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		return res, err
	}
	span.SetAttributes(attribute.Int("records", res.records))
	return res, nil
}

func (s *Syncer) syncEndpoint(ctx context.Context, d *Descriptor, sc scope) (syncResult, error) {
	last := s.bookmark(d)
	result := syncResult{bookmark: last}
	selected := s.catalog.IsSelected(d.Name)
	log := s.logger.With(zap.String("stream", d.Name))
	log.Debug("starting stream", zap.String("bookmark", last), zap.String("parent_id", sc.parentID))

	var children []*Descriptor
	childMax := make(map[string]string)
	for _, name := range d.Children {
		child, ok := Lookup(name)
		if !ok || !s.catalog.Needed(child) {
			continue
		}
		if s.catalog.IsSelected(child.Name) {
			if err := s.writeSchema(ctx, child); err != nil {
				return result, err
			}
		}
		children = append(children, child)
		childMax[child.Name] = s.bookmark(child)
	}

	targets, err := s.targets(d, sc)
	if err != nil {
		return result, err
	}

	for _, t := range targets {
		url, page := t.url, 1
		for {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			body, err := s.client.Get(ctx, url, d.Name, d.Headers)
			if err != nil {
				return result, err
			}
			extracted := s.now()

			records := s.transformer.Transform(body, d.DataKey, d.Name)
			if len(records) == 0 {
				log.Debug("no records on page", zap.Int("page", page))
				break
			}

			if selected {
				maxValue, n, err := s.emitRecords(ctx, d, batch{
					records:   records,
					extracted: extracted,
					last:      last,
					max:       result.bookmark,
					parentID:  sc.parentID,
				})
				if err != nil {
					return result, err
				}
				result.bookmark = maxValue
				result.records += n
				if d.Parent == "" {
					if err := s.saveBookmark(ctx, d.Name, result.bookmark); err != nil {
						return result, err
					}
				}
			}

			for _, child := range children {
				if err := s.syncChild(ctx, d, child, t.account, records, childMax); err != nil {
					return result, err
				}
			}

			log.Debug("synced page",
				zap.Int("page", page),
				zap.Int("records", len(records)),
				zap.Int("total", result.records))

			next, ok := NextURL(d.Pagination, url, body)
			if !ok {
				break
			}
			url = next
			page++
		}
	}

	for _, child := range children {
		if err := s.saveBookmark(ctx, child.Name, childMax[child.Name]); err != nil {
			return result, err
		}
	}
	return result, nil
}

// syncChild syncs child once per parent record and folds each run's
// bookmark into childMax.
func (s *Syncer) syncChild(ctx context.Context, parent, child *Descriptor, account string, records []models.Record, childMax map[string]string) error {
	for _, rec := range records {
		parentID := rec.GetString(child.ForeignKey)
		if parentID == "" {
			s.logger.Warn("parent record without foreign key",
				zap.String("stream", child.Name),
				zap.String("parent", parent.Name),
				zap.String("foreign_key", child.ForeignKey))
			continue
		}

		sc := scope{parentID: parentID, overlay: child.parentParams(parentID)}
		if account != "" {
			sc.accounts = []string{account}
		}

		var (
			res syncResult
			err error
		)
		if child.IsAnalytics() {
			res, err = s.syncAnalytics(ctx, child, sc)
		} else {
			res, err = s.syncStream(ctx, child, sc)
		}
		if err != nil {
			return err
		}

		later, err := laterBookmark(childMax[child.Name], res.bookmark)
		if err != nil {
			return err
		}
		childMax[child.Name] = later
		s.logger.Debug("synced child",
			zap.String("stream", child.Name),
			zap.String("parent_id", parentID),
			zap.Int("records", res.records))
	}
	return nil
}

// targets returns the request chains for one invocation of d.
func (s *Syncer) targets(d *Descriptor, sc scope) ([]target, error) {
	var params Params
	pageSize := s.pageSize
	if d.FixedPageSize > 0 {
		pageSize = d.FixedPageSize
	}
	if d.Pagination == PaginateToken {
		params = Params{{Key: "pageSize", Value: strconv.Itoa(pageSize)}}
	} else {
		params = Params{{Key: "start", Value: "0"}, {Key: "count", Value: strconv.Itoa(pageSize)}}
	}
	params = params.Merge(d.Params)

	switch d.Scope {
	case ScopeAccountPath:
		if len(sc.accounts) == 0 {
			return nil, errors.New(errors.ErrorTypeConfig, "accounts are required to sync "+d.Name)
		}
		qs := params.Merge(sc.overlay).Encode()
		out := make([]target, len(sc.accounts))
		for i, acct := range sc.accounts {
			out[i] = target{account: acct, url: restBase + "/adAccounts/" + acct + "/" + d.Path + "?" + qs}
		}
		return out, nil

	case ScopeAccountParam:
		if len(sc.accounts) == 0 {
			return nil, errors.New(errors.ErrorTypeConfig, "accounts are required to sync "+d.Name)
		}
		out := make([]target, len(sc.accounts))
		for i, acct := range sc.accounts {
			qs := params.With("accounts", accountURN+acct).Merge(sc.overlay).Encode()
			out[i] = target{account: acct, url: restBase + "/" + d.Path + "?" + qs}
		}
		return out, nil

	case ScopeSearchIDs:
		if len(sc.accounts) > 0 {
			urns := make([]string, len(sc.accounts))
			for i, acct := range sc.accounts {
				urns[i] = accountURN + acct
			}
			params = params.With("search", "(id:(values:List("+strings.Join(urns, ",")+")))")
		}
	}

	return []target{{url: restBase + "/" + d.Path + "?" + params.Merge(sc.overlay).Encode()}}, nil
}

func (s *Syncer) bookmark(d *Descriptor) string {
	return s.state.Bookmark(d.Name, s.startDate)
}

// saveBookmark records value for stream, emits a STATE message and
// persists the state.
func (s *Syncer) saveBookmark(ctx context.Context, stream, value string) error {
	if value == "" {
		return nil
	}
	s.state.SetBookmark(stream, value)
	if err := s.sink.WriteState(ctx, s.state.Snapshot()); err != nil {
		s.logger.Error("failed to write state", zap.String("stream", stream), zap.Error(err))
		return err
	}
	if err := s.store.Save(ctx, s.state); err != nil {
		return err
	}
	if t, err := state.ParseTime(value); err == nil {
		metrics.ObserveBookmark(stream, t)
	}
	return nil
}

func (s *Syncer) writeSchema(ctx context.Context, d *Descriptor) error {
	if s.schemas[d.Name] {
		return nil
	}
	if err := s.sink.WriteSchema(ctx, d.Schema()); err != nil {
		s.logger.Error("failed to write schema", zap.String("stream", d.Name), zap.Error(err))
		return err
	}
	s.schemas[d.Name] = true
	return nil
}

// laterBookmark returns whichever of a and b is later in time.
func laterBookmark(a, b string) (string, error) {
	if a == "" {
		return b, nil
	}
	if b == "" {
		return a, nil
	}
	at, err := state.ParseTime(a)
	if err != nil {
		return "", err
	}
	bt, err := state.ParseTime(b)
	if err != nil {
		return "", err
	}
	if bt.After(at) {
		return state.FormatTime(bt), nil
	}
	return a, nil
}
