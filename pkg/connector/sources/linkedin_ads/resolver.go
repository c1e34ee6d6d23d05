package linkedinads

import (
	"context"
	"sort"
	"strings"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/core"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Category names a family of LinkedIn identifiers with a lookup endpoint.
type Category string

const (
	CategoryFunctions     Category = "functions"
	CategoryTitles        Category = "titles"
	CategoryGeo           Category = "geo"
	CategoryIndustries    Category = "industries"
	CategoryOrganizations Category = "organizations"
	CategorySeniorities   Category = "seniorities"
)

// ResolveBatchSize is the most codes sent in one lookup request.
const ResolveBatchSize = 150

const enUSLocale = "(language:en,country:US)"

// lookupSpec describes one lookup endpoint.
type lookupSpec struct {
	endpoint string
	// idsInURL adds ids=List(...) for the batch.
	idsInURL bool
	locale   string
	// resultKey is "results" (object keyed by code) or "elements" (array
	// of objects carrying an id).
	resultKey string
	// namePaths are tried in order; the first non-empty string wins.
	namePaths [][]string
}

var lookupSpecs = map[Category]lookupSpec{
	CategoryFunctions: {
		endpoint:  apiHost + "/v2/functions",
		locale:    "en_US",
		resultKey: "elements",
		namePaths: [][]string{{"name", "localized", "en_US"}},
	},
	CategoryTitles: {
		endpoint:  apiHost + "/v2/titles",
		idsInURL:  true,
		locale:    "en_US",
		resultKey: "results",
		namePaths: [][]string{{"name", "localized", "en_US"}, {"name", "default"}},
	},
	CategoryGeo: {
		endpoint:  apiHost + "/v2/geo",
		idsInURL:  true,
		locale:    enUSLocale,
		resultKey: "results",
		namePaths: [][]string{{"defaultLocalizedName", "value"}},
	},
	CategoryIndustries: {
		endpoint:  apiHost + "/v2/industries",
		idsInURL:  true,
		locale:    enUSLocale,
		resultKey: "results",
		namePaths: [][]string{{"name", "localized", "en_US"}},
	},
	CategoryOrganizations: {
		endpoint:  restBase + "/organizationsLookup",
		idsInURL:  true,
		resultKey: "results",
		namePaths: [][]string{{"name", "localized", "en_US"}, {"localizedName"}},
	},
	CategorySeniorities: {
		endpoint:  apiHost + "/v2/seniorities",
		resultKey: "elements",
		namePaths: [][]string{{"name", "localized", "en_US"}},
	},
}

func (s lookupSpec) url(codes []string) string {
	var query []string
	if s.idsInURL {
		query = append(query, "ids=List("+strings.Join(codes, ",")+")")
	}
	if s.locale != "" {
		query = append(query, "locale="+s.locale)
	}
	if len(query) == 0 {
		return s.endpoint
	}
	return s.endpoint + "?" + strings.Join(query, "&")
}

// Resolver turns identifier codes of one category into display names.
// Names fetched successfully are cached for the life of the resolver;
// codes already cached are not requested again.
type Resolver struct {
	client   core.APIClient
	category Category
	spec     lookupSpec
	logger   *zap.Logger
	tracer   trace.Tracer
	cache    map[string]string
}

// NewResolver creates a resolver for category.
func NewResolver(client core.APIClient, category Category, logger *zap.Logger, tracer trace.Tracer) (*Resolver, error) {
	spec, ok := lookupSpecs[category]
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported resolver category: "+string(category))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Resolver{
		client:   client,
		category: category,
		spec:     spec,
		logger:   logger.With(zap.String("component", "resolver"), zap.String("category", string(category))),
		tracer:   tracer,
		cache:    make(map[string]string),
	}, nil
}

// Category returns the resolver's category.
func (r *Resolver) Category() Category {
	return r.category
}

// Resolve returns a name for the trailing code of every URN. Codes the API
// does not name, and every code of a failed batch, map to themselves.
// Uncached codes are deduplicated and sorted lexically before batching, so
// batch membership follows code order, not the order of urns.
func (r *Resolver) Resolve(ctx context.Context, urns []string) map[string]string {
	resolved := make(map[string]string, len(urns))

	seen := make(map[string]bool, len(urns))
	var pending []string
	for _, urn := range urns {
		code := urnCode(urn)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if name, ok := r.cache[code]; ok {
			resolved[code] = name
			metrics.ResolverLookups.WithLabelValues(string(r.category), "cached").Inc()
			continue
		}
		pending = append(pending, code)
	}
	sort.Strings(pending)

	for start := 0; start < len(pending); start += ResolveBatchSize {
		end := start + ResolveBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		r.resolveBatch(ctx, pending[start:end], resolved)
	}
	return resolved
}

func (r *Resolver) resolveBatch(ctx context.Context, batch []string, resolved map[string]string) {
	ctx, span := r.tracer.Start(ctx, "resolver.batch", trace.WithAttributes(
		attribute.String("category", string(r.category)),
		attribute.Int("codes", len(batch)),
	))
	defer span.End()

	body, err := r.client.Get(ctx, r.spec.url(batch), string(r.category), restliV2)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		if errors.IsType(err, errors.ErrorTypeRateLimit) || errors.Contains(err, "429") {
			r.logger.Warn("rate limited while resolving names, using codes as names",
				zap.Int("codes", len(batch)))
		} else {
			r.logger.Warn("failed to resolve names, using codes as names",
				zap.Int("codes", len(batch)),
				zap.Error(err))
		}
		for _, code := range batch {
			resolved[code] = code
		}
		metrics.ResolverLookups.WithLabelValues(string(r.category), "fallback").Add(float64(len(batch)))
		return
	}

	found := r.resultsByCode(body)
	for _, code := range batch {
		name := ""
		if result, ok := found[code]; ok {
			name = r.nameOf(result)
		}
		if name == "" {
			resolved[code] = code
			metrics.ResolverLookups.WithLabelValues(string(r.category), "fallback").Inc()
			continue
		}
		resolved[code] = name
		r.cache[code] = name
		metrics.ResolverLookups.WithLabelValues(string(r.category), "resolved").Inc()
	}
}

func (r *Resolver) resultsByCode(body map[string]interface{}) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	switch results := body[r.spec.resultKey].(type) {
	case map[string]interface{}:
		for code, v := range results {
			if obj, ok := v.(map[string]interface{}); ok {
				out[code] = obj
			}
		}
	case []interface{}:
		for _, v := range results {
			obj, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			if id := jsonpool.String(obj["id"]); id != "" {
				out[id] = obj
			}
		}
	}
	return out
}

func (r *Resolver) nameOf(result map[string]interface{}) string {
	for _, path := range r.spec.namePaths {
		var cur interface{} = result
		for _, key := range path {
			obj, ok := cur.(map[string]interface{})
			if !ok {
				cur = nil
				break
			}
			cur = obj[key]
		}
		if s, ok := cur.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Resolvers hands out one resolver per category for a sync run.
type Resolvers struct {
	client core.APIClient
	logger *zap.Logger
	tracer trace.Tracer
	byCat  map[Category]*Resolver
}

// NewResolvers creates an empty set.
func NewResolvers(client core.APIClient, logger *zap.Logger, tracer trace.Tracer) *Resolvers {
	return &Resolvers{
		client: client,
		logger: logger,
		tracer: tracer,
		byCat:  make(map[Category]*Resolver),
	}
}

// For returns the resolver for category, or nil when category is empty
// or unknown.
func (rs *Resolvers) For(category Category) NameResolver {
	if category == "" {
		return nil
	}
	if r, ok := rs.byCat[category]; ok {
		return r
	}
	r, err := NewResolver(rs.client, category, rs.logger, rs.tracer)
	if err != nil {
		return nil
	}
	rs.byCat[category] = r
	return r
}
