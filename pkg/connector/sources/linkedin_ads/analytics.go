package linkedinads

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/metrics"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/state"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/transform"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// MaxChunkLength caps the selected fields per analytics request. The
	// API accepts 20 and every chunk also carries dateRange and pivotValues.
	MaxChunkLength = 18

	// analyticsLookback is re-fetched behind the bookmark because
	// attribution data arrives late.
	analyticsLookback = 7 * 24 * time.Hour

	day = 24 * time.Hour
)

// requiredAnalyticsFields are added to every chunk so rows can be keyed.
var requiredAnalyticsFields = []string{"dateRange", "pivotValues"}

// unsupportedAnalyticsFields are tap-side fields the API rejects.
var unsupportedAnalyticsFields = map[string]bool{
	"campaign":       true,
	"campaignId":     true,
	"startAt":        true,
	"endAt":          true,
	"creative":       true,
	"creativeId":     true,
	"pivot":          true,
	"pivotValue":     true,
	"pivotValueName": true,
}

// FieldChunks converts the selected fields to API names, drops fields the
// endpoint does not accept and splits the rest into chunks of at most
// MaxChunkLength. The first chunk is always dateRange and pivotValues
// alone, which returns days whose metrics are all zero. Every chunk ends
// with dateRange and pivotValues if it lacks them.
func FieldChunks(selected []string) [][]string {
	var fields []string
	seen := make(map[string]bool)
	for _, f := range selected {
		camel := transform.SnakeToCamel(f)
		if camel == "" || unsupportedAnalyticsFields[camel] || seen[camel] {
			continue
		}
		seen[camel] = true
		fields = append(fields, camel)
	}

	chunks := [][]string{append([]string(nil), requiredAnalyticsFields...)}
	for start := 0; start < len(fields); start += MaxChunkLength {
		end := start + MaxChunkLength
		if end > len(fields) {
			end = len(fields)
		}
		chunks = append(chunks, append([]string(nil), fields[start:end]...))
	}

	for i, chunk := range chunks {
		for _, required := range requiredAnalyticsFields {
			if !contains(chunk, required) {
				chunk = append(chunk, required)
			}
		}
		chunks[i] = chunk
	}
	return chunks
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DateWindow is an inclusive analytics date range.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// FirstWindow returns the window that starts a sync from bookmark: seven
// days before the bookmark date, size days long, clamped to today.
func FirstWindow(bookmark time.Time, size int, today time.Time) DateWindow {
	start := truncateDay(bookmark.Add(-analyticsLookback))
	today = truncateDay(today)
	end := start.Add(time.Duration(size) * day)
	if end.After(today) {
		end = today
	}
	if start.After(today) {
		start = today
	}
	if start.After(end) {
		start = end
	}
	return DateWindow{Start: start, End: end}
}

// Next returns the following window: it starts where w ends and runs size
// days, clamped to today. A positive forced size replaces size.
func (w DateWindow) Next(today time.Time, size, forced int) DateWindow {
	if forced > 0 {
		size = forced
	}
	end := w.End.Add(time.Duration(size) * day)
	if today = truncateDay(today); end.After(today) {
		end = today
	}
	return DateWindow{Start: w.End, End: end}
}

// Empty reports whether the window has zero width.
func (w DateWindow) Empty() bool {
	return w.Start.Equal(w.End)
}

// Params returns the dateRange query parameters for the window.
func (w DateWindow) Params() Params {
	return Params{
		{Key: "dateRange.start.day", Value: strconv.Itoa(w.Start.Day())},
		{Key: "dateRange.start.month", Value: strconv.Itoa(int(w.Start.Month()))},
		{Key: "dateRange.start.year", Value: strconv.Itoa(w.Start.Year())},
		{Key: "dateRange.end.day", Value: strconv.Itoa(w.End.Day())},
		{Key: "dateRange.end.month", Value: strconv.Itoa(int(w.End.Month()))},
		{Key: "dateRange.end.year", Value: strconv.Itoa(w.End.Year())},
	}
}

func (w DateWindow) String() string {
	return w.Start.Format("2006-01-02") + ".." + w.End.Format("2006-01-02")
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// syncAnalytics syncs one analytics stream for one parent in date windows
// from the stream's bookmark to today. Records are filtered against the
// bookmark less the look-back, and the returned bookmark is the maximum
// end_at over every window.
func (s *Syncer) syncAnalytics(ctx context.Context, d *Descriptor, sc scope) (syncResult, error) {
	last := s.bookmark(d)
	lastTime, err := state.ParseTime(last)
	if err != nil {
		return syncResult{}, errors.Wrap(err, errors.ErrorTypeState, "invalid bookmark for "+d.Name)
	}
	baseline := state.FormatTime(lastTime.Add(-analyticsLookback))

	today := truncateDay(s.now())
	window := FirstWindow(lastTime, s.windowSize, today)
	chunks := FieldChunks(s.catalog.Fields(d))
	log := s.logger.With(zap.String("stream", d.Name), zap.String("parent_id", sc.parentID))

	result := syncResult{bookmark: last}
	for !window.End.After(today) {
		n, maxValue, err := s.syncWindow(ctx, d, sc, window, chunks, baseline, result.bookmark)
		if err != nil {
			return result, err
		}
		result.records += n
		result.bookmark = maxValue
		metrics.AnalyticsWindows.WithLabelValues(d.Name).Inc()
		log.Debug("synced analytics window",
			zap.Stringer("window", window),
			zap.Int("records", n),
			zap.String("max_bookmark", maxValue))

		window = window.Next(today, s.windowSize, 0)
		if window.Empty() {
			break
		}
	}
	return result, nil
}

func (s *Syncer) syncWindow(ctx context.Context, d *Descriptor, sc scope, window DateWindow, chunks [][]string, baseline, maxValue string) (int, string, error) {
	ctx, span := s.tracer.Start(ctx, "sync.window", trace.WithAttributes(
		attribute.String("stream", d.Name),
		attribute.String("parent_id", sc.parentID),
		attribute.String("window", window.String()),
	))
	defer span.End()

	static := Params{{Key: "start", Value: "0"}}.
		Merge(d.Params).
		Merge(sc.overlay).
		Merge(window.Params())

	var pages [][]map[string]interface{}
	for _, chunk := range chunks {
		url := restBase + "/" + d.Path + "?" + static.With("fields", strings.Join(chunk, ",")).Encode()
		for url != "" {
			if err := ctx.Err(); err != nil {
				return 0, maxValue, err
			}
			body, err := s.client.Get(ctx, url, d.Name, d.Headers)
			if err != nil {
				return 0, maxValue, err
			}
			if page := elementsOf(body, d.DataKey); len(page) > 0 {
				pages = append(pages, page)
			}
			next, ok := NextURL(d.Pagination, url, body)
			if !ok {
				break
			}
			url = next
		}
	}

	merged := MergeResponses(ctx, d.Pivot, pages, s.resolvers.For(d.Resolver))
	if merged.Skipped() > 0 {
		s.logger.Warn("analytics elements without date range or pivot value",
			zap.String("stream", d.Name),
			zap.Int("skipped", merged.Skipped()))
	}
	if merged.Len() == 0 {
		return 0, maxValue, nil
	}

	raw := make([]interface{}, 0, merged.Len())
	for _, rec := range merged.Records() {
		raw = append(raw, map[string]interface{}(rec))
	}
	records := s.transformer.Transform(map[string]interface{}{d.DataKey: raw}, d.DataKey, d.Name)

	newMax, n, err := s.emitRecords(ctx, d, batch{
		records:   records,
		extracted: s.now(),
		last:      baseline,
		max:       maxValue,
		parentID:  sc.parentID,
	})
	span.SetAttributes(attribute.Int("records", n))
	return n, newMax, err
}

// elementsOf returns the JSON objects of the collection under key.
func elementsOf(body map[string]interface{}, key string) []map[string]interface{} {
	raw, _ := body[key].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, el := range raw {
		if obj, ok := el.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}
