// Package testutil provides fakes and helpers shared by the tap's tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// FixedClock returns a clock function that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Date is shorthand for midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Body decodes a JSON document the way the HTTP client does, so numbers
// arrive as json.Number. It panics on invalid input.
func Body(doc string) map[string]interface{} {
	var out map[string]interface{}
	if err := jsonpool.Unmarshal([]byte(doc), &out); err != nil {
		panic(fmt.Sprintf("testutil: invalid JSON body: %v", err))
	}
	return out
}

// Call is one request seen by a FakeAPIClient.
type Call struct {
	URL      string
	Endpoint string
	Headers  map[string]string
}

type response struct {
	prefix bool
	body   map[string]interface{}
	err    error
}

// FakeAPIClient serves scripted responses keyed by exact URL or URL prefix.
// Responses registered for the same key are returned in order; the last
// one repeats. Unknown URLs return an empty object.
type FakeAPIClient struct {
	mu        sync.Mutex
	responses map[string][]response
	served    map[string]int
	calls     []Call
}

// NewFakeAPIClient creates an empty fake.
func NewFakeAPIClient() *FakeAPIClient {
	return &FakeAPIClient{
		responses: make(map[string][]response),
		served:    make(map[string]int),
	}
}

// On registers body for the exact url.
func (f *FakeAPIClient) On(url string, body map[string]interface{}) *FakeAPIClient {
	return f.add(url, response{body: body})
}

// OnPrefix registers body for every url starting with prefix.
func (f *FakeAPIClient) OnPrefix(prefix string, body map[string]interface{}) *FakeAPIClient {
	return f.add(prefix, response{prefix: true, body: body})
}

// FailPrefix makes urls starting with prefix fail with err.
func (f *FakeAPIClient) FailPrefix(prefix string, err error) *FakeAPIClient {
	return f.add(prefix, response{prefix: true, err: err})
}

// FailStatus makes urls starting with prefix fail like a non-2xx response.
func (f *FakeAPIClient) FailStatus(prefix string, status int, body string) *FakeAPIClient {
	return f.FailPrefix(prefix, errors.FromHTTPStatus(status, body))
}

func (f *FakeAPIClient) add(key string, r response) *FakeAPIClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key] = append(f.responses[key], r)
	return f
}

// Get implements core.APIClient.
func (f *FakeAPIClient) Get(ctx context.Context, url, endpoint string, headers map[string]string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{URL: url, Endpoint: endpoint, Headers: headers})

	key, ok := f.match(url)
	if !ok {
		return map[string]interface{}{}, nil
	}
	scripted := f.responses[key]
	i := f.served[key]
	if i >= len(scripted) {
		i = len(scripted) - 1
	}
	f.served[key]++

	r := scripted[i]
	if r.err != nil {
		return nil, r.err
	}
	return r.body, nil
}

// match prefers an exact registration, then the longest matching prefix.
func (f *FakeAPIClient) match(url string) (string, bool) {
	if rs, ok := f.responses[url]; ok && !rs[0].prefix {
		return url, true
	}
	best := ""
	for key, rs := range f.responses {
		if rs[0].prefix && strings.HasPrefix(url, key) && len(key) > len(best) {
			best = key
		}
	}
	return best, best != ""
}

// Calls returns every request in order.
func (f *FakeAPIClient) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// URLs returns the requested URLs in order.
func (f *FakeAPIClient) URLs() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.URL
	}
	return out
}

// CallsTo returns the requests whose URL starts with prefix.
func (f *FakeAPIClient) CallsTo(prefix string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.URL, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// MemorySink records every message it receives.
type MemorySink struct {
	mu      sync.Mutex
	Schemas []models.Schema
	Records []models.RecordMessage
	States  []interface{}

	// FailRecords makes WriteRecord return this error when set.
	FailRecords error
	closed      bool
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// WriteSchema implements core.Sink.
func (m *MemorySink) WriteSchema(_ context.Context, schema models.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Schemas = append(m.Schemas, schema)
	return nil
}

// WriteRecord implements core.Sink.
func (m *MemorySink) WriteRecord(_ context.Context, msg models.RecordMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRecords != nil {
		return m.FailRecords
	}
	m.Records = append(m.Records, msg)
	return nil
}

// WriteState implements core.Sink.
func (m *MemorySink) WriteState(_ context.Context, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States = append(m.States, value)
	return nil
}

// Close implements core.Sink.
func (m *MemorySink) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// RecordsFor returns the records written for stream.
func (m *MemorySink) RecordsFor(stream string) []models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Record
	for _, msg := range m.Records {
		if msg.Stream == stream {
			out = append(out, msg.Record)
		}
	}
	return out
}

// SchemaStreams returns the distinct streams a schema was written for.
func (m *MemorySink) SchemaStreams() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, s := range m.Schemas {
		if !seen[s.Stream] {
			seen[s.Stream] = true
			out = append(out, s.Stream)
		}
	}
	sort.Strings(out)
	return out
}

// LastState returns the most recent state message, or nil.
func (m *MemorySink) LastState() interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.States) == 0 {
		return nil
	}
	return m.States[len(m.States)-1]
}
