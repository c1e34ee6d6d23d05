package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite is embedded by end-to-end suites. It carries a
// suite-wide deadline and one scratch directory per test.
type IntegrationTestSuite struct {
	suite.Suite

	ctx    context.Context
	cancel context.CancelFunc
	dirs   map[string]string
}

// SetupSuite starts the suite deadline.
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.dirs = make(map[string]string)
}

// TearDownSuite cancels the suite context.
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
}

// Context is cancelled when the suite ends or its deadline passes.
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the current test's scratch directory, the same one for
// every call within a test. It is removed when the test ends.
func (s *IntegrationTestSuite) TempDir() string {
	t := s.T()
	if dir, ok := s.dirs[t.Name()]; ok {
		return dir
	}
	dir := t.TempDir()
	s.dirs[t.Name()] = dir
	return dir
}

// IntegrationTest skips end-to-end tests under -short.
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// APIServer is a local stand-in for the LinkedIn API. Routes are keyed by
// request URI (path and raw query) or by a URI prefix, the longest prefix
// winning, and answer with a JSON document. Requests without the expected
// bearer token get a 401; unknown routes a 404.
type APIServer struct {
	*httptest.Server

	token string

	mu       sync.Mutex
	routes   map[string]route
	requests []string
}

type route struct {
	prefix bool
	status int
	body   string
}

// NewAPIServer starts a server expecting token. It is closed when the test
// ends.
func NewAPIServer(t testing.TB, token string) *APIServer {
	s := &APIServer{token: token, routes: make(map[string]route)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle answers requestURI with a 200 and body.
func (s *APIServer) Handle(requestURI, body string) {
	s.HandleStatus(requestURI, http.StatusOK, body)
}

// HandleStatus answers requestURI with status and body.
func (s *APIServer) HandleStatus(requestURI string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[requestURI] = route{status: status, body: body}
}

// HandlePrefix answers every request URI starting with prefix that has no
// exact route.
func (s *APIServer) HandlePrefix(prefix, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[prefix] = route{prefix: true, status: http.StatusOK, body: body}
}

// Requests returns the request URIs received, in order.
func (s *APIServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *APIServer) serve(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.RequestURI()

	s.mu.Lock()
	s.requests = append(s.requests, uri)
	rt, ok := s.match(uri)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Header.Get("Authorization") != "Bearer "+s.token:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":401,"message":"Invalid access token"}`))
	case !ok:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":404,"message":"No route for ` + uri + `"}`))
	default:
		w.WriteHeader(rt.status)
		_, _ = w.Write([]byte(rt.body))
	}
}

func (s *APIServer) match(uri string) (route, bool) {
	if rt, ok := s.routes[uri]; ok && !rt.prefix {
		return rt, true
	}
	var best string
	for key, rt := range s.routes {
		if rt.prefix && strings.HasPrefix(uri, key) && len(key) > len(best) {
			best = key
		}
	}
	rt, ok := s.routes[best]
	return rt, ok && best != ""
}
