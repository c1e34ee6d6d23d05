package state

import (
	"context"
	"strings"
	"sync"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
)

// Store persists state between runs.
type Store interface {
	// Load reads the saved state. A missing document yields an empty state.
	Load(ctx context.Context) (*State, error)
	// Save replaces the saved state.
	Save(ctx context.Context, s *State) error
}

// Open returns the store for cfg.URI: s3://bucket/key, gs://bucket/key, a
// local path, or an in-memory store when the URI is empty.
func Open(ctx context.Context, cfg config.StateConfig) (Store, error) {
	scheme, bucket, key := ParseURI(cfg.URI)
	switch scheme {
	case "":
		return NewMemoryStore(nil), nil
	case "s3":
		if bucket == "" || key == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "state uri must be s3://bucket/key")
		}
		return NewS3Store(ctx, bucket, key, cfg.Region)
	case "gs":
		if bucket == "" || key == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "state uri must be gs://bucket/key")
		}
		return NewGCSStore(ctx, bucket, key, cfg.CredentialsFile)
	default:
		return NewFileStore(key), nil
	}
}

// ParseURI splits a state location into scheme, bucket and key. Local paths
// have scheme "file" and the path as key.
func ParseURI(uri string) (scheme, bucket, key string) {
	if uri == "" {
		return "", "", ""
	}
	for _, prefix := range []string{"s3", "gs"} {
		if rest, ok := strings.CutPrefix(uri, prefix+"://"); ok {
			bucket, key, _ = strings.Cut(rest, "/")
			return prefix, bucket, key
		}
	}
	return "file", "", strings.TrimPrefix(uri, "file://")
}

// MemoryStore keeps state in process. Used when no state location is
// configured; the sink's STATE messages remain the only durable record.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
	saves int
}

// NewMemoryStore creates a store seeded with initial, which may be nil.
func NewMemoryStore(initial *State) *MemoryStore {
	if initial == nil {
		initial = New()
	}
	return &MemoryStore{state: initial}
}

// Load returns a copy of the stored state.
func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.state), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(ctx context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = clone(s)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func clone(s *State) *State {
	out := New()
	for k, v := range s.Bookmarks {
		out.Bookmarks[k] = v
	}
	return out
}
