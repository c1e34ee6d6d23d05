package state

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
)

// FileStore keeps state in a local JSON file. Saves write a temporary file
// next to the target and rename it into place.
type FileStore struct {
	path string
}

// NewFileStore creates a store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state file.
func (f *FileStore) Load(ctx context.Context) (*State, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state file").
			WithDetail("path", f.path)
	}
	return Decode(data)
}

// Save atomically replaces the state file.
func (f *FileStore) Save(ctx context.Context, s *State) error {
	data, err := s.Encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to create temporary state file").
			WithDetail("dir", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrorTypeState, "failed to replace state file").
			WithDetail("path", f.path)
	}
	return nil
}
