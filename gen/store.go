package gen

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vepnet/tgen/profile"
)

// storedConfig is the on-disk shape of the persisted configuration.
type storedConfig struct {
	Profiles []profile.Config `json:"profiles"`
}

// Store persists profile descriptors to a JSON file. It is the single source
// of truth across restarts; profiles are recreated in their saved enabled
// state at startup.
type Store struct {
	path string
}

// NewStore creates a Store. An empty path disables persistence.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted profiles. A missing file is an empty configuration.
func (s *Store) Load() ([]profile.Config, error) {
	if s.path == "" {
		return nil, nil
	}
	data, e := os.ReadFile(s.path)
	if errors.Is(e, fs.ErrNotExist) {
		return nil, nil
	}
	if e != nil {
		return nil, e
	}
	var sc storedConfig
	if e = json.Unmarshal(data, &sc); e != nil {
		return nil, fmt.Errorf("%s: %w", s.path, e)
	}
	return sc.Profiles, nil
}

// Save writes the profiles atomically: a temp file in the same directory is
// fsynced and renamed over the target, so a crash never leaves a torn file.
func (s *Store) Save(cfgs []profile.Config) error {
	if s.path == "" {
		return nil
	}
	data, e := json.MarshalIndent(storedConfig{Profiles: cfgs}, "", "  ")
	if e != nil {
		return e
	}

	dir := filepath.Dir(s.path)
	tmp, e := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if e != nil {
		return e
	}
	defer os.Remove(tmp.Name())
	if _, e = tmp.Write(data); e != nil {
		tmp.Close()
		return e
	}
	if e = tmp.Sync(); e != nil {
		tmp.Close()
		return e
	}
	if e = tmp.Close(); e != nil {
		return e
	}
	return os.Rename(tmp.Name(), s.path)
}
