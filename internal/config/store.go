package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattjoyce/executor/internal/module"
)

var emptyObject = []byte("{}")

// Store lazily reads per-module JSON configuration blobs from a root directory.
// Each blob is read at most once per process; later edits on disk are not seen.
type Store struct {
	root      string
	integrity bool

	mu       sync.Mutex
	cache    map[string][]byte
	manifest *ChecksumManifest
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIntegrity verifies each blob against root/.checksums before it is cached.
func WithIntegrity() StoreOption {
	return func(s *Store) { s.integrity = true }
}

// NewStore returns a Store reading from root.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, cache: make(map[string][]byte)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the configuration root directory.
func (s *Store) Root() string { return s.root }

// Path returns the absolute location of d's configuration file.
func (s *Store) Path(d *module.Descriptor) string {
	return filepath.Join(s.root, d.ConfigurationFile())
}

// Load decodes d's configuration into into. A module whose file is absent gets
// an empty object unless it requires configuration, in which case Load returns
// *module.ConfigurationMissingError.
func (s *Store) Load(d *module.Descriptor, into any) error {
	raw, err := s.Raw(d)
	if err != nil {
		return err
	}
	if into == nil {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decode configuration for %s: %w", d.ID(), err)
	}
	return nil
}

// Raw returns the cached configuration bytes for d, reading them on first use.
func (s *Store) Raw(d *module.Descriptor) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, ok := s.cache[d.ID()]; ok {
		return raw, nil
	}

	path := s.Path(d)
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if d.RequiresConfiguration() {
			return nil, &module.ConfigurationMissingError{ID: d.ID(), Path: path, Err: err}
		}
		raw = emptyObject
	case err != nil:
		return nil, fmt.Errorf("read configuration for %s: %w", d.ID(), err)
	default:
		if err := s.verify(d, raw); err != nil {
			return nil, err
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("configuration for %s at %s is not a JSON object: %w", d.ID(), path, err)
		}
	}

	s.cache[d.ID()] = raw
	return raw, nil
}

func (s *Store) verify(d *module.Descriptor, raw []byte) error {
	if !s.integrity {
		return nil
	}
	if s.manifest == nil {
		manifest, err := LoadChecksums(s.root)
		if err != nil {
			return fmt.Errorf("integrity check for %s: %w", d.ID(), err)
		}
		s.manifest = manifest
	}
	if err := s.manifest.verify(filepath.ToSlash(d.ConfigurationFile()), raw); err != nil {
		return fmt.Errorf("integrity check for %s: %w", d.ID(), err)
	}
	return nil
}
