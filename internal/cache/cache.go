// Package cache is the durable store of processed results: one JSON file per
// logical filename. A hit lets the pipeline skip the expensive external calls
// entirely on a re-run.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"traffic-insights-go/internal/types"
)

var (
	// ErrWrite marks a persistence failure. The extraction result is lost and
	// the file will be fully reprocessed on the next run.
	ErrWrite = errors.New("cache write failed")

	ErrNotFound = errors.New("cache entry not found")
)

// Store keeps StructuredRecords under dir, keyed by logical filename.
// Check-then-write for a given filename must run under Lock so two callers
// cannot both miss the cache and duplicate the external API spend.
type Store struct {
	dir string

	mu   sync.Mutex
	keys map[string]*sync.Mutex
	fl   *flock.Flock
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return &Store{
		dir:  dir,
		keys: make(map[string]*sync.Mutex),
		fl:   flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Lock serializes the exists/load/save sequence for one filename and takes a
// file lock on the store so a second operator invocation waits instead of
// redoing the same work. The returned func releases both.
func (s *Store) Lock(name string) func() {
	s.mu.Lock()
	m, ok := s.keys[name]
	if !ok {
		m = &sync.Mutex{}
		s.keys[name] = m
	}
	s.mu.Unlock()

	m.Lock()
	_ = s.fl.Lock()
	return func() {
		_ = s.fl.Unlock()
		m.Unlock()
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

func (s *Store) Load(name string) (types.StructuredRecord, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return types.StructuredRecord{}, ErrNotFound
	}
	var rec types.StructuredRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.StructuredRecord{}, fmt.Errorf("%w: corrupt entry: %v", ErrNotFound, err)
	}
	return rec, nil
}

// Save publishes atomically: the record is written to a uniquely named temp
// file in the same directory and renamed into place, so a partial write is
// never visible to Exists or Load.
func (s *Store) Save(name string, rec types.StructuredRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	final := s.path(name)
	tmp := final + ".tmp." + uuid.New().String()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
