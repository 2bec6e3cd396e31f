package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/gzip"
)

const snapshotFile = "store.json.gz"

// Store is a key/value store persisted as a gzip-compressed JSON snapshot.
// It is shared across bridge connections; each mutation rewrites the
// snapshot atomically.
type Store struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
	dir  string
}

// OpenStore loads (or initializes) a store rooted at dir.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	s := &Store{
		data: make(map[string]json.RawMessage),
		dir:  dir,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the value for key, or false if absent.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores a value and persists the snapshot.
func (s *Store) Set(key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.persist()
}

// Delete removes a key and persists the snapshot. Reports whether the key
// existed.
func (s *Store) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return false, nil
	}
	delete(s.data, key)
	return true, s.persist()
}

// Keys returns all keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.dir, snapshotFile)
}

func (s *Store) load() error {
	f, err := os.Open(s.snapshotPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open snapshot gzip: %w", err)
	}
	defer gz.Close()

	if err := json.NewDecoder(gz).Decode(&s.data); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return nil
}

// persist writes the snapshot to a temp file and renames it into place.
// Callers must hold the write lock.
func (s *Store) persist() error {
	tmp, err := os.CreateTemp(s.dir, "store-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(s.data); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot gzip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.snapshotPath()); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
