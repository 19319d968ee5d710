package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the mapping as a single flat JSON object on disk,
// written atomically (temp file + rename) so a crash mid-write can never
// leave a truncated store behind. It assumes the single-owner discipline
// documented on Vault: one process owns the file and all writes go through
// one FileStore.
type FileStore struct {
	mu      sync.Mutex
	path    string
	mapping map[string]string
}

// NewFileStore creates a store persisting to path. The file is created on
// first Put; its parent directory is created as needed.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted mapping. A missing file yields an empty vault.
func (s *FileStore) Load(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mapping = make(map[string]string)
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string)
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("corrupt mapping file %s: %w", s.path, err)
	}

	s.mapping = mapping

	out := make(map[string]string, len(mapping))
	for k, v := range mapping {
		out[k] = v
	}
	return out, nil
}

// Put records one entry and rewrites the whole file atomically.
func (s *FileStore) Put(_ context.Context, sourceID, pseudonymID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapping == nil {
		s.mapping = make(map[string]string)
	}
	s.mapping[sourceID] = pseudonymID

	if err := s.writeLocked(); err != nil {
		delete(s.mapping, sourceID)
		return err
	}
	return nil
}

func (s *FileStore) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.mapping, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".mapping-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	// The mapping is the re-identification key; keep it owner-readable only.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }
