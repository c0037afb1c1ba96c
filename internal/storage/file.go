package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/magiclogon/faceid/internal/models"
)

// FileStore keeps every identity record in memory and rewrites a single JSON
// file on each Put. The file is read once, by NewFileStore.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	records map[string]*models.IdentityRecord
}

var _ EmbeddingStore = (*FileStore)(nil)

// NewFileStore loads path. A missing file yields an empty store; an
// unreadable or corrupt one is an error.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]*models.IdentityRecord),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read embeddings file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var records map[string]*models.IdentityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse embeddings file %s: %w", s.path, err)
	}
	for key, rec := range records {
		if rec == nil {
			return fmt.Errorf("parse embeddings file %s: empty record for %q", s.path, key)
		}
		rec.Key = key
		s.records[key] = rec
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Put replaces the record for rec.Key and persists the whole mapping before
// returning. On a failed save the in-memory mapping is rolled back.
func (s *FileStore) Put(ctx context.Context, rec *models.IdentityRecord) error {
	cp := *rec

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[rec.Key]
	s.records[rec.Key] = &cp

	if err := s.save(); err != nil {
		if existed {
			s.records[rec.Key] = prev
		} else {
			delete(s.records, rec.Key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Ping reports whether the store directory is still reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// save must be called with mu held.
func (s *FileStore) save() error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("marshal embeddings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp embeddings file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write embeddings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close embeddings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace embeddings file: %w", err)
	}
	return nil
}
