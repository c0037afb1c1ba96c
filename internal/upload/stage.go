// Package upload stages request images as short-lived files for the engine.
package upload

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Suffixes appended to the random base name of a staged file.
const (
	SuffixProbe     = ""
	SuffixCanonical = "_reg"
)

// Stager writes temp files named <dir>/<uuid><suffix>.jpg.
type Stager struct {
	dir string
}

func NewStager(dir string) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Stager{dir: dir}, nil
}

func (s *Stager) Dir() string { return s.dir }

// Stage writes data to a fresh temp file and returns its path with a cleanup
// func. Cleanup is safe to call when Stage failed and never reports errors.
func (s *Stager) Stage(data []byte, suffix string) (string, func(), error) {
	path := filepath.Join(s.dir, uuid.NewString()+suffix+".jpg")
	cleanup := func() { Remove(path) }

	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("stage upload: %w", err)
	}
	return path, cleanup, nil
}

// Remove deletes path, logging failures at debug level only.
func Remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("remove temp file", "path", path, "error", err)
	}
}
