package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirAssets stores canonical images at <root>/<key>/registered_face.jpg.
type DirAssets struct {
	root string
}

var _ AssetStore = (*DirAssets)(nil)

func NewDirAssets(root string) (*DirAssets, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	return &DirAssets{root: root}, nil
}

// CanonicalPath returns where the canonical image for key lives.
func (d *DirAssets) CanonicalPath(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(d.root, key, CanonicalImageName), nil
}

func (d *DirAssets) WriteCanonical(ctx context.Context, key string, data []byte) error {
	path, err := d.CanonicalPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write canonical image: %w", err)
	}
	return nil
}

func (d *DirAssets) ReadCanonical(ctx context.Context, key string) ([]byte, error) {
	path, err := d.CanonicalPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read canonical image: %w", err)
	}
	return data, nil
}

func (d *DirAssets) Ping(ctx context.Context) error {
	_, err := os.Stat(d.root)
	return err
}

// ValidateKey accepts any key that names exactly one path element, so a key
// cannot reach outside the asset root or object prefix.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
