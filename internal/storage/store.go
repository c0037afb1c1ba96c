package storage

import (
	"context"
	"errors"

	"github.com/magiclogon/faceid/internal/models"
)

var (
	ErrAssetNotFound = errors.New("canonical image not found")
	ErrInvalidKey    = errors.New("invalid identity key")
)

// EmbeddingStore maps identity keys to their registration record.
// Get returns nil, nil for an unknown key. Put replaces any existing record.
type EmbeddingStore interface {
	Get(ctx context.Context, key string) (*models.IdentityRecord, error)
	Put(ctx context.Context, rec *models.IdentityRecord) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// AssetStore holds the canonical registered image for each identity.
// ReadCanonical returns ErrAssetNotFound when nothing was registered.
type AssetStore interface {
	WriteCanonical(ctx context.Context, key string, data []byte) error
	ReadCanonical(ctx context.Context, key string) ([]byte, error)
	Ping(ctx context.Context) error
}

// CanonicalImageName is the file name of the registered image inside an
// identity's directory (or object prefix).
const CanonicalImageName = "registered_face.jpg"
