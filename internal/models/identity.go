package models

import "time"

// IdentityRecord is the persisted registration for one identity key.
// RegisteredAt and LastUpdated are written together on every registration.
type IdentityRecord struct {
	Key          string    `json:"-" db:"key"`
	Embedding    []float32 `json:"embedding" db:"embedding"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	LastUpdated  time.Time `json:"last_updated" db:"last_updated"`
}

// NewIdentityRecord builds a fresh record stamped at now.
func NewIdentityRecord(key string, embedding []float32, now time.Time) *IdentityRecord {
	return &IdentityRecord{
		Key:          key,
		Embedding:    embedding,
		RegisteredAt: now,
		LastUpdated:  now,
	}
}
