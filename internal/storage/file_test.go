package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/magiclogon/faceid/internal/models"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "face_embeddings.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	n, _ := s.Count(context.Background())
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
	rec, err := s.Get(context.Background(), "E1")
	if err != nil || rec != nil {
		t.Errorf("Get() = %v, %v; want nil, nil", rec, err)
	}
}

func TestFileStore_PutPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "face_embeddings.json")
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := s.Put(ctx, models.NewIdentityRecord("E1", []float32{0.1, 0.2, 0.3}, now)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("embeddings file not written: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, err := reopened.Get(ctx, "E1")
	if err != nil || rec == nil {
		t.Fatalf("Get() = %v, %v", rec, err)
	}
	if rec.Key != "E1" {
		t.Errorf("Key = %q, want E1", rec.Key)
	}
	if len(rec.Embedding) != 3 || rec.Embedding[2] != 0.3 {
		t.Errorf("Embedding = %v", rec.Embedding)
	}
	if !rec.RegisteredAt.Equal(now) || !rec.LastUpdated.Equal(now) {
		t.Errorf("timestamps = %v / %v, want %v", rec.RegisteredAt, rec.LastUpdated, now)
	}
}

func TestFileStore_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "face_embeddings.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	first := time.Now().Add(-time.Hour)
	second := time.Now()

	_ = s.Put(ctx, models.NewIdentityRecord("E1", []float32{1}, first))
	_ = s.Put(ctx, models.NewIdentityRecord("E2", []float32{2}, first))
	if err := s.Put(ctx, models.NewIdentityRecord("E1", []float32{3}, second)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
	rec, _ := s.Get(ctx, "E1")
	if rec.Embedding[0] != 3 || !rec.RegisteredAt.Equal(second) {
		t.Errorf("E1 not replaced: %+v", rec)
	}
	other, _ := s.Get(ctx, "E2")
	if other == nil || other.Embedding[0] != 2 {
		t.Errorf("E2 changed: %+v", other)
	}
}

func TestFileStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(filepath.Join(t.TempDir(), "face_embeddings.json"))
	_ = s.Put(ctx, models.NewIdentityRecord("E1", []float32{1}, time.Now()))

	rec, _ := s.Get(ctx, "E1")
	rec.Key = "mutated"

	again, _ := s.Get(ctx, "E1")
	if again.Key != "E1" {
		t.Errorf("stored record was mutated through Get result")
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{not json"},
		{"wrong shape", `["E1"]`},
		{"null record", `{"E1": null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "face_embeddings.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewFileStore(path); err == nil {
				t.Error("NewFileStore() error = nil, want error")
			}
		})
	}
}

func TestFileStore_EmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face_embeddings.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestFileStore_FailedSaveRollsBack(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "face_embeddings.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	// A directory in place of the file makes the final rename fail.
	if err := os.MkdirAll(filepath.Join(path, "block"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := s.Put(ctx, models.NewIdentityRecord("E1", []float32{1}, time.Now())); err == nil {
		t.Fatal("Put() error = nil, want error")
	}
	if rec, _ := s.Get(ctx, "E1"); rec != nil {
		t.Errorf("Get() after failed Put = %+v, want nil", rec)
	}
}
