package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirAssets_WriteRead(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	d, err := NewDirAssets(root)
	if err != nil {
		t.Fatalf("NewDirAssets() error = %v", err)
	}

	if err := d.WriteCanonical(ctx, "E1", []byte("first")); err != nil {
		t.Fatalf("WriteCanonical() error = %v", err)
	}
	if err := d.WriteCanonical(ctx, "E1", []byte("second")); err != nil {
		t.Fatalf("WriteCanonical() error = %v", err)
	}

	got, err := d.ReadCanonical(ctx, "E1")
	if err != nil {
		t.Fatalf("ReadCanonical() error = %v", err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("ReadCanonical() = %q, want %q", got, "second")
	}

	onDisk := filepath.Join(root, "E1", CanonicalImageName)
	if _, err := os.Stat(onDisk); err != nil {
		t.Errorf("canonical image not at %s: %v", onDisk, err)
	}
}

func TestDirAssets_NotFound(t *testing.T) {
	d, _ := NewDirAssets(t.TempDir())
	_, err := d.ReadCanonical(context.Background(), "nobody")
	if !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("ReadCanonical() error = %v, want ErrAssetNotFound", err)
	}
}

func TestDirAssets_InvalidKeys(t *testing.T) {
	d, _ := NewDirAssets(t.TempDir())
	for _, key := range []string{"", ".", "..", "../escape", "a/b", `a\b`, "nul\x00"} {
		if err := d.WriteCanonical(context.Background(), key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("WriteCanonical(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestCanonicalKey(t *testing.T) {
	got, err := CanonicalKey("E1")
	if err != nil {
		t.Fatalf("CanonicalKey() error = %v", err)
	}
	if want := "faces/E1/registered_face.jpg"; got != want {
		t.Errorf("CanonicalKey() = %q, want %q", got, want)
	}
	if _, err := CanonicalKey("../x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("CanonicalKey(../x) error = %v, want ErrInvalidKey", err)
	}
}
