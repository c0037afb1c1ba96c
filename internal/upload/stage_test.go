package upload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStager_StageAndCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewStager(dir)
	if err != nil {
		t.Fatalf("NewStager() error = %v", err)
	}

	tests := []struct {
		suffix   string
		wantTail string
	}{
		{SuffixProbe, ".jpg"},
		{SuffixCanonical, "_reg.jpg"},
	}
	for _, tt := range tests {
		path, cleanup, err := s.Stage([]byte("img"), tt.suffix)
		if err != nil {
			t.Fatalf("Stage(%q) error = %v", tt.suffix, err)
		}
		if filepath.Dir(path) != dir {
			t.Errorf("staged in %s, want %s", filepath.Dir(path), dir)
		}
		if !strings.HasSuffix(path, tt.wantTail) {
			t.Errorf("path %s does not end in %s", path, tt.wantTail)
		}
		got, err := os.ReadFile(path)
		if err != nil || !bytes.Equal(got, []byte("img")) {
			t.Errorf("staged content = %q, %v", got, err)
		}

		cleanup()
		cleanup()
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file %s still present after cleanup", path)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("upload dir has %d entries, want 0", len(entries))
	}
}

func TestStager_UniqueNames(t *testing.T) {
	s, _ := NewStager(t.TempDir())
	a, ca, _ := s.Stage([]byte("a"), "")
	b, cb, _ := s.Stage([]byte("b"), "")
	defer ca()
	defer cb()
	if a == b {
		t.Errorf("two stages share path %s", a)
	}
}
