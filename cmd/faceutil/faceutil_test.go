package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/magiclogon/faceid/internal/imagecodec"
)

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestEnroll(t *testing.T) {
	dir := t.TempDir()
	payloadFile := filepath.Join(t.TempDir(), "probe.b64")
	if err := os.WriteFile(payloadFile, []byte(pngBase64(t)), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "enroll", "--dir", dir, "--id", "E1", "--b64-file", payloadFile)
	if err != nil {
		t.Fatalf("enroll error = %v (%s)", err, out)
	}

	want := filepath.Join(dir, "E1.jpg")
	if strings.TrimSpace(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	img, err := imagecodec.DecodeFile(want)
	if err != nil {
		t.Fatalf("saved reference not decodable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("reference size = %v", b)
	}
}

func TestEnroll_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad base64", []string{"--id", "E1", "--b64", "%%%"}},
		{"path traversal", []string{"--id", "../E1", "--b64", pngBase64(t)}},
		{"both payloads", []string{"--id", "E1", "--b64", "x", "--b64-file", "y"}},
		{"no payload", []string{"--id", "E1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"enroll", "--dir", t.TempDir()}, tt.args...)
			if _, err := run(t, args...); err == nil {
				t.Error("enroll error = nil, want error")
			}
		})
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"verified": true, "distance": 0.25, "threshold": 0.68,
		})
	}))
	defer srv.Close()

	t.Setenv("FACEID_ENGINE_URL", srv.URL)
	t.Setenv("FACEID_UPLOAD_DIR", t.TempDir())

	dir := t.TempDir()
	if _, err := run(t, "enroll", "--dir", dir, "--id", "E1", "--b64", pngBase64(t)); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	out, err := run(t, "verify", "--dir", dir, "--id", "E1", "--b64", pngBase64(t))
	if err != nil {
		t.Fatalf("verify error = %v (%s)", err, out)
	}
	if strings.TrimSpace(out) != "verified=true distance=0.25" {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, "verify", "--dir", dir, "--id", "E9", "--b64", pngBase64(t))
	if err == nil {
		t.Fatal("verify of unknown id error = nil")
	}
	if !strings.HasPrefix(out, "verified=false error=no reference image for E9") {
		t.Errorf("output = %q", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if strings.TrimSpace(out) != "faceutil "+Version {
		t.Errorf("output = %q", out)
	}
}
