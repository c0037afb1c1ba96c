package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/magiclogon/faceid/internal/api/ws"
	"github.com/magiclogon/faceid/internal/engine"
	"github.com/magiclogon/faceid/internal/storage"
	"github.com/magiclogon/faceid/internal/upload"
)

type pingEngine struct {
	err error
}

func (e pingEngine) CountFaces(context.Context, string) (int, error) { return 1, nil }
func (e pingEngine) Embed(context.Context, string) ([]float32, error) { return []float32{1}, nil }
func (e pingEngine) Compare(context.Context, string, string) (engine.Verification, error) {
	return engine.Verification{}, nil
}
func (e pingEngine) Ping(context.Context) error { return e.err }

func newTestRouter(t *testing.T, eng engine.Engine) http.Handler {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(root, "face_embeddings.json"))
	if err != nil {
		t.Fatal(err)
	}
	assets, err := storage.NewDirAssets(filepath.Join(root, "face_db"))
	if err != nil {
		t.Fatal(err)
	}
	stager, err := upload.NewStager(filepath.Join(root, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(RouterConfig{
		Engine: eng,
		Store:  store,
		Assets: assets,
		Stager: stager,
		Hub:    ws.NewHub(),
	})
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec.Code, body
}

func TestHealthz(t *testing.T) {
	code, body := get(t, newTestRouter(t, pingEngine{}), "/healthz")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, body)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		engineErr  error
		wantStatus int
		wantState  string
	}{
		{"all ok", nil, http.StatusOK, "ready"},
		{"engine down", errors.New("connection refused"), http.StatusServiceUnavailable, "not ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, newTestRouter(t, pingEngine{err: tt.engineErr}), "/readyz")
			if code != tt.wantStatus || body["status"] != tt.wantState {
				t.Errorf("readyz = %d %v", code, body)
			}
			checks, _ := body["checks"].(map[string]any)
			for _, name := range []string{"engine", "store", "assets"} {
				if _, ok := checks[name]; !ok {
					t.Errorf("missing check %q in %v", name, checks)
				}
			}
			if _, ok := checks["nats"]; ok {
				t.Errorf("nats checked without a producer")
			}
		})
	}
}

func TestMetricsExposed(t *testing.T) {
	h := newTestRouter(t, pingEngine{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}
