// Package app builds the configured engine and storage backends shared by
// the API server and the faceutil CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magiclogon/faceid/internal/config"
	"github.com/magiclogon/faceid/internal/engine"
	"github.com/magiclogon/faceid/internal/storage"
	"github.com/magiclogon/faceid/internal/vision"
)

// NewEngine returns the instrumented face engine selected by cfg.Backend
// and a func releasing its resources.
func NewEngine(cfg config.EngineConfig) (engine.Engine, func(), error) {
	opts := engine.OptionsFromConfig(cfg)

	switch cfg.Backend {
	case config.EngineONNX:
		libPath := cfg.ONNXLib
		if libPath == "" {
			libPath = vision.DefaultLibPath()
		}
		if err := vision.InitRuntime(libPath); err != nil {
			return nil, nil, err
		}
		local, err := vision.NewLocalEngine(cfg.ModelsDir, opts)
		if err != nil {
			vision.DestroyRuntime()
			return nil, nil, fmt.Errorf("load onnx models: %w", err)
		}
		slog.Info("face engine ready", "backend", cfg.Backend, "models_dir", cfg.ModelsDir)
		return engine.Instrument(local), func() {
			local.Close()
			vision.DestroyRuntime()
		}, nil

	case config.EngineDeepFace:
		slog.Info("face engine ready", "backend", cfg.Backend, "url", cfg.URL, "model", cfg.ModelName)
		return engine.Instrument(engine.NewDeepFace(cfg.URL, cfg.Timeout, opts)), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}

// NewEmbeddingStore opens the store selected by cfg.Store.Backend.
func NewEmbeddingStore(ctx context.Context, cfg *config.Config) (storage.EmbeddingStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := storage.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, db.Close, nil

	case config.BackendFile:
		fs, err := storage.NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// NewAssetStore opens the canonical image store selected by cfg.Assets.Backend.
func NewAssetStore(ctx context.Context, cfg *config.Config) (storage.AssetStore, error) {
	switch cfg.Assets.Backend {
	case config.BackendMinIO:
		m, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		return m, nil

	case config.BackendFS:
		return storage.NewDirAssets(cfg.Assets.Dir)

	default:
		return nil, fmt.Errorf("unknown assets backend %q", cfg.Assets.Backend)
	}
}
