package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/magiclogon/faceid/internal/api"
	"github.com/magiclogon/faceid/internal/api/ws"
	"github.com/magiclogon/faceid/internal/app"
	"github.com/magiclogon/faceid/internal/config"
	"github.com/magiclogon/faceid/internal/observability"
	"github.com/magiclogon/faceid/internal/queue"
	"github.com/magiclogon/faceid/internal/upload"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting faceid API service",
		"port", cfg.Server.Port,
		"engine", cfg.Engine.Backend,
		"store", cfg.Store.Backend,
		"assets", cfg.Assets.Backend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, releaseEngine, err := app.NewEngine(cfg.Engine)
	if err != nil {
		slog.Error("init face engine", "error", err)
		os.Exit(1)
	}
	defer releaseEngine()

	store, closeStore, err := app.NewEmbeddingStore(ctx, cfg)
	if err != nil {
		slog.Error("open embedding store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	if n, err := store.Count(ctx); err == nil {
		observability.RegisteredIdentities.Set(float64(n))
		slog.Info("embedding store loaded", "identities", n)
	}

	assets, err := app.NewAssetStore(ctx, cfg)
	if err != nil {
		slog.Error("open asset store", "error", err)
		os.Exit(1)
	}

	stager, err := upload.NewStager(cfg.Server.UploadDir)
	if err != nil {
		slog.Error("prepare upload dir", "error", err)
		os.Exit(1)
	}

	// NATS is optional: events still reach websocket clients without it.
	var producer *queue.Producer
	if cfg.NATS.URL != "" {
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStream(ctx); err != nil {
			slog.Warn("ensure nats stream", "error", err)
		}
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	router := api.NewRouter(api.RouterConfig{
		Engine:         eng,
		Store:          store,
		Assets:         assets,
		Stager:         stager,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Producer:       producer,
		Hub:            hub,
	})

	// Engine calls can take a while on CPU-only DeepFace deployments.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Engine.Timeout*3 + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
