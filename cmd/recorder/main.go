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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magiclogon/faceid/internal/config"
	"github.com/magiclogon/faceid/internal/models"
	"github.com/magiclogon/faceid/internal/observability"
	"github.com/magiclogon/faceid/internal/queue"
	"github.com/magiclogon/faceid/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	workers := flag.Int("workers", 2, "concurrent event writers")
	metricsAddr := flag.String("metrics-addr", ":8082", "address for /metrics and /healthz")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.NATS.URL == "" {
		slog.Error("nats.url is required for the recorder")
		os.Exit(1)
	}

	slog.Info("starting faceid event recorder", "workers", *workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	if err := consumer.EnsureStream(ctx); err != nil {
		slog.Error("ensure nats stream", "error", err)
		os.Exit(1)
	}

	err = consumer.ConsumeFaceEvents(ctx, "face-recorder", func(ctx context.Context, ev models.FaceEvent) error {
		if err := db.RecordEvent(ctx, &ev); err != nil {
			return fmt.Errorf("record event %s: %w", ev.ID, err)
		}
		observability.EventsRecorded.Inc()
		slog.Debug("face event recorded", "type", ev.Type, "employee_id", ev.EmployeeID)
		return nil
	}, *workers)
	if err != nil {
		slog.Error("start face event consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := consumer.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintf(w, `{"status":%q}`, err.Error())
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("recorder metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down recorder...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("recorder stopped")
}
