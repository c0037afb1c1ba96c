package api

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magiclogon/faceid/internal/api/handlers"
	"github.com/magiclogon/faceid/internal/api/ws"
	"github.com/magiclogon/faceid/internal/engine"
	"github.com/magiclogon/faceid/internal/queue"
	"github.com/magiclogon/faceid/internal/storage"
	"github.com/magiclogon/faceid/internal/upload"
)

type RouterConfig struct {
	Engine         engine.Engine
	Store          storage.EmbeddingStore
	Assets         storage.AssetStore
	Stager         *upload.Stager
	MaxUploadBytes int64
	// Producer is nil when event publishing to NATS is disabled.
	Producer *queue.Producer
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	checks := map[string]handlers.Checker{
		"engine": cfg.Engine.Ping,
		"store":  cfg.Store.Ping,
		"assets": cfg.Assets.Ping,
	}
	var publishers []handlers.EventPublisher
	if cfg.Hub != nil {
		publishers = append(publishers, cfg.Hub)
		r.GET("/ws", cfg.Hub.HandleWS)
	}
	if cfg.Producer != nil {
		publishers = append(publishers, cfg.Producer)
		checks["nats"] = func(context.Context) error { return cfg.Producer.Ping() }
	}

	systemH := handlers.NewSystemHandler(checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	faceH := handlers.NewFaceHandler(cfg.Engine, cfg.Store, cfg.Assets, cfg.Stager, cfg.MaxUploadBytes, publishers...)
	r.POST("/register-face", faceH.Register)
	r.POST("/verify-face", faceH.Verify)

	return r
}
