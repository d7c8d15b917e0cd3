package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/vod/internal/api/handlers"
	"github.com/your-org/vod/internal/api/ws"
	"github.com/your-org/vod/internal/auth"
	"github.com/your-org/vod/internal/pipeline"
	"github.com/your-org/vod/internal/queue"
	"github.com/your-org/vod/internal/registry"
	"github.com/your-org/vod/internal/storage"
)

type RouterConfig struct {
	APIKey       string
	DB           *storage.PostgresStore
	Store        *storage.RedisStore
	MinIO        *storage.MinIOStore
	Registry     *registry.Registry
	Producer     *queue.Producer
	Orchestrator *pipeline.Orchestrator
	Hub          *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Store, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Detections
	detH := handlers.NewDetectionHandler(cfg.DB, cfg.Store, cfg.MinIO, cfg.Registry, cfg.Producer, cfg.Orchestrator)
	v1.POST("/detections", detH.Submit)
	v1.POST("/detections/async", detH.SubmitAsync)
	v1.GET("/detections", detH.List)
	v1.GET("/detections/:id", detH.Get)
	v1.DELETE("/detections/:id", detH.Delete)

	// Videos
	videoH := handlers.NewVideoHandler(cfg.Store, cfg.MinIO)
	v1.GET("/videos", videoH.List)
	v1.GET("/videos/:id", videoH.Stream)

	// Models
	modelH := handlers.NewModelHandler(cfg.Registry)
	v1.POST("/models", modelH.Upload)
	v1.GET("/models", modelH.List)
	v1.POST("/models/:id/activate", modelH.Activate)
	v1.DELETE("/models/:id", modelH.Delete)

	return r
}
