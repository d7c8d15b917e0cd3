package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/vod/internal/api"
	"github.com/your-org/vod/internal/api/ws"
	"github.com/your-org/vod/internal/config"
	"github.com/your-org/vod/internal/models"
	"github.com/your-org/vod/internal/observability"
	"github.com/your-org/vod/internal/pipeline"
	"github.com/your-org/vod/internal/queue"
	"github.com/your-org/vod/internal/registry"
	"github.com/your-org/vod/internal/storage"
	"github.com/your-org/vod/pkg/dto"
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

	slog.Info("starting VOD API service", "port", cfg.Server.Port)

	// ONNX Runtime is needed here because synchronous submissions run the
	// detector in-process.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	store, err := storage.NewRedisStore(cfg.Redis)
	if err != nil {
		slog.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	reg := registry.New(store, minioStore, cfg.Pipeline.ModelsDir, cfg.Pipeline.DefaultModel)

	orchestrator := pipeline.NewOrchestrator(cfg.Pipeline, store, minioStore, producer)
	orchestrator.Notify = func(result models.DetectionResult) {
		if err := producer.PublishFrameResult(context.Background(), result); err != nil {
			slog.Warn("publish frame result", "error", err)
		}
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume job events to broadcast progress via WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeJobEvents(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		switch {
		case strings.HasSuffix(msg.Subject(), ".frame"):
			var result models.DetectionResult
			if err := json.Unmarshal(msg.Data(), &result); err != nil {
				return err
			}
			hub.BroadcastEvent(&dto.WSEvent{
				Type:    "frame_result",
				VideoID: result.VideoID,
				Result:  &result,
			})
		case strings.HasSuffix(msg.Subject(), ".status"):
			var event models.JobEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				return err
			}
			hub.BroadcastEvent(&dto.WSEvent{
				Type:       "job_status",
				VideoID:    event.VideoID,
				Status:     string(event.Status),
				FrameCount: event.FrameCount,
				Error:      event.Error,
			})
		}
		return nil
	})
	if err != nil {
		slog.Warn("start job event consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:       cfg.Server.APIKey,
		DB:           db,
		Store:        store,
		MinIO:        minioStore,
		Registry:     reg,
		Producer:     producer,
		Orchestrator: orchestrator,
		Hub:          hub,
	})

	// Start HTTP server. Write timeout is generous: synchronous submissions
	// hold the connection for the whole job.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 20 * time.Minute,
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

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
