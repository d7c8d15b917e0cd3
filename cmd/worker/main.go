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
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/vod/internal/config"
	"github.com/your-org/vod/internal/models"
	"github.com/your-org/vod/internal/observability"
	"github.com/your-org/vod/internal/pipeline"
	"github.com/your-org/vod/internal/queue"
	"github.com/your-org/vod/internal/registry"
	"github.com/your-org/vod/internal/storage"
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

	slog.Info("starting VOD detection worker",
		"frame_workers", cfg.Pipeline.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime
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
		slog.Error("connect to nats producer", "error", err)
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

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One job at a time per worker process; the orchestrator parallelizes
	// over frames internally.
	err = consumer.ConsumeJobs(ctx, "detection-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.JobTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal job task", "error", err)
			return nil // Don't retry on unmarshal errors
		}
		return runJob(ctx, task, db, minioStore, reg, orchestrator)
	}, 1)
	if err != nil {
		slog.Error("start job consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// runJob executes one queued task: fetch source, resolve model weights, run
// the pipeline, and record the outcome in the job ledger.
func runJob(ctx context.Context, task models.JobTask, db *storage.PostgresStore, minioStore *storage.MinIOStore, reg *registry.Registry, orch *pipeline.Orchestrator) error {
	slog.Info("job picked up", "video_id", task.VideoID, "file", task.FileName)

	if err := db.MarkProcessing(ctx, task.VideoID); err != nil {
		slog.Warn("mark processing", "video_id", task.VideoID, "error", err)
	}

	var modelPath string
	var err error
	if task.ModelID != "" {
		modelPath, err = reg.Resolve(ctx, task.ModelID)
	} else {
		modelPath, err = reg.ResolveActive(ctx)
	}
	if err != nil {
		_ = db.MarkFailed(ctx, task.VideoID, "resolve model: "+err.Error())
		return fmt.Errorf("resolve model for %s: %w", task.VideoID, err)
	}

	obj, _, err := minioStore.GetObjectReader(ctx, task.SourceKey)
	if err != nil {
		_ = db.MarkFailed(ctx, task.VideoID, "fetch source: "+err.Error())
		return fmt.Errorf("fetch source for %s: %w", task.VideoID, err)
	}
	defer obj.Close()

	result, err := orch.RunJob(ctx, task.VideoID, obj, task.FileName, modelPath)
	if err != nil {
		_ = db.MarkFailed(ctx, task.VideoID, err.Error())
		return fmt.Errorf("run job %s: %w", task.VideoID, err)
	}

	if err := db.MarkCompleted(ctx, task.VideoID, result.FrameCount, result.OutputKey); err != nil {
		slog.Warn("mark completed", "video_id", task.VideoID, "error", err)
	}
	return nil
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
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
