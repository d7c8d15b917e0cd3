package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/your-org/vod/internal/config"
	"github.com/your-org/vod/internal/media"
	"github.com/your-org/vod/internal/models"
	"github.com/your-org/vod/internal/observability"
	"github.com/your-org/vod/internal/vision"
)

// ResultStore is the persistence surface the orchestrator writes to once a
// job has fully succeeded. Results are written before stats; stats presence
// is the "job complete" signal.
type ResultStore interface {
	PutResult(ctx context.Context, videoID string, result models.DetectionResult) error
	PutStats(ctx context.Context, videoID string, stats models.DetectionStats) error
	PutVideoMeta(ctx context.Context, meta models.VideoMeta) error
}

// ArtifactStore holds large binary artifacts (the composed output video).
type ArtifactStore interface {
	PutFile(ctx context.Context, key, filePath, contentType string) error
}

// EventPublisher emits job lifecycle events. May be nil.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event models.JobEvent) error
}

// JobResult is returned to the caller after a successful run.
type JobResult struct {
	VideoID    string
	OutputKey  string // composed video location in the artifact store
	FrameCount int
	Stats      models.DetectionStats
}

// Orchestrator sequences one job: workspace, extraction, detection,
// composition, artifact upload, persistence. Jobs run synchronously to
// completion; any stage failure aborts with nothing persisted.
type Orchestrator struct {
	cfg       config.PipelineConfig
	results   ResultStore
	artifacts ArtifactStore
	events    EventPublisher

	// Notify receives per-frame results while a job runs. Optional.
	Notify func(models.DetectionResult)
}

func NewOrchestrator(cfg config.PipelineConfig, results ResultStore, artifacts ArtifactStore, events EventPublisher) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		results:   results,
		artifacts: artifacts,
		events:    events,
	}
}

// RunJob processes one uploaded video end to end and returns the artifact
// location plus aggregate stats. The caller supplies the video ID so the job
// ledger, queue task, and stored results all share it. The temporary
// workspace is exclusive to this job and removed before returning.
func (o *Orchestrator) RunJob(ctx context.Context, videoID string, source io.Reader, fileName, modelPath string) (*JobResult, error) {
	log := slog.With("video_id", videoID, "file", fileName)

	workDir := filepath.Join(o.cfg.TempDir, "vod-"+videoID)
	framesDir := filepath.Join(workDir, "frames")
	annotatedDir := filepath.Join(workDir, "annotated")
	outputDir := filepath.Join(workDir, "output")

	for _, dir := range []string{framesDir, annotatedDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, o.fail(ctx, videoID, "save_source", err)
		}
	}
	defer os.RemoveAll(workDir)

	// Persist the uploaded source into the workspace.
	sourcePath := filepath.Join(workDir, filepath.Base(fileName))
	if err := writeSource(sourcePath, source); err != nil {
		return nil, o.fail(ctx, videoID, "save_source", err)
	}

	if dur, err := media.ProbeDuration(ctx, sourcePath); err == nil {
		log.Info("source video", "duration_sec", dur)
	}

	// Extract frames.
	start := time.Now()
	extractCtx, cancelExtract := o.stageContext(ctx, o.cfg.ExtractTimeout)
	frameCount, err := media.ExtractFrames(extractCtx, sourcePath, framesDir, o.cfg.SamplingFPS)
	cancelExtract()
	if err != nil {
		return nil, o.fail(ctx, videoID, "extract", err)
	}
	observability.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	observability.FramesExtracted.Add(float64(frameCount))
	log.Info("frames extracted", "count", frameCount, "fps", o.cfg.SamplingFPS)

	// Load the detector once for the whole job.
	detector, err := vision.NewDetector(modelPath, float32(o.cfg.DetectionThreshold), nil)
	if err != nil {
		return nil, o.fail(ctx, videoID, "load_model", err)
	}
	defer detector.Close()

	frameFiles, err := media.ListFrames(framesDir)
	if err != nil {
		return nil, o.fail(ctx, videoID, "extract", err)
	}

	// Detect on every frame, writing annotated copies for the composer.
	detectCtx, cancelDetect := o.stageContext(ctx, o.cfg.InferTimeout*time.Duration(frameCount))
	proc := &Processor{Workers: o.cfg.WorkerCount, Notify: o.Notify}
	results, err := proc.ProcessFrames(detectCtx, frameFiles, detector, videoID, annotatedDir)
	cancelDetect()
	if err != nil {
		return nil, o.fail(ctx, videoID, "detect", err)
	}

	// Compose the annotated video.
	start = time.Now()
	outputPath := filepath.Join(outputDir, videoID+"_annotated.mp4")
	composeCtx, cancelCompose := o.stageContext(ctx, o.cfg.ComposeTimeout)
	err = media.ComposeVideo(composeCtx, annotatedDir, outputPath, o.cfg.SamplingFPS)
	cancelCompose()
	if err != nil {
		return nil, o.fail(ctx, videoID, "compose", err)
	}
	observability.StageDuration.WithLabelValues("compose").Observe(time.Since(start).Seconds())

	// A cancelled job must not persist anything.
	if err := ctx.Err(); err != nil {
		return nil, o.fail(ctx, videoID, "store", err)
	}

	jobResult, err := o.persistOutputs(ctx, videoID, fileName, modelPath, outputPath, frameCount, results)
	if err != nil {
		return nil, err
	}
	stats := jobResult.Stats

	observability.JobsTotal.WithLabelValues(string(models.JobStatusCompleted)).Inc()
	o.publish(ctx, models.JobEvent{
		VideoID:    videoID,
		Status:     models.JobStatusCompleted,
		FrameCount: frameCount,
		OccurredAt: time.Now().UTC(),
	})

	log.Info("job completed",
		"frames", frameCount,
		"objects", stats.TotalObjects,
		"output_key", jobResult.OutputKey,
	)

	return jobResult, nil
}

// persistOutputs uploads the composed video and only then writes the job's
// results, stats, and metadata. Stats go last: their presence marks the job
// complete, so a crash mid-write never exposes stats without results.
func (o *Orchestrator) persistOutputs(ctx context.Context, videoID, fileName, modelPath, outputPath string, frameCount int, results []models.DetectionResult) (*JobResult, error) {
	outputKey := fmt.Sprintf("videos/%s/%s_annotated.mp4", videoID, videoID)
	if err := o.artifacts.PutFile(ctx, outputKey, outputPath, "video/mp4"); err != nil {
		return nil, o.fail(ctx, videoID, "upload", err)
	}

	start := time.Now()
	for _, r := range results {
		if err := o.results.PutResult(ctx, videoID, r); err != nil {
			return nil, o.fail(ctx, videoID, "store", err)
		}
	}
	stats := models.ComputeStats(results)
	if err := o.results.PutStats(ctx, videoID, stats); err != nil {
		return nil, o.fail(ctx, videoID, "store", err)
	}

	size, _ := fileSize(outputPath)
	meta := models.VideoMeta{
		VideoID:      videoID,
		OriginalName: fileName,
		ObjectKey:    outputKey,
		Size:         size,
		FrameCount:   frameCount,
		ModelUsed:    filepath.Base(modelPath),
		UploadedAt:   time.Now().UTC(),
	}
	if err := o.results.PutVideoMeta(ctx, meta); err != nil {
		return nil, o.fail(ctx, videoID, "store", err)
	}
	observability.StageDuration.WithLabelValues("store").Observe(time.Since(start).Seconds())

	return &JobResult{
		VideoID:    videoID,
		OutputKey:  outputKey,
		FrameCount: frameCount,
		Stats:      stats,
	}, nil
}

// fail wraps a stage error with job context, counts it, and emits the
// failure event. Nothing has been persisted for the job at this point.
func (o *Orchestrator) fail(ctx context.Context, videoID, stage string, err error) error {
	observability.JobsTotal.WithLabelValues(string(models.JobStatusFailed)).Inc()
	o.publish(ctx, models.JobEvent{
		VideoID:    videoID,
		Status:     models.JobStatusFailed,
		Error:      err.Error(),
		OccurredAt: time.Now().UTC(),
	})
	slog.Error("job failed", "video_id", videoID, "stage", stage, "error", err)
	return &StageError{VideoID: videoID, Stage: stage, Err: err}
}

func (o *Orchestrator) publish(ctx context.Context, event models.JobEvent) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishJobEvent(ctx, event); err != nil {
		slog.Warn("publish job event", "video_id", event.VideoID, "error", err)
	}
}

func (o *Orchestrator) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func writeSource(path string, source io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create source file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, source); err != nil {
		return fmt.Errorf("write source file: %w", err)
	}
	return nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
