package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/your-org/vod/internal/config"
	"github.com/your-org/vod/internal/media"
	"github.com/your-org/vod/internal/models"
)

// recordingStores implements both the result and artifact store interfaces
// and logs every call in order, so tests can assert what was written and in
// what sequence.
type recordingStores struct {
	mu        sync.Mutex
	ops       []string
	uploadErr error
	statsErr  error
}

func (s *recordingStores) record(op string) {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
}

func (s *recordingStores) PutFile(ctx context.Context, key, filePath, contentType string) error {
	s.record("upload")
	return s.uploadErr
}

func (s *recordingStores) PutResult(ctx context.Context, videoID string, result models.DetectionResult) error {
	s.record("result")
	return nil
}

func (s *recordingStores) PutStats(ctx context.Context, videoID string, stats models.DetectionStats) error {
	s.record("stats")
	return s.statsErr
}

func (s *recordingStores) PutVideoMeta(ctx context.Context, meta models.VideoMeta) error {
	s.record("meta")
	return nil
}

func TestRunJobExtractionFailurePersistsNothing(t *testing.T) {
	cfg := config.PipelineConfig{
		TempDir:        t.TempDir(),
		SamplingFPS:    5,
		WorkerCount:    2,
		ExtractTimeout: 30 * time.Second,
		InferTimeout:   time.Second,
		ComposeTimeout: 30 * time.Second,
	}
	stores := &recordingStores{}
	o := NewOrchestrator(cfg, stores, stores, nil)

	src := bytes.NewReader([]byte("definitely not a video container"))
	_, err := o.RunJob(context.Background(), "vid-garbage", src, "broken.mp4", "model.onnx")
	if err == nil {
		t.Fatal("expected error for a non-video source")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error %v is not a StageError", err)
	}
	if stageErr.Stage != "extract" {
		t.Errorf("failed stage = %q, want extract", stageErr.Stage)
	}
	var extractErr *media.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Errorf("error %v does not unwrap to ExtractionError", err)
	}

	if len(stores.ops) != 0 {
		t.Errorf("stores were written to on a failed job: %v", stores.ops)
	}

	// The workspace must be gone even on failure.
	if _, err := os.Stat(filepath.Join(cfg.TempDir, "vod-vid-garbage")); !os.IsNotExist(err) {
		t.Errorf("workspace not cleaned up: %v", err)
	}
}

func TestPersistOutputsUploadFailureWritesNothing(t *testing.T) {
	stores := &recordingStores{uploadErr: errors.New("bucket unavailable")}
	o := NewOrchestrator(config.PipelineConfig{}, stores, stores, nil)

	results := []models.DetectionResult{
		{VideoID: "vid-up", FrameNumber: 0},
		{VideoID: "vid-up", FrameNumber: 1},
	}
	outputPath := filepath.Join(t.TempDir(), "vid-up_annotated.mp4")

	_, err := o.persistOutputs(context.Background(), "vid-up", "clip.mp4", "model.onnx", outputPath, 2, results)
	if err == nil {
		t.Fatal("expected error when upload fails")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "upload" {
		t.Fatalf("error = %v, want upload StageError", err)
	}

	for _, op := range stores.ops {
		if op != "upload" {
			t.Errorf("unexpected write %q after failed upload", op)
		}
	}
}

func TestPersistOutputsWriteOrder(t *testing.T) {
	stores := &recordingStores{}
	o := NewOrchestrator(config.PipelineConfig{}, stores, stores, nil)

	outputPath := filepath.Join(t.TempDir(), "vid-ok_annotated.mp4")
	if err := os.WriteFile(outputPath, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write output file: %v", err)
	}

	results := []models.DetectionResult{
		{VideoID: "vid-ok", FrameNumber: 0, Objects: []models.DetectedObject{{Type: "car", Confidence: 0.9}}},
		{VideoID: "vid-ok", FrameNumber: 1},
		{VideoID: "vid-ok", FrameNumber: 2, Objects: []models.DetectedObject{{Type: "person", Confidence: 0.8}}},
	}

	jobResult, err := o.persistOutputs(context.Background(), "vid-ok", "clip.mp4", "model.onnx", outputPath, 3, results)
	if err != nil {
		t.Fatalf("persistOutputs failed: %v", err)
	}

	want := []string{"upload", "result", "result", "result", "stats", "meta"}
	if len(stores.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", stores.ops, want)
	}
	for i, op := range want {
		if stores.ops[i] != op {
			t.Errorf("ops[%d] = %q, want %q", i, stores.ops[i], op)
		}
	}

	if jobResult.OutputKey != "videos/vid-ok/vid-ok_annotated.mp4" {
		t.Errorf("OutputKey = %q", jobResult.OutputKey)
	}
	if jobResult.FrameCount != 3 {
		t.Errorf("FrameCount = %d, want 3", jobResult.FrameCount)
	}
	if jobResult.Stats.TotalFrames != 3 || jobResult.Stats.TotalObjects != 2 {
		t.Errorf("Stats = %+v", jobResult.Stats)
	}
}

func TestPersistOutputsStatsFailureSkipsMeta(t *testing.T) {
	stores := &recordingStores{statsErr: errors.New("redis down")}
	o := NewOrchestrator(config.PipelineConfig{}, stores, stores, nil)

	outputPath := filepath.Join(t.TempDir(), "vid-st_annotated.mp4")
	results := []models.DetectionResult{{VideoID: "vid-st", FrameNumber: 0}}

	_, err := o.persistOutputs(context.Background(), "vid-st", "clip.mp4", "model.onnx", outputPath, 1, results)
	if err == nil {
		t.Fatal("expected error when stats write fails")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "store" {
		t.Fatalf("error = %v, want store StageError", err)
	}

	for _, op := range stores.ops {
		if op == "meta" {
			t.Error("metadata written after stats failure")
		}
	}
}
