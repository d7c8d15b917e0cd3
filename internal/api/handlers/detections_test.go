package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/your-org/vod/internal/config"
	"github.com/your-org/vod/internal/models"
	"github.com/your-org/vod/internal/pipeline"
	"github.com/your-org/vod/internal/registry"
	"github.com/your-org/vod/internal/storage"
	"github.com/your-org/vod/pkg/dto"
)

// fakeLedger records job bookkeeping without a database.
type fakeLedger struct {
	failedMsg string
	completed bool
}

func (l *fakeLedger) CreateJob(ctx context.Context, job *models.Job) error { return nil }
func (l *fakeLedger) MarkProcessing(ctx context.Context, id string) error  { return nil }

func (l *fakeLedger) MarkCompleted(ctx context.Context, id string, frameCount int, outputKey string) error {
	l.completed = true
	return nil
}

func (l *fakeLedger) MarkFailed(ctx context.Context, id, errMsg string) error {
	l.failedMsg = errMsg
	return nil
}

func (l *fakeLedger) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return nil, storage.ErrNotFound
}

func (l *fakeLedger) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	return nil, nil
}

func (l *fakeLedger) DeleteJob(ctx context.Context, id string) error { return nil }

type failingRunner struct{ err error }

func (r *failingRunner) RunJob(ctx context.Context, videoID string, source io.Reader, fileName, modelPath string) (*pipeline.JobResult, error) {
	return nil, r.err
}

func newSubmitRouter(t *testing.T, ledger JobLedger, runner JobRunner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	store, err := storage.NewRedisStore(config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// Bundled default weights on disk keep model resolution off object
	// storage.
	modelsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(modelsDir, "yolo11n.onnx"), []byte("weights"), 0o644); err != nil {
		t.Fatalf("write default model: %v", err)
	}
	reg := registry.New(store, nil, modelsDir, "yolo11n.onnx")

	h := NewDetectionHandler(ledger, store, nil, reg, nil, runner)
	r := gin.New()
	r.POST("/v1/detections", h.Submit)
	return r
}

func multipartVideo(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("video", "clip.mp4")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("not a real video")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	w.Close()
	return body, w.FormDataContentType()
}

func TestSubmitFailureHidesInternalError(t *testing.T) {
	ledger := &fakeLedger{}
	runner := &failingRunner{err: &pipeline.StageError{
		VideoID: "x",
		Stage:   "extract",
		Err:     errors.New("ffmpeg: exit status 1"),
	}}
	r := newSubmitRouter(t, ledger, runner)

	body, contentType := multipartVideo(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/detections", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}

	var resp dto.DetectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(models.JobStatusFailed) {
		t.Errorf("Status = %q, want failed", resp.Status)
	}
	if resp.Error != "processing failed" {
		t.Errorf("Error = %q, want generic message", resp.Error)
	}
	if strings.Contains(rec.Body.String(), "ffmpeg") {
		t.Errorf("response leaks internal detail: %s", rec.Body.String())
	}

	// The ledger keeps the full stage error for operators.
	if !strings.Contains(ledger.failedMsg, "ffmpeg") {
		t.Errorf("ledger error = %q, want stage detail", ledger.failedMsg)
	}
	if ledger.completed {
		t.Error("failed job marked completed")
	}
}

func TestSubmitMissingFile(t *testing.T) {
	r := newSubmitRouter(t, &fakeLedger{}, &failingRunner{err: errors.New("unreachable")})

	req := httptest.NewRequest(http.MethodPost, "/v1/detections", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
