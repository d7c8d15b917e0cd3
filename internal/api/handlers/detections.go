package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/vod/internal/models"
	"github.com/your-org/vod/internal/pipeline"
	"github.com/your-org/vod/internal/queue"
	"github.com/your-org/vod/internal/registry"
	"github.com/your-org/vod/internal/storage"
	"github.com/your-org/vod/pkg/dto"
)

const maxUploadSize = 500 << 20 // 500MB

// JobLedger is the job bookkeeping surface the detection handlers use.
// Satisfied by storage.PostgresStore.
type JobLedger interface {
	CreateJob(ctx context.Context, job *models.Job) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, frameCount int, outputKey string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]models.Job, error)
	DeleteJob(ctx context.Context, id string) error
}

// JobRunner executes one detection job to completion. Satisfied by
// pipeline.Orchestrator.
type JobRunner interface {
	RunJob(ctx context.Context, videoID string, source io.Reader, fileName, modelPath string) (*pipeline.JobResult, error)
}

type DetectionHandler struct {
	ledger       JobLedger
	store        *storage.RedisStore
	minio        *storage.MinIOStore
	registry     *registry.Registry
	producer     *queue.Producer
	orchestrator JobRunner
}

func NewDetectionHandler(ledger JobLedger, store *storage.RedisStore, minio *storage.MinIOStore, reg *registry.Registry, producer *queue.Producer, orch JobRunner) *DetectionHandler {
	return &DetectionHandler{
		ledger:       ledger,
		store:        store,
		minio:        minio,
		registry:     reg,
		producer:     producer,
		orchestrator: orch,
	}
}

// resolveModel maps an optional model_id form value to a local weights path.
func (h *DetectionHandler) resolveModel(c *gin.Context) (string, string, error) {
	ctx := c.Request.Context()
	if id := c.PostForm("model_id"); id != "" {
		path, err := h.registry.Resolve(ctx, id)
		return path, id, err
	}
	path, err := h.registry.ResolveActive(ctx)
	return path, "", err
}

// Submit processes an uploaded video synchronously and returns the complete
// detection results once the job finishes.
func (h *DetectionHandler) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing video file"})
		return
	}
	defer file.Close()

	modelPath, modelID, err := h.resolveModel(c)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no detection model available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	videoID := uuid.NewString()

	job := &models.Job{ID: videoID, SourceFileName: header.Filename, ModelID: modelID}
	if err := h.ledger.CreateJob(ctx, job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.ledger.MarkProcessing(ctx, videoID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.orchestrator.RunJob(ctx, videoID, file, header.Filename, modelPath)
	if err != nil {
		// The typed stage error goes to the log and the ledger; callers only
		// see that processing failed.
		_ = h.ledger.MarkFailed(ctx, videoID, err.Error())
		c.JSON(http.StatusUnprocessableEntity, dto.DetectionResponse{
			VideoID: videoID,
			Status:  string(models.JobStatusFailed),
			Error:   "processing failed",
		})
		return
	}
	if err := h.ledger.MarkCompleted(ctx, videoID, result.FrameCount, result.OutputKey); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results, err := h.store.ListResults(ctx, videoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.DetectionResponse{
		VideoID:  videoID,
		Status:   string(models.JobStatusCompleted),
		VideoURL: videoURL(videoID),
		Stats:    &result.Stats,
		Results:  results,
	})
}

// SubmitAsync stores the upload and enqueues a worker task, returning 202
// immediately. Progress is observable over the WebSocket feed or by polling.
func (h *DetectionHandler) SubmitAsync(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing video file"})
		return
	}
	defer file.Close()

	modelID := c.PostForm("model_id")
	if modelID != "" {
		if _, err := h.registry.Get(c.Request.Context(), modelID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model_id"})
			return
		}
	}

	ctx := c.Request.Context()
	videoID := uuid.NewString()
	sourceKey := fmt.Sprintf("uploads/%s/%s", videoID, header.Filename)

	if err := h.minio.PutStream(ctx, sourceKey, file, header.Size, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	job := &models.Job{ID: videoID, SourceFileName: header.Filename, ModelID: modelID}
	if err := h.ledger.CreateJob(ctx, job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.JobTask{
		VideoID:     videoID,
		SourceKey:   sourceKey,
		FileName:    header.Filename,
		ModelID:     modelID,
		SubmittedAt: time.Now().UTC(),
	}
	if err := h.producer.PublishJob(ctx, task); err != nil {
		_ = h.ledger.MarkFailed(ctx, videoID, "enqueue failed: "+err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitResponse{
		VideoID: videoID,
		Status:  string(models.JobStatusQueued),
	})
}

// Get returns one job's status and, when completed, its results and stats.
func (h *DetectionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	videoID := c.Param("id")

	job, err := h.ledger.GetJob(ctx, videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "detection job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.DetectionResponse{
		VideoID: job.ID,
		Status:  string(job.Status),
		Error:   job.ErrorMessage,
	}

	if job.Status == models.JobStatusCompleted {
		stats, err := h.store.GetStats(ctx, videoID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		results, err := h.store.ListResults(ctx, videoID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp.VideoURL = videoURL(videoID)
		resp.Stats = stats
		resp.Results = results
	}

	c.JSON(http.StatusOK, resp)
}

// List returns recent jobs, newest first.
func (h *DetectionHandler) List(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	jobs, err := h.ledger.ListJobs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// Delete removes a job and everything stored for it: results, stats,
// metadata, and the video artifacts. Deleting an unknown job succeeds.
func (h *DetectionHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	videoID := c.Param("id")

	if err := h.store.DeleteVideo(ctx, videoID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for _, prefix := range []string{"videos/" + videoID + "/", "uploads/" + videoID + "/"} {
		keys, err := h.minio.ListObjects(ctx, prefix)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(keys) > 0 {
			if err := h.minio.DeleteObjects(ctx, keys); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
	}

	if err := h.ledger.DeleteJob(ctx, videoID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func videoURL(videoID string) string {
	return "/v1/videos/" + videoID
}
