package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/vod/internal/models"
	"github.com/your-org/vod/internal/storage"
)

// ErrModelActive is returned when deleting the currently active model.
var ErrModelActive = fmt.Errorf("model is active")

// ErrBadModelFile is returned for uploads that are not ONNX weight files.
var ErrBadModelFile = fmt.Errorf("model file must have .onnx extension")

// Registry manages detector model weights. Metadata lives in Redis, the
// weight files in object storage, with a local disk cache for inference.
type Registry struct {
	store        *storage.RedisStore
	artifacts    *storage.MinIOStore
	cacheDir     string
	defaultModel string // bundled weights used before any upload

	mu sync.Mutex // guards cache downloads
}

func New(store *storage.RedisStore, artifacts *storage.MinIOStore, cacheDir, defaultModel string) *Registry {
	return &Registry{
		store:        store,
		artifacts:    artifacts,
		cacheDir:     cacheDir,
		defaultModel: defaultModel,
	}
}

// Upload stores a new model. The first model uploaded becomes active
// automatically.
func (r *Registry) Upload(ctx context.Context, originalName string, src io.Reader, size int64) (*models.ModelInfo, error) {
	if !strings.HasSuffix(strings.ToLower(originalName), ".onnx") {
		return nil, ErrBadModelFile
	}

	id := uuid.NewString()
	filename := id + ".onnx"
	objectKey := "models/" + filename

	if err := r.artifacts.PutStream(ctx, objectKey, src, size, "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("upload model weights: %w", err)
	}

	info := models.ModelInfo{
		ID:           id,
		Filename:     filename,
		OriginalName: originalName,
		ObjectKey:    objectKey,
		Size:         size,
		UploadedAt:   time.Now().UTC(),
	}
	if err := r.store.PutModel(ctx, info); err != nil {
		return nil, err
	}

	if _, err := r.store.GetActiveModel(ctx); err == storage.ErrNotFound {
		if err := r.store.SetActiveModel(ctx, id); err != nil {
			return nil, err
		}
		info.IsActive = true
	}

	slog.Info("model uploaded", "model_id", id, "name", originalName, "size", size)
	return &info, nil
}

// List returns all registered models with the active one flagged.
func (r *Registry) List(ctx context.Context) ([]models.ModelInfo, error) {
	infos, err := r.store.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	activeID, err := r.store.GetActiveModel(ctx)
	if err != nil && err != storage.ErrNotFound {
		return nil, err
	}
	for i := range infos {
		infos[i].IsActive = infos[i].ID == activeID
	}
	return infos, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*models.ModelInfo, error) {
	info, err := r.store.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	activeID, err := r.store.GetActiveModel(ctx)
	if err != nil && err != storage.ErrNotFound {
		return nil, err
	}
	info.IsActive = info.ID == activeID
	return info, nil
}

// Activate switches the active model. The model must exist.
func (r *Registry) Activate(ctx context.Context, id string) error {
	if _, err := r.store.GetModel(ctx, id); err != nil {
		return err
	}
	return r.store.SetActiveModel(ctx, id)
}

// Delete removes a model's metadata, weights, and cache entry. The active
// model cannot be deleted; activate another one first.
func (r *Registry) Delete(ctx context.Context, id string) error {
	info, err := r.store.GetModel(ctx, id)
	if err != nil {
		return err
	}

	activeID, err := r.store.GetActiveModel(ctx)
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	if id == activeID {
		return ErrModelActive
	}

	if err := r.artifacts.DeleteObject(ctx, info.ObjectKey); err != nil {
		slog.Warn("delete model weights", "model_id", id, "error", err)
	}
	os.Remove(filepath.Join(r.cacheDir, info.Filename))

	return r.store.DeleteModel(ctx, id)
}

// ResolveActive returns a local path to the active model's weights,
// downloading them into the cache directory if needed. Before any model has
// been uploaded it falls back to the bundled default weights on disk.
func (r *Registry) ResolveActive(ctx context.Context) (string, error) {
	id, err := r.store.GetActiveModel(ctx)
	if err == storage.ErrNotFound {
		fallback := filepath.Join(r.cacheDir, r.defaultModel)
		if _, statErr := os.Stat(fallback); statErr == nil {
			return fallback, nil
		}
		return "", err
	}
	if err != nil {
		return "", err
	}
	return r.Resolve(ctx, id)
}

// Resolve returns a local path to the given model's weights.
func (r *Registry) Resolve(ctx context.Context, id string) (string, error) {
	info, err := r.store.GetModel(ctx, id)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	localPath := filepath.Join(r.cacheDir, info.Filename)
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create model cache dir: %w", err)
	}
	if err := r.artifacts.FGetObject(ctx, info.ObjectKey, localPath); err != nil {
		return "", err
	}

	slog.Info("model weights cached", "model_id", id, "path", localPath)
	return localPath, nil
}
