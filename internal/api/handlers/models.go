package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/vod/internal/registry"
	"github.com/your-org/vod/internal/storage"
	"github.com/your-org/vod/pkg/dto"
)

type ModelHandler struct {
	registry *registry.Registry
}

func NewModelHandler(reg *registry.Registry) *ModelHandler {
	return &ModelHandler{registry: reg}
}

// Upload registers a new ONNX model from a multipart upload.
func (h *ModelHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("model")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing model file"})
		return
	}
	defer file.Close()

	info, err := h.registry.Upload(c.Request.Context(), header.Filename, file, header.Size)
	if err != nil {
		if errors.Is(err, registry.ErrBadModelFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.ModelResponse{
		ID:           info.ID,
		OriginalName: info.OriginalName,
		Size:         info.Size,
		IsActive:     info.IsActive,
		UploadedAt:   info.UploadedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *ModelHandler) List(c *gin.Context) {
	infos, err := h.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.ModelListResponse{Models: make([]dto.ModelResponse, 0, len(infos))}
	for _, m := range infos {
		if m.IsActive {
			resp.Active = m.ID
		}
		resp.Models = append(resp.Models, dto.ModelResponse{
			ID:           m.ID,
			OriginalName: m.OriginalName,
			Size:         m.Size,
			IsActive:     m.IsActive,
			UploadedAt:   m.UploadedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, resp)
}

// Activate makes the given model the one used for new jobs.
func (h *ModelHandler) Activate(c *gin.Context) {
	err := h.registry.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "activated"})
}

// Delete removes a model. The active model cannot be deleted.
func (h *ModelHandler) Delete(c *gin.Context) {
	err := h.registry.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
		case errors.Is(err, registry.ErrModelActive):
			c.JSON(http.StatusConflict, gin.H{"error": "cannot delete the active model"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.Status(http.StatusNoContent)
}
