package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/vod/internal/storage"
	"github.com/your-org/vod/pkg/dto"
)

type VideoHandler struct {
	store *storage.RedisStore
	minio *storage.MinIOStore
}

func NewVideoHandler(store *storage.RedisStore, minio *storage.MinIOStore) *VideoHandler {
	return &VideoHandler{store: store, minio: minio}
}

// List returns the processed video history, newest first.
func (h *VideoHandler) List(c *gin.Context) {
	videos, err := h.store.ListVideos(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.VideoResponse, 0, len(videos))
	for _, v := range videos {
		resp = append(resp, dto.VideoResponse{
			VideoID:      v.VideoID,
			OriginalName: v.OriginalName,
			Size:         v.Size,
			FrameCount:   v.FrameCount,
			ModelUsed:    v.ModelUsed,
			UploadedAt:   v.UploadedAt.Format("2006-01-02T15:04:05Z"),
			VideoURL:     videoURL(v.VideoID),
		})
	}

	c.JSON(http.StatusOK, dto.VideoListResponse{Videos: resp, Total: len(resp)})
}

// Stream serves the composed annotated video with Range support, so browser
// players can seek.
func (h *VideoHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	videoID := c.Param("id")

	meta, err := h.store.GetVideoMeta(ctx, videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	obj, info, err := h.minio.GetObjectReader(ctx, meta.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer obj.Close()

	c.Header("Content-Type", "video/mp4")
	http.ServeContent(c.Writer, c.Request, meta.OriginalName, info.LastModified, obj)
}
