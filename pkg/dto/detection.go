package dto

import "github.com/your-org/vod/internal/models"

// DetectionResponse is the full outcome of one processed video.
type DetectionResponse struct {
	VideoID  string                   `json:"video_id"`
	Status   string                   `json:"status"`
	VideoURL string                   `json:"video_url,omitempty"`
	Stats    *models.DetectionStats   `json:"stats,omitempty"`
	Results  []models.DetectionResult `json:"results,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// SubmitResponse acknowledges an asynchronous submission.
type SubmitResponse struct {
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
}

// WSEvent is a WebSocket message for real-time job progress.
type WSEvent struct {
	Type       string                  `json:"type"` // job_status, frame_result
	VideoID    string                  `json:"video_id"`
	Status     string                  `json:"status,omitempty"`
	FrameCount int                     `json:"frame_count,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Result     *models.DetectionResult `json:"result,omitempty"`
}
