package dto

// VideoResponse is one entry in the processed video history.
type VideoResponse struct {
	VideoID      string `json:"video_id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	FrameCount   int    `json:"frame_count"`
	ModelUsed    string `json:"model_used"`
	UploadedAt   string `json:"uploaded_at"`
	VideoURL     string `json:"video_url"`
}

type VideoListResponse struct {
	Videos []VideoResponse `json:"videos"`
	Total  int             `json:"total"`
}
