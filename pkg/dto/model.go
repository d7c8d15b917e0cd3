package dto

// ModelResponse is one registered detector model.
type ModelResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	IsActive     bool   `json:"is_active"`
	UploadedAt   string `json:"uploaded_at"`
}

type ModelListResponse struct {
	Models []ModelResponse `json:"models"`
	Active string          `json:"active,omitempty"`
}
