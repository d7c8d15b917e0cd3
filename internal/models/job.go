package models

import (
	"time"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one end-to-end processing run for a single uploaded video.
// Created at submission, never mutated afterwards except for completion
// metadata.
type Job struct {
	ID             string     `json:"id" db:"id"`
	SourceFileName string     `json:"source_file_name" db:"source_file_name"`
	ModelID        string     `json:"model_id" db:"model_id"`
	Status         JobStatus  `json:"status" db:"status"`
	FrameCount     int        `json:"frame_count" db:"frame_count"`
	OutputKey      string     `json:"output_key" db:"output_key"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// JobTask is the message published to NATS for asynchronous processing.
type JobTask struct {
	VideoID     string    `json:"video_id"`
	SourceKey   string    `json:"source_key"` // uploaded source video in object storage
	FileName    string    `json:"file_name"`
	ModelID     string    `json:"model_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobEvent is published when a job finishes, and broadcast to WebSocket
// subscribers.
type JobEvent struct {
	VideoID    string    `json:"video_id"`
	Status     JobStatus `json:"status"`
	FrameCount int       `json:"frame_count"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
