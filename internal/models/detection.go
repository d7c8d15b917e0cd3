package models

import (
	"time"

	"github.com/google/uuid"
)

// BoundingBox is an axis-aligned box in absolute pixel units of the frame
// it was detected in, top-left origin.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectedObject is one detection within a frame. Confidence is the model's
// raw score; the pipeline performs no thresholding of its own.
type DetectedObject struct {
	Type        string      `json:"type"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// vehicleTypes are the classes counted as vehicles in DetectionStats.
var vehicleTypes = map[string]bool{
	"car":        true,
	"truck":      true,
	"bus":        true,
	"motorcycle": true,
	"bicycle":    true,
}

// IsVehicle reports whether the object's class counts toward VehicleCount.
func (o DetectedObject) IsVehicle() bool {
	return vehicleTypes[o.Type]
}

// DetectionResult holds all detections for one frame of a job.
// Immutable once written to the result store.
type DetectionResult struct {
	ID          uuid.UUID        `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	VideoID     string           `json:"videoId"`
	FrameNumber int              `json:"frameNumber"`
	Objects     []DetectedObject `json:"objects"`
}

// DetectionStats is the per-job aggregate, derived deterministically from the
// job's full result set.
type DetectionStats struct {
	TotalFrames  int       `json:"totalFrames"`
	TotalObjects int       `json:"totalObjects"`
	VehicleCount int       `json:"vehicleCount"`
	PersonCount  int       `json:"personCount"`
	OtherCount   int       `json:"otherCount"`
	ProcessedAt  time.Time `json:"processedAt"`
}

// ComputeStats aggregates a job's results into DetectionStats.
// Recomputing over the stored results must always yield the same values.
func ComputeStats(results []DetectionResult) DetectionStats {
	stats := DetectionStats{
		TotalFrames: len(results),
		ProcessedAt: time.Now().UTC(),
	}
	for _, r := range results {
		stats.TotalObjects += len(r.Objects)
		for _, obj := range r.Objects {
			switch {
			case obj.IsVehicle():
				stats.VehicleCount++
			case obj.Type == "person":
				stats.PersonCount++
			default:
				stats.OtherCount++
			}
		}
	}
	return stats
}

// VideoMeta describes one processed video, keyed by its job id.
type VideoMeta struct {
	VideoID      string    `json:"video_id"`
	OriginalName string    `json:"original_name"`
	ObjectKey    string    `json:"object_key"` // composed video location in object storage
	Size         int64     `json:"size"`
	FrameCount   int       `json:"frame_count"`
	ModelUsed    string    `json:"model_used"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ModelInfo is the registry metadata for one uploaded detector model.
type ModelInfo struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	ObjectKey    string    `json:"object_key"`
	Size         int64     `json:"size"`
	IsActive     bool      `json:"is_active"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
