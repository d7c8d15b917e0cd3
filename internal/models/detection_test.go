package models

import (
	"testing"
	"time"
)

func TestIsVehicle(t *testing.T) {
	cases := []struct {
		class string
		want  bool
	}{
		{"car", true},
		{"truck", true},
		{"bus", true},
		{"motorcycle", true},
		{"bicycle", true},
		{"person", false},
		{"dog", false},
		{"traffic light", false},
	}
	for _, tc := range cases {
		obj := DetectedObject{Type: tc.class}
		if got := obj.IsVehicle(); got != tc.want {
			t.Errorf("IsVehicle(%q) = %v, want %v", tc.class, got, tc.want)
		}
	}
}

func TestComputeStats(t *testing.T) {
	t.Run("MixedFrame", func(t *testing.T) {
		results := []DetectionResult{
			{
				FrameNumber: 0,
				Objects: []DetectedObject{
					{Type: "car", Confidence: 0.9},
					{Type: "person", Confidence: 0.8},
				},
			},
		}

		stats := ComputeStats(results)
		if stats.TotalFrames != 1 {
			t.Errorf("TotalFrames = %d, want 1", stats.TotalFrames)
		}
		if stats.TotalObjects != 2 {
			t.Errorf("TotalObjects = %d, want 2", stats.TotalObjects)
		}
		if stats.VehicleCount != 1 {
			t.Errorf("VehicleCount = %d, want 1", stats.VehicleCount)
		}
		if stats.PersonCount != 1 {
			t.Errorf("PersonCount = %d, want 1", stats.PersonCount)
		}
		if stats.OtherCount != 0 {
			t.Errorf("OtherCount = %d, want 0", stats.OtherCount)
		}
	})

	t.Run("CountsFramesWithoutObjects", func(t *testing.T) {
		results := make([]DetectionResult, 30)
		for i := range results {
			results[i] = DetectionResult{FrameNumber: i}
		}
		results[5].Objects = []DetectedObject{{Type: "dog"}}

		stats := ComputeStats(results)
		if stats.TotalFrames != 30 {
			t.Errorf("TotalFrames = %d, want 30", stats.TotalFrames)
		}
		if stats.TotalObjects != 1 {
			t.Errorf("TotalObjects = %d, want 1", stats.TotalObjects)
		}
		if stats.OtherCount != 1 {
			t.Errorf("OtherCount = %d, want 1", stats.OtherCount)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		stats := ComputeStats(nil)
		if stats.TotalFrames != 0 || stats.TotalObjects != 0 {
			t.Errorf("empty stats = %+v, want zeros", stats)
		}
		if stats.ProcessedAt.IsZero() {
			t.Error("ProcessedAt should be set")
		}
		if time.Since(stats.ProcessedAt) > time.Minute {
			t.Errorf("ProcessedAt too old: %v", stats.ProcessedAt)
		}
	})
}
