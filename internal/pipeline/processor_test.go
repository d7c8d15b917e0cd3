package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/your-org/vod/internal/models"
)

// fakeDetector returns a fixed set of objects per call, optionally failing
// after a set number of calls. Random sleeps shuffle completion order.
type fakeDetector struct {
	objects   []models.DetectedObject
	failAfter int32 // fail on call number failAfter (1-based), 0 disables
	calls     int32
	jitter    time.Duration
}

func (d *fakeDetector) Detect(img image.Image) ([]models.DetectedObject, error) {
	n := atomic.AddInt32(&d.calls, 1)
	if d.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(d.jitter))))
	}
	if d.failAfter > 0 && n >= d.failAfter {
		return nil, fmt.Errorf("inference backend gone")
	}
	return d.objects, nil
}

func writeTestFrames(t *testing.T, dir string, count int) []string {
	t.Helper()
	files := make([]string, count)
	for i := 0; i < count; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 64, 48))
		for x := 0; x < 64; x++ {
			img.Set(x, 24, color.RGBA{uint8(i), 128, 0, 255})
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%05d.jpg", i+1))
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("create frame: %v", err)
		}
		if err := jpeg.Encode(f, img, nil); err != nil {
			t.Fatalf("encode frame: %v", err)
		}
		f.Close()
		files[i] = path
	}
	return files
}

func TestProcessFramesOrdering(t *testing.T) {
	framesDir := t.TempDir()
	annotatedDir := t.TempDir()
	files := writeTestFrames(t, framesDir, 20)

	det := &fakeDetector{
		objects: []models.DetectedObject{
			{Type: "car", Confidence: 0.9, BoundingBox: models.BoundingBox{X: 5, Y: 5, Width: 20, Height: 10}},
		},
		jitter: 3 * time.Millisecond,
	}

	p := &Processor{Workers: 4}
	results, err := p.ProcessFrames(context.Background(), files, det, "video-1", annotatedDir)
	if err != nil {
		t.Fatalf("ProcessFrames failed: %v", err)
	}

	if len(results) != len(files) {
		t.Fatalf("got %d results, want %d", len(results), len(files))
	}
	for i, r := range results {
		if r.FrameNumber != i {
			t.Errorf("results[%d].FrameNumber = %d, want %d", i, r.FrameNumber, i)
		}
		if r.VideoID != "video-1" {
			t.Errorf("results[%d].VideoID = %q", i, r.VideoID)
		}
		if len(r.Objects) != 1 || r.Objects[0].Type != "car" {
			t.Errorf("results[%d].Objects = %+v", i, r.Objects)
		}
	}

	// Every frame must have an annotated counterpart for the composer.
	for _, f := range files {
		annotated := filepath.Join(annotatedDir, filepath.Base(f))
		if _, err := os.Stat(annotated); err != nil {
			t.Errorf("missing annotated frame %s: %v", annotated, err)
		}
	}
}

func TestProcessFramesAbortsOnFailure(t *testing.T) {
	framesDir := t.TempDir()
	annotatedDir := t.TempDir()
	files := writeTestFrames(t, framesDir, 10)

	det := &fakeDetector{failAfter: 4, jitter: time.Millisecond}

	p := &Processor{Workers: 3}
	results, err := p.ProcessFrames(context.Background(), files, det, "video-2", annotatedDir)
	if err == nil {
		t.Fatal("expected error when a frame fails")
	}
	if results != nil {
		t.Errorf("expected nil results on failure, got %d", len(results))
	}
}

func TestProcessFramesNotify(t *testing.T) {
	framesDir := t.TempDir()
	annotatedDir := t.TempDir()
	files := writeTestFrames(t, framesDir, 8)

	var mu sync.Mutex
	seen := map[int]bool{}

	p := &Processor{
		Workers: 2,
		Notify: func(r models.DetectionResult) {
			mu.Lock()
			seen[r.FrameNumber] = true
			mu.Unlock()
		},
	}

	det := &fakeDetector{jitter: time.Millisecond}
	if _, err := p.ProcessFrames(context.Background(), files, det, "video-3", annotatedDir); err != nil {
		t.Fatalf("ProcessFrames failed: %v", err)
	}

	if len(seen) != len(files) {
		t.Errorf("Notify saw %d frames, want %d", len(seen), len(files))
	}
	for i := range files {
		if !seen[i] {
			t.Errorf("Notify never saw frame %d", i)
		}
	}
}

func TestProcessFramesCancelled(t *testing.T) {
	framesDir := t.TempDir()
	annotatedDir := t.TempDir()
	files := writeTestFrames(t, framesDir, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Processor{Workers: 2}
	det := &fakeDetector{}
	if _, err := p.ProcessFrames(ctx, files, det, "video-4", annotatedDir); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
