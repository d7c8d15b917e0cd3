package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/vod/internal/models"
	"github.com/your-org/vod/internal/observability"
	"github.com/your-org/vod/internal/vision"
)

// FrameDetector is the per-frame inference call. *vision.Detector satisfies
// it; tests substitute fakes.
type FrameDetector interface {
	Detect(img image.Image) ([]models.DetectedObject, error)
}

// Processor drives the detector across all extracted frames of one job,
// assembling ordered per-frame detection records.
type Processor struct {
	Workers int
	// Notify, when set, receives each DetectionResult as its frame finishes
	// (completion order, not frame order). Used for live streaming to the UI.
	Notify func(models.DetectionResult)
}

// ProcessFrames runs detection on every frame file, strictly assigning
// frameNumber from the input ordering. The annotated copy of each frame is
// written to annotatedDir under the frame's own file name, where the video
// composer expects it.
//
// Detection calls fan out across a bounded worker pool; in-flight decoded
// frames are bounded by the pool size, and results are reassembled in frame
// order. Any frame failure aborts the whole job: partial results would
// violate the gap-free frameNumber invariant.
func (p *Processor) ProcessFrames(ctx context.Context, frameFiles []string, det FrameDetector, videoID, annotatedDir string) ([]models.DetectionResult, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(frameFiles) {
		workers = len(frameFiles)
	}

	results := make([]models.DetectionResult, len(frameFiles))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		cancel()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				result, err := p.processOne(frameFiles[idx], idx, det, videoID, annotatedDir)
				if err != nil {
					fail(err)
					return
				}
				results[idx] = result
				if p.Notify != nil {
					p.Notify(result)
				}
			}
		}()
	}

	for idx := range frameFiles {
		select {
		case jobs <- idx:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := checkOrdering(results, videoID); err != nil {
		return nil, err
	}

	return results, nil
}

func (p *Processor) processOne(framePath string, frameNumber int, det FrameDetector, videoID, annotatedDir string) (models.DetectionResult, error) {
	var zero models.DetectionResult

	f, err := os.Open(framePath)
	if err != nil {
		return zero, &vision.InferenceError{Frame: filepath.Base(framePath), Err: err}
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return zero, &vision.InferenceError{Frame: filepath.Base(framePath), Err: fmt.Errorf("decode frame: %w", err)}
	}

	start := time.Now()
	objects, err := det.Detect(img)
	if err != nil {
		return zero, err
	}
	observability.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	observability.FramesProcessed.Inc()
	for _, obj := range objects {
		observability.ObjectsDetected.WithLabelValues(obj.Type).Inc()
	}

	annotated := vision.Annotate(img, objects)
	outPath := filepath.Join(annotatedDir, filepath.Base(framePath))
	if err := writeJPEG(outPath, annotated); err != nil {
		return zero, &vision.InferenceError{Frame: filepath.Base(framePath), Err: err}
	}

	slog.Debug("frame processed", "video_id", videoID, "frame", frameNumber, "objects", len(objects))

	return models.DetectionResult{
		ID:          uuid.New(),
		Timestamp:   time.Now().UTC(),
		VideoID:     videoID,
		FrameNumber: frameNumber,
		Objects:     objects,
	}, nil
}

// checkOrdering validates the gap-free frameNumber postcondition: every index
// 0..N-1 present exactly once, ascending.
func checkOrdering(results []models.DetectionResult, videoID string) error {
	for i, r := range results {
		if r.FrameNumber != i {
			return fmt.Errorf("job %s: frame ordering violated: position %d holds frame %d", videoID, i, r.FrameNumber)
		}
		if r.ID == uuid.Nil {
			return fmt.Errorf("job %s: frame %d was never processed", videoID, i)
		}
	}
	return nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create annotated frame: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encode annotated frame: %w", err)
	}
	return nil
}
