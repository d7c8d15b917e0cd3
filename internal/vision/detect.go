package vision

import (
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/vod/internal/models"
)

// YOLO export layout: input [1,3,640,640], output [1, 4+numClasses, 8400].
const (
	inputName     = "images"
	outputName    = "output0"
	numClasses    = 80
	numCandidates = 8400
	iouThreshold  = 0.45
)

// Detector runs YOLO object detection using ONNX Runtime. The model is loaded
// once and the session reused for every frame of a job. Detect is safe for
// concurrent use; the single session serializes inference internally.
type Detector struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	threshold    float32
	inputW       int
	inputH       int
}

// NewDetector loads the YOLO ONNX model at modelPath.
// threshold is the decode score floor; stored confidences are raw scores.
// opts may be nil (ORT defaults) or a pre-configured *ort.SessionOptions.
func NewDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*Detector, error) {
	inputW, inputH := 640, 640

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("create input tensor: %w", err)}
	}

	outputShape := ort.NewShape(1, 4+numClasses, numCandidates)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, &InferenceError{Err: fmt.Errorf("create output tensor: %w", err)}
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, &InferenceError{Err: fmt.Errorf("load model %s: %w", modelPath, err)}
	}

	return &Detector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		threshold:    threshold,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Detect runs object detection on one frame. Returned boxes are in absolute
// pixel units of img with top-left origin, in decode order.
func (d *Detector) Detect(img image.Image) ([]models.DetectedObject, error) {
	lb := letterbox(img, d.inputW, d.inputH)

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.inputTensor.GetData(), lb.data)

	if err := d.session.Run(); err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("run detection: %w", err)}
	}

	raw := d.decode(d.outputTensor.GetData(), lb, img.Bounds().Dx(), img.Bounds().Dy())
	raw = nms(raw, iouThreshold)

	objects := make([]models.DetectedObject, 0, len(raw))
	for _, c := range raw {
		objects = append(objects, models.DetectedObject{
			Type:       className(c.class),
			Confidence: float64(c.score),
			BoundingBox: models.BoundingBox{
				X:      float64(c.x1),
				Y:      float64(c.y1),
				Width:  float64(c.x2 - c.x1),
				Height: float64(c.y2 - c.y1),
			},
		})
	}

	return objects, nil
}

// candidate is one decoded box prior to conversion into a DetectedObject.
type candidate struct {
	x1, y1, x2, y2 float32
	score          float32
	class          int
}

// decode converts the raw [4+numClasses, numCandidates] output into pixel
// boxes of the original image, undoing the letterbox transform.
func (d *Detector) decode(data []float32, lb letterboxed, origW, origH int) []candidate {
	var out []candidate

	for i := 0; i < numCandidates; i++ {
		bestClass := 0
		bestScore := float32(0)
		for c := 0; c < numClasses; c++ {
			score := data[(4+c)*numCandidates+i]
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestScore < d.threshold {
			continue
		}

		// Box center/size in letterboxed input space.
		cx := data[0*numCandidates+i]
		cy := data[1*numCandidates+i]
		w := data[2*numCandidates+i]
		h := data[3*numCandidates+i]

		x1 := (cx - w/2 - lb.padX) / lb.scale
		y1 := (cy - h/2 - lb.padY) / lb.scale
		x2 := (cx + w/2 - lb.padX) / lb.scale
		y2 := (cy + h/2 - lb.padY) / lb.scale

		x1 = clampF(x1, 0, float32(origW))
		y1 = clampF(y1, 0, float32(origH))
		x2 = clampF(x2, 0, float32(origW))
		y2 = clampF(y2, 0, float32(origH))

		if x2 <= x1 || y2 <= y1 {
			continue
		}

		out = append(out, candidate{
			x1: x1, y1: y1, x2: x2, y2: y2,
			score: bestScore,
			class: bestClass,
		})
	}

	return out
}

// InputSize returns the model's expected input dimensions.
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}

// nms performs class-aware Non-Maximum Suppression.
func nms(cands []candidate, iouThreshold float32) []candidate {
	if len(cands) == 0 {
		return cands
	}

	sort.Slice(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	keep := make([]bool, len(cands))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(cands); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			if !keep[j] || cands[i].class != cands[j].class {
				continue
			}
			if iou(cands[i], cands[j]) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []candidate
	for i, c := range cands {
		if keep[i] {
			result = append(result, c)
		}
	}
	return result
}

func iou(a, b candidate) float32 {
	x1 := float32(math.Max(float64(a.x1), float64(b.x1)))
	y1 := float32(math.Max(float64(a.y1), float64(b.y1)))
	x2 := float32(math.Min(float64(a.x2), float64(b.x2)))
	y2 := float32(math.Min(float64(a.y2), float64(b.y2)))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a.x2 - a.x1) * (a.y2 - a.y1)
	areaB := (b.x2 - b.x1) * (b.y2 - b.y1)
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
