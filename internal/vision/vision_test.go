package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/your-org/vod/internal/models"
)

func TestLetterboxGeometry(t *testing.T) {
	t.Run("Wide", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
		lb := letterbox(img, 640, 640)

		if lb.scale != 0.5 {
			t.Errorf("scale = %v, want 0.5", lb.scale)
		}
		if lb.padX != 0 {
			t.Errorf("padX = %v, want 0", lb.padX)
		}
		if lb.padY != 140 {
			t.Errorf("padY = %v, want 140", lb.padY)
		}
		if len(lb.data) != 3*640*640 {
			t.Errorf("data length = %d, want %d", len(lb.data), 3*640*640)
		}
	})

	t.Run("Tall", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 360, 640))
		lb := letterbox(img, 640, 640)

		if lb.scale != 1.0 {
			t.Errorf("scale = %v, want 1.0", lb.scale)
		}
		if lb.padX != 140 {
			t.Errorf("padX = %v, want 140", lb.padX)
		}
		if lb.padY != 0 {
			t.Errorf("padY = %v, want 0", lb.padY)
		}
	})

	t.Run("PadPixelsAreGray", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
		lb := letterbox(img, 640, 640)

		// Top rows lie entirely in the padding band.
		want := float32(114) / 255.0
		for _, c := range []int{0, 1, 2} {
			got := lb.data[c*640*640]
			if got != want {
				t.Errorf("channel %d pad pixel = %v, want %v", c, got, want)
			}
		}
	})

	t.Run("ValuesNormalized", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 32, 32))
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
		lb := letterbox(img, 640, 640)
		for i, v := range lb.data {
			if v < 0 || v > 1 {
				t.Fatalf("data[%d] = %v out of [0,1]", i, v)
			}
		}
	})
}

func TestIOU(t *testing.T) {
	a := candidate{x1: 0, y1: 0, x2: 10, y2: 10}

	t.Run("Identical", func(t *testing.T) {
		if got := iou(a, a); got != 1.0 {
			t.Errorf("iou = %v, want 1.0", got)
		}
	})

	t.Run("Disjoint", func(t *testing.T) {
		b := candidate{x1: 20, y1: 20, x2: 30, y2: 30}
		if got := iou(a, b); got != 0 {
			t.Errorf("iou = %v, want 0", got)
		}
	})

	t.Run("HalfOverlap", func(t *testing.T) {
		b := candidate{x1: 0, y1: 5, x2: 10, y2: 15}
		// intersection 50, union 150
		got := iou(a, b)
		want := float32(50) / 150
		if got < want-1e-6 || got > want+1e-6 {
			t.Errorf("iou = %v, want %v", got, want)
		}
	})
}

func TestNMS(t *testing.T) {
	t.Run("SuppressesSameClass", func(t *testing.T) {
		cands := []candidate{
			{x1: 0, y1: 0, x2: 10, y2: 10, score: 0.9, class: 2},
			{x1: 1, y1: 1, x2: 11, y2: 11, score: 0.7, class: 2},
		}
		kept := nms(cands, 0.45)
		if len(kept) != 1 {
			t.Fatalf("kept %d candidates, want 1", len(kept))
		}
		if kept[0].score != 0.9 {
			t.Errorf("kept score %v, want the higher 0.9", kept[0].score)
		}
	})

	t.Run("KeepsDifferentClasses", func(t *testing.T) {
		cands := []candidate{
			{x1: 0, y1: 0, x2: 10, y2: 10, score: 0.9, class: 2},
			{x1: 1, y1: 1, x2: 11, y2: 11, score: 0.7, class: 0},
		}
		kept := nms(cands, 0.45)
		if len(kept) != 2 {
			t.Errorf("kept %d candidates, want 2", len(kept))
		}
	})

	t.Run("KeepsLowOverlap", func(t *testing.T) {
		cands := []candidate{
			{x1: 0, y1: 0, x2: 10, y2: 10, score: 0.9, class: 2},
			{x1: 8, y1: 8, x2: 18, y2: 18, score: 0.7, class: 2},
		}
		kept := nms(cands, 0.45)
		if len(kept) != 2 {
			t.Errorf("kept %d candidates, want 2", len(kept))
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if kept := nms(nil, 0.45); len(kept) != 0 {
			t.Errorf("kept %d candidates from empty input", len(kept))
		}
	})
}

func TestClassName(t *testing.T) {
	cases := []struct {
		idx  int
		want string
	}{
		{0, "person"},
		{2, "car"},
		{7, "truck"},
		{79, "toothbrush"},
		{80, "unknown"},
		{-1, "unknown"},
	}
	for _, tc := range cases {
		if got := className(tc.idx); got != tc.want {
			t.Errorf("className(%d) = %q, want %q", tc.idx, got, tc.want)
		}
	}
}

func TestAnnotate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	objects := []models.DetectedObject{
		{
			Type:        "car",
			Confidence:  0.87,
			BoundingBox: models.BoundingBox{X: 20, Y: 30, Width: 40, Height: 20},
		},
	}

	out := Annotate(img, objects)

	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}

	// The box edges must be stroked green.
	for _, pt := range []image.Point{{20, 30}, {60, 30}, {20, 50}, {40, 30}} {
		r, g, b, _ := out.At(pt.X, pt.Y).RGBA()
		if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
			t.Errorf("pixel %v = (%d,%d,%d), want green", pt, r>>8, g>>8, b>>8)
		}
	}

	// The source image is untouched.
	if _, g, _, _ := img.At(20, 30).RGBA(); g>>8 == 255 {
		t.Error("Annotate modified the input image")
	}

	t.Run("BoxAtTopEdge", func(t *testing.T) {
		edge := []models.DetectedObject{
			{Type: "person", Confidence: 0.5, BoundingBox: models.BoundingBox{X: 0, Y: 0, Width: 30, Height: 30}},
		}
		// Must not panic with the label baseline clamped inside the image.
		out := Annotate(img, edge)
		if out == nil {
			t.Fatal("nil annotated image")
		}
	})
}
