package vision

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/your-org/vod/internal/models"
)

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

const boxThickness = 2

// Annotate returns a copy of img with each detection's bounding box drawn and
// a "<type> <confidence%>" label near the box's top-left corner.
func Annotate(img image.Image, objects []models.DetectedObject) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for _, obj := range objects {
		x1 := bounds.Min.X + int(obj.BoundingBox.X)
		y1 := bounds.Min.Y + int(obj.BoundingBox.Y)
		x2 := x1 + int(obj.BoundingBox.Width)
		y2 := y1 + int(obj.BoundingBox.Height)

		drawRect(out, x1, y1, x2, y2)

		label := fmt.Sprintf("%s %.0f%%", obj.Type, obj.Confidence*100)
		drawLabel(out, label, x1, y1)
	}

	return out
}

// drawRect strokes an axis-aligned rectangle clipped to the image bounds.
func drawRect(img *image.RGBA, x1, y1, x2, y2 int) {
	for t := 0; t < boxThickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(img, x, y1+t)
			setPixel(img, x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(img, x1+t, y)
			setPixel(img, x2-t, y)
		}
	}
}

func setPixel(img *image.RGBA, x, y int) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, boxColor)
	}
}

// drawLabel renders text just above the box's top-left corner, or inside it
// when the box touches the top edge.
func drawLabel(img *image.RGBA, text string, x, y int) {
	face := basicfont.Face7x13
	baseline := y - 4
	if baseline-face.Ascent < img.Bounds().Min.Y {
		baseline = y + face.Height + 2
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(boxColor),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}
