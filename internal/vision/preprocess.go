package vision

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// padColor fills the letterbox margins; neutral gray per YOLO convention.
var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// letterboxed is a model input built from a frame: CHW float32 pixels plus
// the transform parameters needed to map boxes back to the original image.
type letterboxed struct {
	data  []float32
	scale float32
	padX  float32
	padY  float32
}

// letterbox resizes img to fit targetW x targetH preserving aspect ratio,
// pads the remainder with neutral gray, and converts to CHW float32 in [0,1].
func letterbox(img image.Image, targetW, targetH int) letterboxed {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	scale := minF(float32(targetW)/float32(srcW), float32(targetH)/float32(srcH))
	newW := int(float32(srcW) * scale)
	newH := int(float32(srcH) * scale)
	padX := (targetW - newW) / 2
	padY := (targetH - newH) / 2

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(padColor), image.Point{}, xdraw.Src)
	xdraw.ApproxBiLinear.Scale(dst,
		image.Rect(padX, padY, padX+newW, padY+newH),
		img, bounds, xdraw.Over, nil)

	data := make([]float32, 3*targetH*targetW)
	plane := targetH * targetW

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			idx := y*targetW + x
			data[0*plane+idx] = float32(r>>8) / 255.0
			data[1*plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
		}
	}

	return letterboxed{
		data:  data,
		scale: scale,
		padX:  float32(padX),
		padY:  float32(padY),
	}
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
