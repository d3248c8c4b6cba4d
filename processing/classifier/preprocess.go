package classifier

import (
	"image"
	"math"

	"github.com/nfnt/resize"
)

// Tensorize resizes img to size x size and lays it out as float32 RGB.
// NHWC inputs are scaled to [-1,1] (Teachable Machine convention), NCHW
// inputs to [0,1].
func Tensorize(img image.Image, size int, layout Layout) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	out := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			px := y*width + x

			switch layout {
			case LayoutNCHW:
				out[px] = float32(r) / 65535.0
				out[plane+px] = float32(g) / 65535.0
				out[2*plane+px] = float32(b) / 65535.0
			default:
				out[3*px] = float32(r)/32767.5 - 1
				out[3*px+1] = float32(g)/32767.5 - 1
				out[3*px+2] = float32(b)/32767.5 - 1
			}
		}
	}

	return out
}

func softmax(in []float32) []float64 {
	out := make([]float64, len(in))
	if len(in) == 0 {
		return out
	}

	maxVal := float64(in[0])
	for _, v := range in[1:] {
		maxVal = math.Max(maxVal, float64(v))
	}

	var sum float64
	for i, v := range in {
		out[i] = math.Exp(float64(v) - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}
