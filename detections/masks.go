package detections

import (
	"image"
	"math"
)

// buildMask combines the prototype planes with one object's coefficients
// inside its box. A pixel belongs to the object when sigmoid(v) > 0.5, that
// is when v > 0. The result is never nil: an object whose box misses the
// prototype grid, or whose pixels are all negative, gets an empty mask.
func buildMask(coeffs, protos []float32, layout modelLayout, box [4]float32) *Mask {
	pw, ph := layout.protoW, layout.protoH
	sx := float64(pw) / float64(layout.inputSize)
	sy := float64(ph) / float64(layout.inputSize)

	rect := image.Rect(
		int(math.Floor(float64(box[0])*sx)),
		int(math.Floor(float64(box[1])*sy)),
		int(math.Ceil(float64(box[2])*sx)),
		int(math.Ceil(float64(box[3])*sy)),
	).Intersect(image.Rect(0, 0, pw, ph))
	if rect.Empty() {
		return &Mask{}
	}

	plane := pw * ph
	mask := &Mask{
		Bounds: rect,
		Bits:   make([]bool, rect.Dx()*rect.Dy()),
	}

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			var v float32
			p := y*pw + x
			for k, c := range coeffs {
				v += c * protos[k*plane+p]
			}
			if v > 0 {
				mask.Bits[(y-rect.Min.Y)*rect.Dx()+(x-rect.Min.X)] = true
				mask.Area++
			}
		}
	}

	return mask
}
