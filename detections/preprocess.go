package detections

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
)

// letterbox records how the source image was fitted into the square input.
type letterbox struct {
	scale      float64
	padX, padY int
	srcW, srcH int
}

// letterboxImage scales img to fit a size×size canvas, keeping its aspect
// ratio, and centres it on grey padding.
func letterboxImage(img image.Image, size int) (*image.NRGBA, letterbox) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))

	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	canvas := imaging.New(size, size, color.NRGBA{R: letterboxFill, G: letterboxFill, B: letterboxFill, A: 255})

	lb := letterbox{
		scale: scale,
		padX:  (size - nw) / 2,
		padY:  (size - nh) / 2,
		srcW:  w,
		srcH:  h,
	}
	return imaging.Paste(canvas, resized, image.Pt(lb.padX, lb.padY)), lb
}

// toSource maps an input-space box back onto the source image, clipped to
// its bounds.
func (lb letterbox) toSource(box [4]float32) [4]float32 {
	x1 := (float64(box[0]) - float64(lb.padX)) / lb.scale
	y1 := (float64(box[1]) - float64(lb.padY)) / lb.scale
	x2 := (float64(box[2]) - float64(lb.padX)) / lb.scale
	y2 := (float64(box[3]) - float64(lb.padY)) / lb.scale

	x1 = clamp(x1, 0, float64(lb.srcW))
	y1 = clamp(y1, 0, float64(lb.srcH))
	x2 = clamp(x2, x1, float64(lb.srcW))
	y2 = clamp(y2, y1, float64(lb.srcH))

	return [4]float32{float32(x1), float32(y1), float32(x2), float32(y2)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// fillInput writes pic into dst as planar RGB scaled to [0,1], splitting the
// rows across workers.
func fillInput(dst []float32, pic *image.NRGBA, workers int) {
	b := pic.Bounds()
	width, height := b.Dx(), b.Dy()
	channelSize := width * height

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > height {
		workers = height
	}
	rowsPerWorker := height / workers

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if w == workers-1 {
			endRow = height
		}

		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				src := pic.Pix[y*pic.Stride : y*pic.Stride+width*4]
				offset := y * width
				for x := 0; x < width; x++ {
					i := offset + x
					dst[i] = float32(src[x*4]) / 255.0
					dst[channelSize+i] = float32(src[x*4+1]) / 255.0
					dst[channelSize*2+i] = float32(src[x*4+2]) / 255.0
				}
			}
		}(startRow, endRow)
	}

	wg.Wait()
}
