package schedule

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImageOps is the raster capability the grid detector depends on. The default
// implementation is RasterOps; tests substitute synthetic implementations so
// detection logic can be exercised without real photographs.
type ImageOps interface {
	// Grayscale converts to a luminance image.
	Grayscale(img image.Image) *image.NRGBA
	// OtsuBinarize thresholds with an automatically chosen global threshold
	// and reports the fraction of white pixels in the result.
	OtsuBinarize(img image.Image) (*image.NRGBA, float64)
	// AdaptiveThreshold performs a mean local threshold; ink comes out black.
	AdaptiveThreshold(img image.Image, window, bias int) *image.NRGBA
	// OpenHorizontal keeps only horizontal ink runs at least width px long.
	OpenHorizontal(img *image.NRGBA, width int) *image.NRGBA
	// OpenVertical keeps only vertical ink runs at least height px long.
	OpenVertical(img *image.NRGBA, height int) *image.NRGBA
}

// RasterOps implements ImageOps on NRGBA images. Ink is always black (0),
// background white (255).
type RasterOps struct{}

func (RasterOps) Grayscale(img image.Image) *image.NRGBA {
	return imaging.Grayscale(img)
}

// OtsuBinarize picks the threshold maximizing between-class variance over the
// 256-bin luminance histogram, then binarizes with it.
func (RasterOps) OtsuBinarize(img image.Image) (*image.NRGBA, float64) {
	b := img.Bounds()
	var hist [256]int
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			hist[uint8((r+g+bb)/3>>8)]++
			total++
		}
	}
	if total == 0 {
		return imaging.New(0, 0, color.NRGBA{255, 255, 255, 255}), 1
	}
	sum := 0.0
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}
	var sumB, wB, wF float64
	best := 0
	bestVar := -1.0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF = float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	out := binarizeAt(img, uint8(best))
	white := 0
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			if out.NRGBAAt(x, y).R == 255 {
				white++
			}
		}
	}
	return out, float64(white) / float64(total)
}

// binarizeAt performs a simple global threshold on a grayscale image.
func binarizeAt(img image.Image, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			gray := uint8((r + g + bb) / 3 >> 8)
			var v uint8 = 255
			if gray <= threshold {
				v = 0
			}
			out.Set(x-b.Min.X, y-b.Min.Y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// AdaptiveThreshold performs a mean adaptive threshold using an integral
// image so the window mean is O(1) per pixel.
func (RasterOps) AdaptiveThreshold(img image.Image, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	half := window / 2
	ints := make([]int, w*h)
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).RGBA()
			v := int((r + g + b) / 3 >> 8)
			rowSum += v
			idx := y*w + x
			if y == 0 {
				ints[idx] = rowSum
			} else {
				ints[idx] = ints[(y-1)*w+x] + rowSum
			}
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := x-half, y-half
			x1, y1 := x+half, y+half
			if x0 < 0 {
				x0 = 0
			}
			if y0 < 0 {
				y0 = 0
			}
			if x1 >= w {
				x1 = w - 1
			}
			if y1 >= h {
				y1 = h - 1
			}
			A := ints[y0*w+x0]
			B := ints[y0*w+x1]
			C := ints[y1*w+x0]
			D := ints[y1*w+x1]
			sum := D - B - C + A
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			rv, gv, bv, _ := img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).RGBA()
			pix := int((rv + gv + bv) / 3 >> 8)
			th := mean - bias
			if th < 0 {
				th = 0
			}
			var c color.NRGBA
			if pix < th {
				c = color.NRGBA{0, 0, 0, 255}
			} else {
				c = color.NRGBA{255, 255, 255, 255}
			}
			out.Set(x, y, c)
		}
	}
	return out
}

// OpenHorizontal is an erode-then-dilate with a 1xN horizontal structuring
// element: per row, ink runs shorter than width are cleared, longer runs are
// kept at their original extent. This suppresses text while preserving
// near-full-width rule strokes.
func (RasterOps) OpenHorizontal(img *image.NRGBA, width int) *image.NRGBA {
	if width < 1 {
		width = 1
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	for y := 0; y < h; y++ {
		x := 0
		for x < w {
			if img.NRGBAAt(x, y).R != 0 {
				x++
				continue
			}
			run := x
			for run < w && img.NRGBAAt(run, y).R == 0 {
				run++
			}
			if run-x >= width {
				for i := x; i < run; i++ {
					out.Set(i, y, color.NRGBA{0, 0, 0, 255})
				}
			}
			x = run
		}
	}
	return out
}

// OpenVertical is the symmetric operation with an Nx1 vertical element.
func (RasterOps) OpenVertical(img *image.NRGBA, height int) *image.NRGBA {
	if height < 1 {
		height = 1
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	for x := 0; x < w; x++ {
		y := 0
		for y < h {
			if img.NRGBAAt(x, y).R != 0 {
				y++
				continue
			}
			run := y
			for run < h && img.NRGBAAt(x, run).R == 0 {
				run++
			}
			if run-y >= height {
				for i := y; i < run; i++ {
					out.Set(x, i, color.NRGBA{0, 0, 0, 255})
				}
			}
			y = run
		}
	}
	return out
}
