// Package metrics scores the visual agreement between a ground-truth slide
// raster and a candidate rendering. All comparisons run on rasters resized
// to a common geometry first; the individual kernels assume that.
package metrics

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Gray is a row-major luminance plane with values in [0, 255].
type Gray struct {
	W, H int
	Pix  []float64
}

// At returns the luminance at (x, y). No bounds check.
func (g Gray) At(x, y int) float64 { return g.Pix[y*g.W+x] }

// LoadImage reads a raster from disk in any format imaging understands.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metrics: open raster %q: %w", path, err)
	}
	return img, nil
}

// ResizeToCommon brings both rasters to the smaller of the two geometries,
// axis by axis, using Lanczos resampling. Comparing at the smaller size
// avoids inventing detail in the coarser raster.
func ResizeToCommon(a, b image.Image) (image.Image, image.Image) {
	return resizeCommon(a, b, false)
}

// ResizeToCommonMax brings both rasters to the larger of the two
// geometries. Color histograms compare at the larger size so upscaling,
// not decimation, decides what the sparse raster contributes.
func ResizeToCommonMax(a, b image.Image) (image.Image, image.Image) {
	return resizeCommon(a, b, true)
}

func resizeCommon(a, b image.Image, grow bool) (image.Image, image.Image) {
	aw, ah := a.Bounds().Dx(), a.Bounds().Dy()
	bw, bh := b.Bounds().Dx(), b.Bounds().Dy()
	w, h := min(aw, bw), min(ah, bh)
	if grow {
		w, h = max(aw, bw), max(ah, bh)
	}
	if aw != w || ah != h {
		a = imaging.Resize(a, w, h, imaging.Lanczos)
	}
	if bw != w || bh != h {
		b = imaging.Resize(b, w, h, imaging.Lanczos)
	}
	return a, b
}

// ToGray converts a raster to a float luminance plane using the Rec. 601
// weights imaging applies for its own grayscale conversion.
func ToGray(img image.Image) Gray {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	g := Gray{W: w, H: h, Pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			r := float64(row[x*4])
			gr := float64(row[x*4+1])
			b := float64(row[x*4+2])
			g.Pix[y*w+x] = 0.299*r + 0.587*gr + 0.114*b
		}
	}
	return g
}

// ToChannels splits a raster into its R, G and B planes.
func ToChannels(img image.Image) [3]Gray {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	var ch [3]Gray
	for i := range ch {
		ch[i] = Gray{W: w, H: h, Pix: make([]float64, w*h)}
	}
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			for i := 0; i < 3; i++ {
				ch[i].Pix[y*w+x] = float64(row[x*4+i])
			}
		}
	}
	return ch
}

// MAE is the mean absolute luminance error normalized to [0, 1].
func MAE(a, b Gray) float64 {
	if len(a.Pix) == 0 || len(a.Pix) != len(b.Pix) {
		return 0
	}
	var sum float64
	for i := range a.Pix {
		sum += math.Abs(a.Pix[i] - b.Pix[i])
	}
	return sum / float64(len(a.Pix)) / 255.0
}

// Stddev is the population standard deviation of the luminance plane. A
// near-zero value means the raster is effectively a solid color.
func Stddev(g Gray) float64 {
	n := float64(len(g.Pix))
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range g.Pix {
		mean += v
	}
	mean /= n
	var acc float64
	for _, v := range g.Pix {
		d := v - mean
		acc += d * d
	}
	return math.Sqrt(acc / n)
}
