package metrics

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Color agreement via HSV histograms over foreground pixels only, compared
// per channel with Pearson correlation. Bin layout follows the OpenCV
// convention: hue halved into [0, 180) with 30 bins, saturation and value
// over [0, 256) with 32 bins each.

const (
	hueBins = 30
	satBins = 32
	valBins = 32
)

// hsvHistograms accumulates one normalized histogram per HSV channel over
// the pixels the mask selects. Returns false when the mask selects
// nothing.
func hsvHistograms(img image.Image, mask Mask) ([3][]float64, bool) {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	hists := [3][]float64{
		make([]float64, hueBins),
		make([]float64, satBins),
		make([]float64, valBins),
	}
	var total float64
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			if !mask.Bits[y*w+x] {
				continue
			}
			hue, sat, val := rgbToHSV(row[x*4], row[x*4+1], row[x*4+2])
			hists[0][clamp(int(hue/180.0*hueBins), 0, hueBins-1)]++
			hists[1][clamp(int(sat/256.0*satBins), 0, satBins-1)]++
			hists[2][clamp(int(val/256.0*valBins), 0, valBins-1)]++
			total++
		}
	}
	if total == 0 {
		return hists, false
	}
	for _, hist := range hists {
		for i := range hist {
			hist[i] /= total
		}
	}
	return hists, true
}

// rgbToHSV converts to the OpenCV 8-bit ranges: hue in [0, 180),
// saturation and value in [0, 255].
func rgbToHSV(r8, g8, b8 uint8) (float64, float64, float64) {
	r := float64(r8) / 255
	g := float64(g8) / 255
	b := float64(b8) / 255
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	delta := maxC - minC

	var hue float64
	switch {
	case delta == 0:
		hue = 0
	case maxC == r:
		hue = 60 * math.Mod((g-b)/delta, 6)
	case maxC == g:
		hue = 60 * ((b-r)/delta + 2)
	default:
		hue = 60 * ((r-g)/delta + 4)
	}
	if hue < 0 {
		hue += 360
	}
	var sat float64
	if maxC > 0 {
		sat = delta / maxC
	}
	return hue / 2, sat * 255, maxC * 255
}

// pearson is the correlation coefficient over histogram bins, the same
// measure OpenCV's HISTCMP_CORREL reports.
func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n
	var num, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		num += da * db
		varA += da * da
		varB += db * db
	}
	den := math.Sqrt(varA * varB)
	if den == 0 {
		return 0
	}
	return num / den
}

// ColorHistCorr compares foreground color distributions. Two rasters with
// no foreground at all agree; exactly one empty foreground disagrees
// completely; and when either foreground covers less than sparseFrac of
// the raster the comparison is skipped as statistically meaningless.
func ColorHistCorr(a, b image.Image, maskA, maskB Mask, sparseFrac float64) float64 {
	fa, fb := maskA.Frac(), maskB.Frac()
	if fa == 0 && fb == 0 {
		return 1.0
	}
	if fa == 0 || fb == 0 {
		return 0.0
	}
	if fa < sparseFrac || fb < sparseFrac {
		return 1.0
	}
	histsA, okA := hsvHistograms(a, maskA)
	histsB, okB := hsvHistograms(b, maskB)
	if !okA || !okB {
		return 0.0
	}
	var sum float64
	for i := range histsA {
		sum += pearson(histsA[i], histsB[i])
	}
	return sum / 3
}
