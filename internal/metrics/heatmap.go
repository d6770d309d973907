package metrics

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Report rasters for manual triage: a difference heatmap and a
// side-by-side composition.

// DiffHeatmap renders per-pixel luminance disagreement over a dimmed copy
// of the reference. Agreement stays grayscale; disagreement glows red in
// proportion to the error.
func DiffHeatmap(ref, cand image.Image) *image.NRGBA {
	ref, cand = ResizeToCommon(ref, cand)
	grayRef := ToGray(ref)
	grayCand := ToGray(cand)
	w, h := grayRef.W, grayRef.H
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := uint8(grayRef.At(x, y) * 0.5)
			diff := grayRef.At(x, y) - grayCand.At(x, y)
			if diff < 0 {
				diff = -diff
			}
			r := int(base) + int(diff)
			if r > 255 {
				r = 255
			}
			out.SetNRGBA(x, y, color.NRGBA{R: uint8(r), G: base, B: base, A: 255})
		}
	}
	return out
}

// SideBySide places reference and candidate next to each other with a thin
// separator, for eyeballing a flagged slide.
func SideBySide(ref, cand image.Image) *image.NRGBA {
	ref, cand = ResizeToCommon(ref, cand)
	w, h := ref.Bounds().Dx(), ref.Bounds().Dy()
	const gap = 4
	out := imaging.New(w*2+gap, h, color.NRGBA{R: 32, G: 32, B: 32, A: 255})
	out = imaging.Paste(out, ref, image.Pt(0, 0))
	out = imaging.Paste(out, cand, image.Pt(w+gap, 0))
	return out
}

// WritePNG persists a report raster, creating parent directories.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: create report dir: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("metrics: write %q: %w", path, err)
	}
	return nil
}
