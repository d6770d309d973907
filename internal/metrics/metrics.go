package metrics

import (
	"fmt"
	"image"
)

// Config carries the tuned constants of the comparison pipeline. The
// defaults are the calibrated production values; tests and experiments
// override individual fields.
type Config struct {
	// ForegroundThreshold separates ink from background on the luminance
	// plane. Pixels at or above it count as background.
	ForegroundThreshold float64
	// SparseForegroundFrac is the coverage below which the color histogram
	// comparison is skipped.
	SparseForegroundFrac float64
	// CannyLow and CannyHigh are the hysteresis thresholds for edge
	// extraction.
	CannyLow  float64
	CannyHigh float64
	// SSIMMaxWindow caps the structural-similarity window.
	SSIMMaxWindow int
}

// DefaultConfig returns the calibrated constants.
func DefaultConfig() Config {
	return Config{
		ForegroundThreshold:  245,
		SparseForegroundFrac: 0.015,
		CannyLow:             60,
		CannyHigh:            120,
		SSIMMaxWindow:        7,
	}
}

// Result is the full per-slide metric vector. JSON field names are the
// canonical metric keys the verdict layer consumes.
type Result struct {
	SSIM           float64 `json:"ssim"`
	EdgeIoU        float64 `json:"edge_iou"`
	ColorHistCorr  float64 `json:"color_hist_corr"`
	FGIoU          float64 `json:"fg_iou"`
	FGIoUTolerant  float64 `json:"fg_iou_tolerant"`
	FGAreaRatio    float64 `json:"fg_area_ratio"`
	FGCentroidDist float64 `json:"fg_centroid_dist"`
	ChamferScore   float64 `json:"chamfer_score"`
	MAE            float64 `json:"mae"`
	RefStddev      float64 `json:"ref_stddev"`
	CandStddev     float64 `json:"cand_stddev"`
}

// Map exposes the vector under its canonical metric keys.
func (r Result) Map() map[string]float64 {
	return map[string]float64{
		"ssim":             r.SSIM,
		"edge_iou":         r.EdgeIoU,
		"color_hist_corr":  r.ColorHistCorr,
		"fg_iou":           r.FGIoU,
		"fg_iou_tolerant":  r.FGIoUTolerant,
		"fg_area_ratio":    r.FGAreaRatio,
		"fg_centroid_dist": r.FGCentroidDist,
		"chamfer_score":    r.ChamferScore,
		"mae":              r.MAE,
	}
}

// Compare scores candidate against the ground-truth reference. Structural
// and foreground metrics run at the smaller common geometry; the color
// histograms run at the larger one, so neither raster loses its color
// distribution to decimation.
func Compare(ref, cand image.Image, cfg Config) (Result, error) {
	small, smallCand := ResizeToCommon(ref, cand)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	if w < 2 || h < 2 {
		return Result{}, fmt.Errorf("metrics: rasters too small to compare (%dx%d)", w, h)
	}
	grayRef := ToGray(small)
	grayCand := ToGray(smallCand)

	maskRef := ForegroundMask(grayRef, cfg.ForegroundThreshold)
	maskCand := ForegroundMask(grayCand, cfg.ForegroundThreshold)

	edgesRef := CannyEdges(grayRef, cfg.CannyLow, cfg.CannyHigh)
	edgesCand := CannyEdges(grayCand, cfg.CannyLow, cfg.CannyHigh)

	big, bigCand := ResizeToCommonMax(ref, cand)
	histMaskRef := ForegroundMask(ToGray(big), cfg.ForegroundThreshold)
	histMaskCand := ForegroundMask(ToGray(bigCand), cfg.ForegroundThreshold)

	return Result{
		SSIM:           SSIMChannels(ToChannels(small), ToChannels(smallCand), cfg.SSIMMaxWindow),
		EdgeIoU:        EdgeIoU(edgesRef, edgesCand),
		ColorHistCorr:  ColorHistCorr(big, bigCand, histMaskRef, histMaskCand, cfg.SparseForegroundFrac),
		FGIoU:          MaskIoU(maskRef, maskCand),
		FGIoUTolerant:  TolerantIoU(maskRef, maskCand),
		FGAreaRatio:    AreaRatio(maskRef, maskCand),
		FGCentroidDist: CentroidDistance(maskRef, maskCand),
		ChamferScore:   ChamferScore(maskRef, maskCand),
		MAE:            MAE(grayRef, grayCand),
		RefStddev:      Stddev(grayRef),
		CandStddev:     Stddev(grayCand),
	}, nil
}
