package metrics

import "math"

// Foreground (ink) metrics. A pixel is foreground when its luminance falls
// below the near-white threshold; everything else is treated as slide
// background.

// ForegroundMask marks pixels darker than threshold.
func ForegroundMask(g Gray, threshold float64) Mask {
	m := newMask(g.W, g.H)
	for i, v := range g.Pix {
		m.Bits[i] = v < threshold
	}
	return m
}

// Frac is the fraction of set pixels.
func (m Mask) Frac() float64 {
	if len(m.Bits) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Bits))
}

// MaskIoU is intersection-over-union of two masks; empty-vs-empty is
// perfect agreement.
func MaskIoU(a, b Mask) float64 {
	return EdgeIoU(a, b)
}

// TolerantIoU is MaskIoU with one pixel of positional slack: a pixel counts
// toward the intersection when it sits inside the 3x3 dilation of the other
// mask. The denominator stays the exact union, so the result is bounded by
// 1 and never below the exact IoU.
func TolerantIoU(a, b Mask) float64 {
	if len(a.Bits) != len(b.Bits) {
		return 0
	}
	da := Dilate3x3(a)
	db := Dilate3x3(b)
	var inter, union int
	for i := range a.Bits {
		if (a.Bits[i] && db.Bits[i]) || (b.Bits[i] && da.Bits[i]) {
			inter++
		}
		if a.Bits[i] || b.Bits[i] {
			union++
		}
	}
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// Dilate3x3 grows a mask by one pixel in every direction.
func Dilate3x3(m Mask) Mask {
	out := newMask(m.W, m.H)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if !m.Bits[y*m.W+x] {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && ny >= 0 && nx < m.W && ny < m.H {
						out.Bits[ny*m.W+nx] = true
					}
				}
			}
		}
	}
	return out
}

// AreaRatio is the smaller foreground area over the larger one. Two empty
// masks agree perfectly.
func AreaRatio(a, b Mask) float64 {
	ca, cb := a.Count(), b.Count()
	if ca == 0 && cb == 0 {
		return 1.0
	}
	if ca == 0 || cb == 0 {
		return 0.0
	}
	if ca > cb {
		ca, cb = cb, ca
	}
	return float64(ca) / float64(cb)
}

// CentroidDistance is the distance between the mask centroids normalized by
// the raster diagonal. An empty mask has no centroid, so any empty mask
// reads as maximal displacement.
func CentroidDistance(a, b Mask) float64 {
	ax, ay, aok := centroid(a)
	bx, by, bok := centroid(b)
	if !aok || !bok {
		return 1.0
	}
	diag := math.Hypot(float64(a.W), float64(a.H))
	if diag == 0 {
		return 0.0
	}
	return math.Hypot(ax-bx, ay-by) / diag
}

func centroid(m Mask) (float64, float64, bool) {
	var sx, sy, n float64
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.Bits[y*m.W+x] {
				sx += float64(x)
				sy += float64(y)
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0, false
	}
	return sx / n, sy / n, true
}

// ChamferScore measures how far each mask's foreground sits from the
// other's, symmetrized, normalized by the raster diagonal and flipped so
// 1.0 is perfect overlap. Empty masks degrade gracefully instead of
// producing NaN: both empty scores 1.0, exactly one empty scores 0.0.
func ChamferScore(a, b Mask) float64 {
	ca, cb := a.Count(), b.Count()
	if ca == 0 && cb == 0 {
		return 1.0
	}
	if ca == 0 || cb == 0 {
		return 0.0
	}
	distToB := distanceTransform(b)
	distToA := distanceTransform(a)
	var sumAB, sumBA float64
	for i := range a.Bits {
		if a.Bits[i] {
			sumAB += distToB[i]
		}
		if b.Bits[i] {
			sumBA += distToA[i]
		}
	}
	mean := (sumAB/float64(ca) + sumBA/float64(cb)) / 2
	diag := math.Hypot(float64(a.W), float64(a.H))
	if diag == 0 || math.IsNaN(mean) {
		return 0.0
	}
	score := 1.0 - mean/diag
	if score < 0 {
		return 0.0
	}
	return score
}

// distanceTransform approximates euclidean distance to the nearest set
// pixel with a two-pass chamfer sweep (weights 1 and sqrt 2).
func distanceTransform(m Mask) []float64 {
	w, h := m.W, m.H
	const inf = math.MaxFloat64 / 4
	d := make([]float64, w*h)
	for i := range d {
		if m.Bits[i] {
			d[i] = 0
		} else {
			d[i] = inf
		}
	}
	diagW := math.Sqrt2
	relax := func(i int, cand float64) {
		if cand < d[i] {
			d[i] = cand
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if x > 0 {
				relax(i, d[i-1]+1)
			}
			if y > 0 {
				relax(i, d[i-w]+1)
				if x > 0 {
					relax(i, d[i-w-1]+diagW)
				}
				if x < w-1 {
					relax(i, d[i-w+1]+diagW)
				}
			}
		}
	}
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			if x < w-1 {
				relax(i, d[i+1]+1)
			}
			if y < h-1 {
				relax(i, d[i+w]+1)
				if x < w-1 {
					relax(i, d[i+w+1]+diagW)
				}
				if x > 0 {
					relax(i, d[i+w-1]+diagW)
				}
			}
		}
	}
	return d
}
