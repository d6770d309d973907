package metrics

// Structural similarity with a uniform sliding window, matching the
// scikit-image formulation with gaussian weighting disabled.

const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// windowSize picks the comparison window for the given geometry: at most
// maxWin, never larger than either axis, always odd, never below 3.
func windowSize(maxWin, w, h int) int {
	win := min(maxWin, w, h)
	if win%2 == 0 {
		win--
	}
	if win < 3 {
		win = 3
	}
	return win
}

// SSIMChannels averages the structural similarity over the R, G and B
// planes of two equally sized rasters.
func SSIMChannels(a, b [3]Gray, maxWin int) float64 {
	var sum float64
	for i := range a {
		sum += SSIM(a[i], b[i], maxWin)
	}
	return sum / 3
}

// SSIM computes the mean structural similarity of two equally sized
// planes. Returns 1.0 for empty or degenerate geometries.
func SSIM(a, b Gray, maxWin int) float64 {
	w, h := a.W, a.H
	if w == 0 || h == 0 || w != b.W || h != b.H {
		return 1.0
	}
	win := windowSize(maxWin, w, h)
	if win > w || win > h {
		// Raster smaller than the minimum window: fall back to a single
		// whole-image window.
		return ssimWindow(a, b, 0, 0, min(w, h))
	}

	var sum float64
	var count int
	for y := 0; y+win <= h; y++ {
		for x := 0; x+win <= w; x++ {
			sum += ssimWindowAt(a, b, x, y, win)
			count++
		}
	}
	if count == 0 {
		return 1.0
	}
	return sum / float64(count)
}

func ssimWindow(a, b Gray, x, y, win int) float64 {
	if win < 1 {
		return 1.0
	}
	return ssimWindowAt(a, b, x, y, win)
}

func ssimWindowAt(a, b Gray, x0, y0, win int) float64 {
	n := float64(win * win)
	var sumA, sumB float64
	for y := y0; y < y0+win; y++ {
		base := y * a.W
		for x := x0; x < x0+win; x++ {
			sumA += a.Pix[base+x]
			sumB += b.Pix[base+x]
		}
	}
	muA := sumA / n
	muB := sumB / n

	var varA, varB, cov float64
	for y := y0; y < y0+win; y++ {
		base := y * a.W
		for x := x0; x < x0+win; x++ {
			da := a.Pix[base+x] - muA
			db := b.Pix[base+x] - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	// Sample variance, as scikit-image uses (ddof=1).
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	varA /= denom
	varB /= denom
	cov /= denom

	num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
	den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}
