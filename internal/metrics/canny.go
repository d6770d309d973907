package metrics

import "math"

// Canny edge extraction: gaussian smoothing, Sobel gradients, non-maximum
// suppression and double-threshold hysteresis. The thresholds operate on
// gradient magnitude, same scale OpenCV uses for 8-bit input.

type Mask struct {
	W, H int
	Bits []bool
}

func newMask(w, h int) Mask { return Mask{W: w, H: h, Bits: make([]bool, w*h)} }

func (m Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// CannyEdges extracts binary edges from a luminance plane.
func CannyEdges(g Gray, low, high float64) Mask {
	if g.W < 3 || g.H < 3 {
		return newMask(g.W, g.H)
	}
	smoothed := gaussianBlur(g)
	mag, dir := sobel(smoothed)
	thin := nonMaxSuppress(mag, dir)
	return hysteresis(thin, low, high)
}

// EdgeIoU is the intersection-over-union of two edge masks. Two rasters
// with no edges at all agree perfectly.
func EdgeIoU(a, b Mask) float64 {
	if len(a.Bits) != len(b.Bits) {
		return 0
	}
	var inter, union int
	for i := range a.Bits {
		if a.Bits[i] && b.Bits[i] {
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

// gaussianBlur applies a separable 5-tap kernel (sigma ~1.4), replicating
// edges at the border.
func gaussianBlur(g Gray) Gray {
	kernel := [5]float64{0.1117, 0.2365, 0.3036, 0.2365, 0.1117}
	w, h := g.W, g.H
	tmp := Gray{W: w, H: h, Pix: make([]float64, w*h)}
	out := Gray{W: w, H: h, Pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -2; k <= 2; k++ {
				acc += kernel[k+2] * g.At(clamp(x+k, 0, w-1), y)
			}
			tmp.Pix[y*w+x] = acc
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -2; k <= 2; k++ {
				acc += kernel[k+2] * tmp.At(x, clamp(y+k, 0, h-1))
			}
			out.Pix[y*w+x] = acc
		}
	}
	return out
}

// sobel returns gradient magnitude and direction quantized to four sectors
// (0: horizontal, 1: 45deg, 2: vertical, 3: 135deg).
func sobel(g Gray) (Gray, []uint8) {
	w, h := g.W, g.H
	mag := Gray{W: w, H: h, Pix: make([]float64, w*h)}
	dir := make([]uint8, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -g.At(x-1, y-1) + g.At(x+1, y-1) +
				-2*g.At(x-1, y) + 2*g.At(x+1, y) +
				-g.At(x-1, y+1) + g.At(x+1, y+1)
			gy := -g.At(x-1, y-1) - 2*g.At(x, y-1) - g.At(x+1, y-1) +
				g.At(x-1, y+1) + 2*g.At(x, y+1) + g.At(x+1, y+1)
			i := y*w + x
			mag.Pix[i] = math.Hypot(gx, gy)
			angle := math.Atan2(gy, gx) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			switch {
			case angle < 22.5 || angle >= 157.5:
				dir[i] = 0
			case angle < 67.5:
				dir[i] = 1
			case angle < 112.5:
				dir[i] = 2
			default:
				dir[i] = 3
			}
		}
	}
	return mag, dir
}

func nonMaxSuppress(mag Gray, dir []uint8) Gray {
	w, h := mag.W, mag.H
	out := Gray{W: w, H: h, Pix: make([]float64, w*h)}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag.Pix[i]
			var n1, n2 float64
			switch dir[i] {
			case 0:
				n1, n2 = mag.At(x-1, y), mag.At(x+1, y)
			case 1:
				n1, n2 = mag.At(x+1, y-1), mag.At(x-1, y+1)
			case 2:
				n1, n2 = mag.At(x, y-1), mag.At(x, y+1)
			default:
				n1, n2 = mag.At(x-1, y-1), mag.At(x+1, y+1)
			}
			if m >= n1 && m >= n2 {
				out.Pix[i] = m
			}
		}
	}
	return out
}

func hysteresis(mag Gray, low, high float64) Mask {
	w, h := mag.W, mag.H
	out := newMask(w, h)
	// Seed with strong edges, then flood weak edges connected to them.
	var stack []int
	for i, m := range mag.Pix {
		if m >= high {
			out.Bits[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if !out.Bits[j] && mag.Pix[j] >= low {
					out.Bits[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
