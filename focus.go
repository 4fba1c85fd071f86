package insitu

import (
	"fmt"
	"math"
	"sort"
)

// FocusPolicy selects how focus windows are chosen within a frame.
type FocusPolicy int

const (
	// FocusBiggest repeatedly takes the highest-entropy remaining window.
	FocusBiggest FocusPolicy = iota
	// FocusMaximal takes the best local entropy maxima among windows.
	FocusMaximal
)

// String returns the policy name.
func (p FocusPolicy) String() string {
	switch p {
	case FocusBiggest:
		return "biggest"
	case FocusMaximal:
		return "maximal"
	default:
		return fmt.Sprintf("FocusPolicy(%d)", int(p))
	}
}

// ParseFocusPolicy parses a policy name as produced by String.
func ParseFocusPolicy(s string) (FocusPolicy, error) {
	switch s {
	case "biggest", "":
		return FocusBiggest, nil
	case "maximal":
		return FocusMaximal, nil
	default:
		return FocusBiggest, fmt.Errorf("%w: unknown focus policy %q", ErrConfig, s)
	}
}

// WindowPoint is the representative point of a focus window in window
// coordinates: X to the right, Y up from the bottom row, Depth in [0, 1].
type WindowPoint struct {
	X       float64
	Y       float64
	Depth   float64
	Entropy float64
}

// HasGeometry reports whether the point lies in front of the far plane.
func (p WindowPoint) HasGeometry() bool {
	return p.Depth < float64(FarDepth)
}

// focusWindow is one cell of the window partition.
type focusWindow struct {
	point WindowPoint
	valid bool
}

// FocusWindows partitions fb into divX × divY windows, scores each with
// entropy, and returns n window points chosen by policy.
//
// Window bounds are i·W/divX and j·H/divY, so the windows tile the buffer
// and differ in size by at most one pixel. A window is empty only when
// divX > W or divY > H; empty windows are skipped. Each
// window's depth is its center depth when that has geometry,
// else its nearest foreground depth, else the far plane. The result always
// has length n (for n > 0).
func FocusWindows(fb *FrameBuffer, divX, divY, n int, policy FocusPolicy, entropy EntropyFunc) []WindowPoint {
	if n <= 0 {
		return nil
	}
	if entropy == nil {
		entropy = Entropy
	}
	if divX < 1 {
		divX = 1
	}
	if divY < 1 {
		divY = 1
	}

	windows := make([]focusWindow, divX*divY)
	for j := 0; j < divY; j++ {
		y0, y1 := j*fb.Height/divY, (j+1)*fb.Height/divY
		for i := 0; i < divX; i++ {
			x0, x1 := i*fb.Width/divX, (i+1)*fb.Width/divX
			win := fb.Crop(x0, y0, x1-x0, y1-y0)
			if win.Width == 0 || win.Height == 0 {
				continue
			}
			windows[j*divX+i] = focusWindow{
				point: WindowPoint{
					X:       float64(x0 + win.Width/2),
					Y:       float64(fb.Height-1) - float64(y0+win.Height/2),
					Depth:   representativeDepth(win),
					Entropy: entropy(win),
				},
				valid: true,
			}
		}
	}

	switch policy {
	case FocusMaximal:
		return maximalWindows(fb, windows, divX, divY, n)
	default:
		return biggestWindows(fb, windows, n)
	}
}

// representativeDepth returns the center depth of win when it has
// geometry, else the nearest foreground depth, else the far plane.
func representativeDepth(win *FrameBuffer) float64 {
	if d := win.DepthAt(win.Width/2, win.Height/2); d < FarDepth {
		return float64(d)
	}
	nearest := FarDepth
	for _, d := range win.Depth {
		if d < nearest {
			nearest = d
		}
	}
	return float64(nearest)
}

// biggestWindows takes the highest-entropy window n times, removing each
// pick from the pool. A background pick after the first reuses the previous
// pick instead.
func biggestWindows(fb *FrameBuffer, windows []focusWindow, n int) []WindowPoint {
	pool := make([]WindowPoint, 0, len(windows))
	for _, w := range windows {
		if w.valid {
			pool = append(pool, w.point)
		}
	}
	if len(pool) == 0 {
		return centerPoints(fb, n)
	}
	sort.SliceStable(pool, func(a, b int) bool {
		return pool[a].Entropy > pool[b].Entropy
	})

	out := make([]WindowPoint, n)
	for i := range out {
		if i >= len(pool) {
			out[i] = out[i-1]
			continue
		}
		pick := pool[i]
		if i > 0 && !pick.HasGeometry() {
			pick = out[i-1]
		}
		out[i] = pick
	}
	return out
}

// maximalWindows takes the n best strict local maxima among windows, without
// wraparound. With no maxima it falls back to the frame center.
func maximalWindows(fb *FrameBuffer, windows []focusWindow, divX, divY, n int) []WindowPoint {
	values := make([]float64, len(windows))
	for i, w := range windows {
		if w.valid {
			values[i] = w.point.Entropy
		} else {
			values[i] = math.Inf(-1)
		}
	}
	var maxima []int
	for _, idx := range localMaxima(values, divX, divY, false) {
		if windows[idx].valid {
			maxima = append(maxima, idx)
		}
	}
	if len(maxima) == 0 {
		return centerPoints(fb, n)
	}

	out := make([]WindowPoint, n)
	for i, idx := range padPicks(maxima, n) {
		out[i] = windows[idx].point
	}
	return out
}

// centerPoints returns n copies of the frame center.
func centerPoints(fb *FrameBuffer, n int) []WindowPoint {
	center := WindowPoint{
		X:     float64(fb.Width / 2),
		Y:     float64(fb.Height / 2),
		Depth: float64(FarDepth),
	}
	if fb.Width > 0 && fb.Height > 0 {
		center.Depth = representativeDepth(fb)
	}
	out := make([]WindowPoint, n)
	for i := range out {
		out[i] = center
	}
	return out
}
