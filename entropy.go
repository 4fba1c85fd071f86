package insitu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	srgb "github.com/gogpu/insitu/internal/color"
)

// histogramBins is the number of bins of every entropy histogram.
const histogramBins = 256

// EntropyFunc scores the informativeness of a frame buffer. Implementations
// must be pure: identical buffers yield identical scores.
type EntropyFunc func(fb *FrameBuffer) float64

// Entropy is the default evaluator, an even mix of lightness and depth
// entropy. Only foreground pixels (depth < 1) are counted; a buffer without
// foreground pixels scores 0.
func Entropy(fb *FrameBuffer) float64 {
	return defaultEntropy(fb)
}

var defaultEntropy = MixedEntropy(LightnessEntropy, DepthEntropy, 0.5)

// EntropyByName returns the evaluator registered under name. Recognized
// names are "lightness", "color", "depth" and "mixed".
func EntropyByName(name string) (EntropyFunc, error) {
	switch name {
	case "lightness":
		return LightnessEntropy, nil
	case "color":
		return ColorEntropy, nil
	case "depth":
		return DepthEntropy, nil
	case "mixed", "":
		return Entropy, nil
	default:
		return nil, fmt.Errorf("%w: unknown entropy %q", ErrConfig, name)
	}
}

// LightnessEntropy is the Shannon entropy of the CIE L* histogram of the
// foreground pixels.
func LightnessEntropy(fb *FrameBuffer) float64 {
	hist := make([]float64, histogramBins)
	n := 0
	for i, d := range fb.Depth {
		if d >= FarDepth || fb.Color[4*i+3] == 0 {
			continue
		}
		l := srgb.Lightness(fb.Color[4*i+0], fb.Color[4*i+1], fb.Color[4*i+2])
		hist[binIndex(l/100)]++
		n++
	}
	return histogramEntropy(hist, n)
}

// ColorEntropy is the mean of the per-channel RGB histogram entropies of the
// foreground pixels.
func ColorEntropy(fb *FrameBuffer) float64 {
	var hist [3][]float64
	for c := range hist {
		hist[c] = make([]float64, histogramBins)
	}
	n := 0
	for i, d := range fb.Depth {
		if d >= FarDepth || fb.Color[4*i+3] == 0 {
			continue
		}
		for c := range hist {
			hist[c][fb.Color[4*i+c]]++
		}
		n++
	}
	if n == 0 {
		return 0
	}
	return (histogramEntropy(hist[0], n) + histogramEntropy(hist[1], n) + histogramEntropy(hist[2], n)) / 3
}

// DepthEntropy is the Shannon entropy of the depth histogram of the
// foreground pixels.
func DepthEntropy(fb *FrameBuffer) float64 {
	hist := make([]float64, histogramBins)
	n := 0
	for i, d := range fb.Depth {
		if d >= FarDepth || fb.Color[4*i+3] == 0 {
			continue
		}
		hist[binIndex(float64(d))]++
		n++
	}
	return histogramEntropy(hist, n)
}

// MixedEntropy blends two evaluators: p·a + (1−p)·b.
func MixedEntropy(a, b EntropyFunc, p float64) EntropyFunc {
	return func(fb *FrameBuffer) float64 {
		return p*a(fb) + (1-p)*b(fb)
	}
}

// histogramEntropy normalizes counts in place and returns their entropy in bits.
func histogramEntropy(hist []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	floats.Scale(1/float64(n), hist)
	return stat.Entropy(hist) / math.Ln2
}

// binIndex maps v in [0, 1] onto a histogram bin.
func binIndex(v float64) int {
	j := int(v * histogramBins)
	if j < 0 {
		return 0
	}
	if j >= histogramBins {
		return histogramBins - 1
	}
	return j
}
