// Package color converts 8-bit sRGB samples to linear light and CIE
// lightness using lookup tables.
//
// Entropy evaluation converts every foreground pixel of every rendered
// viewpoint, so the per-channel math.Pow is replaced by a 256-entry table.
package color

import "math"

// linearLUT maps an sRGB byte to linear light in [0, 1].
var linearLUT [256]float64

func init() {
	for i := range linearLUT {
		linearLUT[i] = LinearSlow(uint8(i)) //nolint:gosec // i < 256
	}
}

// Linear converts an sRGB byte to linear light using the lookup table.
//
// Example:
//
//	l := Linear(128) // ~0.2159 (not 0.5!)
func Linear(s uint8) float64 {
	return linearLUT[s]
}

// LinearSlow converts an sRGB byte to linear light with math.Pow.
// It is the reference the table is built from.
func LinearSlow(s uint8) float64 {
	c := float64(s) / 255
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// Luminance returns the relative luminance Y of an sRGB pixel (Rec. 709
// primaries, D65 white).
func Luminance(r, g, b uint8) float64 {
	return 0.212639*Linear(r) + 0.715169*Linear(g) + 0.072192*Linear(b)
}

// Lightness returns the CIE L* of an sRGB pixel, in [0, 100].
func Lightness(r, g, b uint8) float64 {
	return 116*labF(Luminance(r, g, b)) - 16
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787037*t + 16.0/116.0
}
