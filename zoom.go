package insitu

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// RenderFunc renders one location and returns the composited frame buffer.
// Only the root rank receives a buffer; other ranks receive nil.
type RenderFunc func(ctx context.Context, loc Location) (*FrameBuffer, error)

// ZoomSearcher sweeps the camera from an overview location toward a focus
// point over a fixed number of discrete levels.
type ZoomSearcher struct {
	// Levels is the number of zoom levels L; level l sits at t = l/L.
	Levels int
	// Auto picks the level with maximum entropy. Otherwise the last level
	// is always chosen and every level is emitted.
	Auto bool
	// Entropy scores each level. Nil means the default Entropy.
	Entropy EntropyFunc
}

// ZoomLevel is the outcome of one zoom level.
type ZoomLevel struct {
	Level    int
	Location Location
	// Frame is the composited buffer, nil off root.
	Frame   *FrameBuffer
	Entropy float64
}

// ZoomResult is a complete zoom sweep. Best is only meaningful on root
// until it has been agreed on by the coordinator.
type ZoomResult struct {
	Levels []ZoomLevel
	Best   int
}

// Chosen returns the selected level.
func (r ZoomResult) Chosen() ZoomLevel {
	return r.Levels[r.Best]
}

// Entropies returns the per-level entropies in level order.
func (r ZoomResult) Entropies() []float64 {
	out := make([]float64, len(r.Levels))
	for i, l := range r.Levels {
		out[i] = l.Entropy
	}
	return out
}

// Location returns the camera at the given level: the position is
// (1−t)·overview + t·focus with t = level/L, re-oriented toward focus.
func (z ZoomSearcher) Location(overview Location, focus mgl64.Vec3, level int) Location {
	t := float64(level) / float64(z.Levels)
	p := overview.Position.Mul(1 - t).Add(focus.Mul(t))
	return overview.MovedTo(p, focus)
}

// Search renders every level once, in order, with no early exit. On root
// each level is scored and Best is set to the maximum-entropy level in auto
// mode; in fixed mode Best is always the last level.
func (z ZoomSearcher) Search(ctx context.Context, overview Location, focus mgl64.Vec3, render RenderFunc) (ZoomResult, error) {
	if z.Levels < 1 {
		return ZoomResult{}, fmt.Errorf("%w: zoom levels %d", ErrConfig, z.Levels)
	}
	entropy := z.Entropy
	if entropy == nil {
		entropy = Entropy
	}

	res := ZoomResult{Levels: make([]ZoomLevel, 0, z.Levels)}
	bestEntropy := -1.0
	for level := 0; level < z.Levels; level++ {
		loc := z.Location(overview, focus, level)
		fb, err := render(ctx, loc)
		if err != nil {
			return ZoomResult{}, fmt.Errorf("zoom level %d: %w", level, err)
		}
		zl := ZoomLevel{Level: level, Location: loc, Frame: fb}
		if fb != nil {
			zl.Entropy = entropy(fb)
			if z.Auto && zl.Entropy > bestEntropy {
				bestEntropy = zl.Entropy
				res.Best = level
			}
		}
		res.Levels = append(res.Levels, zl)
	}
	if !z.Auto {
		res.Best = z.Levels - 1
	}
	return res, nil
}
