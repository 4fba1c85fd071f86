package demo

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/insitu"
)

// ErrNoSurface is returned by Unproject for window points on the far plane.
var ErrNoSurface = errors.New("demo: no surface under window point")

// Background is the clear color of rendered frames.
var Background = gputypes.Color{R: 0, G: 0, B: 0, A: 1}

// PointRenderer splats particles as small squares with a perspective camera.
// Every direction type renders the single view of the location.
type PointRenderer struct {
	Width, Height int
	FovY          float64 // degrees
	Near, Far     float64
	Splat         int // half size of a splat in pixels
}

var _ insitu.Renderer = (*PointRenderer)(nil)

// NewPointRenderer returns a renderer with a 45 degree field of view.
func NewPointRenderer(width, height int) *PointRenderer {
	return &PointRenderer{Width: width, Height: height, FovY: 45, Near: 0.1, Far: 100, Splat: 1}
}

func (r *PointRenderer) projection() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(r.FovY), float64(r.Width)/float64(r.Height), r.Near, r.Far)
}

// Render implements insitu.Renderer.
func (r *PointRenderer) Render(ctx context.Context, loc insitu.Location, frame insitu.Frame) (*insitu.FrameBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := frame.(*Frame)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrFrameType, frame)
	}

	fb := insitu.NewFrameBuffer(r.Width, r.Height)
	fb.Clear(Background)
	view, proj := loc.View(), r.projection()
	for _, p := range f.Particles {
		win := mgl64.Project(p.Position, view, proj, 0, 0, r.Width, r.Height)
		if win.Z() < 0 || win.Z() >= 1 {
			continue
		}
		x := int(math.Floor(win.X()))
		y := r.Height - 1 - int(math.Floor(win.Y()))
		c := Heat(p.Temperature)
		d := float32(win.Z())
		for dy := -r.Splat; dy <= r.Splat; dy++ {
			for dx := -r.Splat; dx <= r.Splat; dx++ {
				px, py := x+dx, y+dy
				if px < 0 || py < 0 || px >= r.Width || py >= r.Height {
					continue
				}
				if d < fb.DepthAt(px, py) {
					fb.SetPixel(px, py, c, d)
				}
			}
		}
	}
	return fb, nil
}

// Unproject implements insitu.Renderer.
func (r *PointRenderer) Unproject(win mgl64.Vec3, loc insitu.Location) (mgl64.Vec3, error) {
	if win.Z() >= float64(insitu.FarDepth) {
		return mgl64.Vec3{}, ErrNoSurface
	}
	return mgl64.UnProject(win, loc.View(), r.projection(), 0, 0, r.Width, r.Height)
}

var heatStops = [...]mgl64.Vec3{
	{0.05, 0.05, 0.35},
	{0.85, 0.1, 0.1},
	{1, 0.8, 0.1},
	{1, 1, 1},
}

// Heat maps a normalized temperature to a blue-red-yellow-white ramp.
func Heat(t float64) color.RGBA {
	t = mgl64.Clamp(t, 0, 1) * float64(len(heatStops)-1)
	i := min(int(t), len(heatStops)-2)
	f := t - float64(i)
	c := heatStops[i].Mul(1 - f).Add(heatStops[i+1].Mul(f))
	return color.RGBA{R: unit(c[0]), G: unit(c[1]), B: unit(c[2]), A: 255}
}

func unit(v float64) uint8 {
	return uint8(math.Round(mgl64.Clamp(v, 0, 1) * 255))
}
