package insitu

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Frame is one timestep of simulation data, opaque to the controller.
type Frame interface {
	// Step returns the simulation timestep the frame was captured at.
	Step() int
}

// Renderer renders this rank's share of a frame from a camera location.
type Renderer interface {
	// Render returns the partial frame buffer of the local data.
	// It is called symmetrically on every rank.
	Render(ctx context.Context, loc Location, frame Frame) (*FrameBuffer, error)

	// Unproject maps a window point (x, y in pixels from the bottom left,
	// z the depth in [0,1]) to world space for the given location.
	Unproject(win mgl64.Vec3, loc Location) (mgl64.Vec3, error)
}

// Compositor merges the partial frame buffers of every rank.
// Composite is collective; only root receives the merged buffer and every
// other rank receives nil.
type Compositor interface {
	Composite(ctx context.Context, local *FrameBuffer) (*FrameBuffer, error)
}

// EmittedImage is one output image with the fields that name it.
type EmittedImage struct {
	Step      int
	Candidate int
	Level     int
	Route     int
	Space     int // viewpoint index, PlaybackCandidate along a route
	Entropy   float64
	Location  Location
	Frame     *FrameBuffer
}

// ImageSink receives the images produced on root.
type ImageSink interface {
	Emit(img EmittedImage) error
}

// ProcTimes are the per-keyframe search timings.
type ProcTimes struct {
	Entropy time.Duration
	Focus   time.Duration
	Zoom    time.Duration
}

// Telemetry records the per-step measurements of a run.
// Methods are only called on root.
type Telemetry interface {
	Viewpoint(step int, loc Location)
	FrameEntropies(step int, entropies []float64)
	ZoomEntropies(step, candidate int, entropies []float64)
	Routes(step int, routes []Route)
	ProcTimes(step int, t ProcTimes)
	// PathEntropies records the entropy of one image rendered along a route.
	PathEntropies(step, route int, entropy float64)
	Images(step, n int)
}

type nopTelemetry struct{}

func (nopTelemetry) Viewpoint(int, Location)           {}
func (nopTelemetry) FrameEntropies(int, []float64)     {}
func (nopTelemetry) ZoomEntropies(int, int, []float64) {}
func (nopTelemetry) Routes(int, []Route)               {}
func (nopTelemetry) ProcTimes(int, ProcTimes)          {}
func (nopTelemetry) PathEntropies(int, int, float64)   {}
func (nopTelemetry) Images(int, int)                   {}

type nopSink struct{}

func (nopSink) Emit(EmittedImage) error { return nil }
