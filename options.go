package insitu

import "fmt"

// Option configures a Controller during creation.
//
// Example:
//
//	ctrl, err := insitu.NewController(coord, renderer,
//		insitu.WithGrid(5, 8, 12),
//		insitu.WithIntervals(1, 10),
//		insitu.WithZoom(4, true),
//	)
type Option func(*options)

// options holds the controller configuration.
type options struct {
	rows      int
	cols      int
	radius    float64
	direction Direction

	analysisInterval int
	entropyInterval  int
	finalStep        int

	viewpoints      int
	focusCandidates int
	divX, divY      int
	focusPolicy     FocusPolicy

	zoomLevels    int
	autoZoom      bool
	workers       int
	interpolation Interpolation

	entropy    EntropyFunc
	compositor Compositor
	sink       ImageSink
	telemetry  Telemetry
}

// defaultOptions returns the default controller options.
func defaultOptions() options {
	return options{
		rows:             5,
		cols:             8,
		radius:           12,
		direction:        Uni,
		analysisInterval: 1,
		entropyInterval:  10,
		finalStep:        -1,
		viewpoints:       1,
		focusCandidates:  1,
		divX:             4,
		divY:             4,
		focusPolicy:      FocusBiggest,
		zoomLevels:       1,
		autoZoom:         true,
		workers:          1,
		interpolation:    Slerp,
		entropy:          Entropy,
		sink:             nopSink{},
		telemetry:        nopTelemetry{},
	}
}

// validate reports the first inconsistent option.
func (o *options) validate() error {
	switch {
	case o.rows < 1 || o.cols < 1:
		return fmt.Errorf("%w: viewpoint grid %dx%d", ErrConfig, o.rows, o.cols)
	case o.radius <= 0:
		return fmt.Errorf("%w: radius %v", ErrConfig, o.radius)
	case o.analysisInterval < 1:
		return fmt.Errorf("%w: analysis interval %d", ErrConfig, o.analysisInterval)
	case o.entropyInterval < 1:
		return fmt.Errorf("%w: entropy interval %d", ErrConfig, o.entropyInterval)
	case o.viewpoints < 1 || o.focusCandidates < 1:
		return fmt.Errorf("%w: %d viewpoints x %d focus candidates", ErrConfig, o.viewpoints, o.focusCandidates)
	case o.divX < 1 || o.divY < 1:
		return fmt.Errorf("%w: focus divisions %dx%d", ErrConfig, o.divX, o.divY)
	case o.zoomLevels < 1:
		return fmt.Errorf("%w: zoom levels %d", ErrConfig, o.zoomLevels)
	case o.interpolation != Slerp && o.interpolation != Squad:
		return fmt.Errorf("%w: %v", ErrConfig, o.interpolation)
	}
	return nil
}

// WithGrid sets the viewpoint grid: rows of elevation, cols of azimuth,
// and the sphere radius.
func WithGrid(rows, cols int, radius float64) Option {
	return func(o *options) {
		o.rows, o.cols, o.radius = rows, cols, radius
	}
}

// WithDirection sets the view direction of every viewpoint.
func WithDirection(d Direction) Option {
	return func(o *options) {
		o.direction = d
	}
}

// WithIntervals sets the analysis interval A and the entropy interval E.
// Steps not divisible by A are ignored; every A·E-th step is a keyframe.
func WithIntervals(analysis, entropy int) Option {
	return func(o *options) {
		o.analysisInterval, o.entropyInterval = analysis, entropy
	}
}

// WithFinalStep marks the last simulation step. It is always treated as a
// keyframe so the frame cache is drained before the run ends.
func WithFinalStep(step int) Option {
	return func(o *options) {
		o.finalStep = step
	}
}

// WithCandidates sets the number of viewpoints kept per keyframe and the
// number of focus points per viewpoint.
func WithCandidates(viewpoints, focus int) Option {
	return func(o *options) {
		o.viewpoints, o.focusCandidates = viewpoints, focus
	}
}

// WithFocus sets the focus window divisions and selection policy.
func WithFocus(divX, divY int, policy FocusPolicy) Option {
	return func(o *options) {
		o.divX, o.divY, o.focusPolicy = divX, divY, policy
	}
}

// WithZoom sets the number of zoom levels and whether the level is chosen
// by entropy.
func WithZoom(levels int, auto bool) Option {
	return func(o *options) {
		o.zoomLevels, o.autoZoom = levels, auto
	}
}

// WithEntropy sets the entropy evaluator. Nil keeps the default.
func WithEntropy(fn EntropyFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.entropy = fn
		}
	}
}

// WithCompositor sets the sort-last compositor. It is required when the
// group has more than one rank.
func WithCompositor(c Compositor) Option {
	return func(o *options) {
		o.compositor = c
	}
}

// WithSink sets the destination of emitted images.
func WithSink(s ImageSink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithTelemetry sets the telemetry recorder.
func WithTelemetry(t Telemetry) Option {
	return func(o *options) {
		if t != nil {
			o.telemetry = t
		}
	}
}

// WithWorkers sets the number of goroutines root uses to score viewpoint
// entropies. One scores on the stepping goroutine; zero or less uses
// GOMAXPROCS. The entropy evaluator must be safe for concurrent use when
// n is not 1. Call Controller.Close to release the workers.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithInterpolation sets the rotation interpolation of replay routes.
func WithInterpolation(m Interpolation) Option {
	return func(o *options) {
		o.interpolation = m
	}
}
