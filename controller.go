package insitu

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/insitu/internal/parallel"
)

// PlaybackCandidate is the candidate tag of images rendered along a route.
const PlaybackCandidate = 999999

// Controller is the adaptive camera-path controller of one rank.
//
// Every rank of the group drives its own Controller with the same frames
// in the same order. At keyframe steps the controller searches the
// viewpoint grid, focus windows and zoom levels; between keyframes it
// caches frames and, at the next keyframe, replays them along the routes
// joining the two keyframe generations.
//
// A Controller is not safe for concurrent use.
type Controller struct {
	opts     options
	coord    *Coordinator
	renderer Renderer
	grid     *ViewpointGrid
	zoom     ZoomSearcher
	cache    *FrameCache
	pool     *parallel.Pool // nil scores on the calling goroutine

	// endpoints holds the live keyframe generation (C entries), and the
	// new one appended behind it while a replay runs (2C entries).
	endpoints []Endpoint
	// older is the generation before the live one, nil before the second
	// keyframe.
	older     []Endpoint
	state     State
	started   bool
	images    int
}

// NewController creates a controller for the rank of coord.
func NewController(coord *Coordinator, renderer Renderer, opts ...Option) (*Controller, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.compositor == nil {
		if coord.Size() > 1 {
			return nil, fmt.Errorf("%w: a compositor is required for %d ranks", ErrConfig, coord.Size())
		}
		o.compositor = passthrough{}
	}
	grid, err := NewViewpointGrid(o.rows, o.cols, o.radius, o.direction)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		opts:     o,
		coord:    coord,
		renderer: renderer,
		grid:     grid,
		zoom:     ZoomSearcher{Levels: o.zoomLevels, Auto: o.autoZoom, Entropy: o.entropy},
		cache:    NewFrameCache(o.entropyInterval - 1),
	}
	if o.workers != 1 && coord.IsRoot() {
		c.pool = parallel.NewPool(o.workers)
	}
	return c, nil
}

// Close stops the entropy workers. The controller must not be stepped
// afterwards.
func (c *Controller) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// score returns the entropy of every buffer in order.
func (c *Controller) score(frames []*FrameBuffer) []float64 {
	out := make([]float64, len(frames))
	eval := func(i int) { out[i] = c.opts.entropy(frames[i]) }
	if c.pool == nil {
		for i := range frames {
			eval(i)
		}
		return out
	}
	c.pool.Map(len(frames), eval)
	return out
}

// passthrough is the compositor of a single-rank group.
type passthrough struct{}

func (passthrough) Composite(_ context.Context, fb *FrameBuffer) (*FrameBuffer, error) {
	return fb, nil
}

// State returns the current controller state.
func (c *Controller) State() State { return c.state }

// Candidates returns C, the number of endpoints per keyframe generation.
func (c *Controller) Candidates() int { return c.opts.viewpoints * c.opts.focusCandidates }

// CacheSize returns the frame cache capacity.
func (c *Controller) CacheSize() int { return c.cache.Cap() }

// CachedFrames returns the number of frames waiting for replay.
func (c *Controller) CachedFrames() int { return c.cache.Len() }

// ReplayImages returns the number of images one full drain of the cache
// produces: CacheSize()·C² with C = Candidates(), times the zoom level count
// in fixed zoom mode.
func (c *Controller) ReplayImages() int {
	n := c.cache.Cap() * c.Candidates() * c.Candidates()
	if !c.zoom.Auto {
		n *= c.zoom.Levels
	}
	return n
}

// Images returns the number of images emitted so far. It is zero off root.
func (c *Controller) Images() int { return c.images }

// Endpoints returns a copy of the live endpoint window.
func (c *Controller) Endpoints() []Endpoint {
	return append([]Endpoint(nil), c.endpoints...)
}

// Grid returns the viewpoint grid.
func (c *Controller) Grid() *ViewpointGrid { return c.grid }

// classify decides what a step does.
func (c *Controller) classify(step int) stepKind {
	a := c.opts.analysisInterval
	switch {
	case c.opts.finalStep >= 0 && step == c.opts.finalStep:
		return stepKeyframe
	case step%a != 0:
		return stepSkip
	case !c.started || step%(a*c.opts.entropyInterval) == 0:
		return stepKeyframe
	default:
		return stepCache
	}
}

// Step feeds one simulation frame to the controller. Cancellation is only
// observed between steps: once a keyframe starts, its search and replay
// run to completion.
func (c *Controller) Step(ctx context.Context, frame Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	step := frame.Step()
	kind := c.classify(step)
	Logger().Debug("step", "rank", c.coord.Rank(), "step", step, "kind", kind, "state", c.state)

	switch kind {
	case stepSkip:
		return nil
	case stepCache:
		if err := c.cache.Push(frame); err != nil {
			return fmt.Errorf("%w: step %d: %w", ErrInvariant, step, err)
		}
		return nil
	}
	return c.keyframe(context.WithoutCancel(ctx), frame)
}

func (c *Controller) keyframe(ctx context.Context, frame Frame) error {
	step := frame.Step()
	before := c.images

	next, err := c.search(ctx, frame)
	if err != nil {
		return fmt.Errorf("keyframe %d: %w", step, err)
	}
	c.started = true

	cands := c.Candidates()
	if len(next) != cands {
		return fmt.Errorf("%w: keyframe %d produced %d endpoints, want %d", ErrInvariant, step, len(next), cands)
	}
	c.endpoints = append(c.endpoints, next...)
	if len(c.endpoints) == 2*cands {
		if c.cache.Len() > 0 {
			if err := c.replay(ctx, step, c.endpoints[:cands], next); err != nil {
				return fmt.Errorf("replay before keyframe %d: %w", step, err)
			}
		}
		c.older = append([]Endpoint(nil), c.endpoints[:cands]...)
		c.endpoints = append([]Endpoint(nil), c.endpoints[cands:]...)
	}
	if len(c.endpoints) != cands {
		return fmt.Errorf("%w: %d live endpoints, want %d", ErrInvariant, len(c.endpoints), cands)
	}

	if c.coord.IsRoot() {
		c.opts.telemetry.Images(step, c.images-before)
	}
	Logger().Info("keyframe", "rank", c.coord.Rank(), "step", step, "images", c.images-before)
	return nil
}

// search runs the viewpoint, focus and zoom search of one keyframe and
// returns the C new endpoints in candidate order.
func (c *Controller) search(ctx context.Context, frame Frame) ([]Endpoint, error) {
	step := frame.Step()
	root := c.coord.IsRoot()
	var times ProcTimes

	start := time.Now()
	locs := c.grid.Enumerate()
	var frames, scored []*FrameBuffer
	if root {
		frames = make([]*FrameBuffer, len(locs))
		scored = make([]*FrameBuffer, 0, len(locs))
	}
	for i, loc := range locs {
		fb, err := c.render(ctx, loc, frame)
		if err != nil {
			return nil, fmt.Errorf("viewpoint %d: %w", i, err)
		}
		if root && fb != nil {
			frames[i] = fb
			scored = append(scored, fb)
		}
	}
	var entropies []float64
	if root {
		entropies = c.score(scored)
	}
	picks, err := Decide(ctx, c.coord, func() ([]int, error) {
		grid, err := NewEntropyGrid(c.grid.Rows(), c.grid.Cols(), entropies)
		if err != nil {
			return nil, err
		}
		return SelectMaxima(grid, c.opts.viewpoints), nil
	})
	if err != nil {
		return nil, fmt.Errorf("select viewpoints: %w", err)
	}
	times.Entropy = time.Since(start)
	if root {
		c.opts.telemetry.FrameEntropies(step, entropies)
	}
	Logger().Debug("viewpoints selected", "rank", c.coord.Rank(), "step", step, "picks", picks)

	n := c.opts.focusCandidates
	endpoints := make([]Endpoint, 0, c.Candidates())
	for j, idx := range picks {
		if idx < 0 || idx >= c.grid.Len() {
			return nil, fmt.Errorf("%w: viewpoint index %d", ErrProtocol, idx)
		}
		loc := c.grid.At(idx)
		if root {
			c.opts.telemetry.Viewpoint(step, loc)
		}

		start = time.Now()
		focuses, err := Decide(ctx, c.coord, func() ([]mgl64.Vec3, error) {
			return c.focusPoints(step, frames[idx], loc), nil
		})
		if err != nil {
			return nil, fmt.Errorf("focus of viewpoint %d: %w", idx, err)
		}
		times.Focus += time.Since(start)
		if len(focuses) != n {
			return nil, fmt.Errorf("%w: %d focus points, want %d", ErrProtocol, len(focuses), n)
		}

		for q, focus := range focuses {
			start = time.Now()
			ep, err := c.zoomTo(ctx, frame, j*n+q, loc, focus)
			if err != nil {
				return nil, fmt.Errorf("zoom of candidate %d: %w", j*n+q, err)
			}
			times.Zoom += time.Since(start)
			endpoints = append(endpoints, ep)
		}
	}

	if err := c.reportTimes(ctx, step, times); err != nil {
		return nil, err
	}
	return endpoints, nil
}

// focusPoints picks the focus windows of fb and unprojects them into the
// scene. Points that fail to unproject fall back to the look-at point.
func (c *Controller) focusPoints(step int, fb *FrameBuffer, loc Location) []mgl64.Vec3 {
	wps := FocusWindows(fb, c.opts.divX, c.opts.divY, c.opts.focusCandidates, c.opts.focusPolicy, c.opts.entropy)
	out := make([]mgl64.Vec3, len(wps))
	for i, wp := range wps {
		p, err := c.renderer.Unproject(mgl64.Vec3{wp.X, wp.Y, wp.Depth}, loc)
		if err != nil {
			Logger().Warn("unproject failed, focusing on look-at", "step", step, "viewpoint", loc.Index, "err", err)
			p = loc.LookAt
		}
		out[i] = p
	}
	return out
}

// zoomTo runs the zoom sweep of one candidate, emits its images and
// returns the endpoint decided by root.
func (c *Controller) zoomTo(ctx context.Context, frame Frame, cand int, loc Location, focus mgl64.Vec3) (Endpoint, error) {
	step := frame.Step()
	res, err := c.zoom.Search(ctx, loc, focus, c.renderFunc(frame))
	if err != nil {
		return Endpoint{}, err
	}
	ep, err := Decide(ctx, c.coord, func() (Endpoint, error) {
		return EndpointOf(res.Chosen().Location), nil
	})
	if err != nil {
		return Endpoint{}, err
	}
	if !c.coord.IsRoot() {
		return ep, nil
	}

	c.opts.telemetry.ZoomEntropies(step, cand, res.Entropies())
	levels := res.Levels
	if c.zoom.Auto {
		levels = levels[res.Best : res.Best+1]
	}
	for _, l := range levels {
		c.emit(EmittedImage{
			Step:      step,
			Candidate: cand,
			Level:     l.Level,
			Entropy:   l.Entropy,
			Location:  l.Location,
			Frame:     l.Frame,
		})
	}
	return ep, nil
}

// replay synthesizes the routes from prev to next and renders every
// cached frame along each of them. The cache is empty afterwards.
func (c *Controller) replay(ctx context.Context, step int, prev, next []Endpoint) error {
	m := c.cache.Len()
	c.state = State{Phase: Synthesizing}
	routes, err := Decide(ctx, c.coord, func() ([]Route, error) {
		return c.opts.interpolation.Routes(c.older, prev, next, m)
	})
	if err != nil {
		return fmt.Errorf("synthesize routes: %w", err)
	}
	if c.coord.IsRoot() {
		c.opts.telemetry.Routes(step, routes)
	}
	Logger().Info("replaying", "rank", c.coord.Rank(), "step", step, "routes", len(routes), "frames", m)

	for r, route := range routes {
		if len(route.Points) != m {
			return fmt.Errorf("%w: route %d has %d points for %d frames", ErrInvariant, route.ID, len(route.Points), m)
		}
		last := r == len(routes)-1
		for i, p := range route.Points {
			c.state = State{Phase: Replaying, Route: route.ID, Frame: i}
			f, ok := c.cache.Pop()
			if !ok {
				return fmt.Errorf("%w: cache empty at route %d frame %d", ErrInvariant, route.ID, i)
			}
			if err := c.playback(ctx, f, route.ID, p); err != nil {
				return fmt.Errorf("route %d frame %d: %w", route.ID, i, err)
			}
			if !last {
				if err := c.cache.Requeue(f); err != nil {
					return fmt.Errorf("%w: %w", ErrInvariant, err)
				}
			}
		}
	}
	if c.cache.Len() != 0 {
		return fmt.Errorf("%w: %d frames left after replay", ErrInvariant, c.cache.Len())
	}
	c.state = State{Phase: Accumulating}
	return nil
}

// playback renders one cached frame at a path point. The images carry the
// frame's own step.
func (c *Controller) playback(ctx context.Context, f Frame, route int, p PathPoint) error {
	loc := p.Location(PlaybackCandidate, c.opts.direction)
	if c.zoom.Auto {
		fb, err := c.render(ctx, loc, f)
		if err != nil {
			return err
		}
		img := EmittedImage{
			Step:      f.Step(),
			Candidate: PlaybackCandidate,
			Route:     route,
			Location:  loc,
			Frame:     fb,
		}
		if fb != nil {
			img.Entropy = c.opts.entropy(fb)
		}
		c.emitPlayback(img)
		return nil
	}

	res, err := c.zoom.Search(ctx, loc, p.Focus, c.renderFunc(f))
	if err != nil {
		return err
	}
	for _, l := range res.Levels {
		c.emitPlayback(EmittedImage{
			Step:      f.Step(),
			Candidate: PlaybackCandidate,
			Level:     l.Level,
			Route:     route,
			Entropy:   l.Entropy,
			Location:  l.Location,
			Frame:     l.Frame,
		})
	}
	return nil
}

// render renders loc on every rank and composites the result. Only root
// receives a buffer.
func (c *Controller) render(ctx context.Context, loc Location, frame Frame) (*FrameBuffer, error) {
	local, err := c.renderer.Render(ctx, loc, frame)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	fb, err := c.opts.compositor.Composite(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("composite: %w", wrapComm(err))
	}
	if !c.coord.IsRoot() {
		return nil, nil
	}
	return fb, nil
}

func (c *Controller) renderFunc(frame Frame) RenderFunc {
	return func(ctx context.Context, loc Location) (*FrameBuffer, error) {
		return c.render(ctx, loc, frame)
	}
}

// emit hands an image to the sink. Sink failures are logged, not returned.
func (c *Controller) emit(img EmittedImage) {
	if img.Frame == nil {
		return
	}
	img.Space = img.Location.Index
	c.images++
	if err := c.opts.sink.Emit(img); err != nil {
		Logger().Warn("failed to emit image",
			"step", img.Step, "candidate", img.Candidate, "level", img.Level, "route", img.Route, "err", err)
	}
}

// emitPlayback emits a route image and records its entropy.
func (c *Controller) emitPlayback(img EmittedImage) {
	if img.Frame == nil {
		return
	}
	c.opts.telemetry.PathEntropies(img.Step, img.Route, img.Entropy)
	c.emit(img)
}

// reportTimes reduces the search timings to their maximum across ranks.
func (c *Controller) reportTimes(ctx context.Context, step int, t ProcTimes) error {
	maxes, err := c.coord.ReduceMax(ctx, []float64{t.Entropy.Seconds(), t.Focus.Seconds(), t.Zoom.Seconds()})
	if err != nil {
		return fmt.Errorf("reduce timings: %w", err)
	}
	if c.coord.IsRoot() {
		c.opts.telemetry.ProcTimes(step, ProcTimes{
			Entropy: seconds(maxes[0]),
			Focus:   seconds(maxes[1]),
			Zoom:    seconds(maxes[2]),
		})
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
