// Package insitu steers a virtual camera through a running simulation by
// viewpoint entropy, for distributed in-situ visualization.
//
// # Overview
//
// A Controller is handed every simulation step. On keyframe steps it renders
// the frame from every location of a spherical viewpoint grid, keeps the
// viewpoints of highest entropy, narrows each onto its most informative
// screen region and searches for the best zoom. Between keyframes it caches
// frames; once two keyframes' worth of endpoints exist it synthesizes a
// smooth camera path between them and replays the cached frames along it.
//
// # Quick Start
//
//	import "github.com/gogpu/insitu"
//
//	coord, _ := insitu.NewCoordinator(c, 0)
//	ctrl, err := insitu.NewController(coord, renderer,
//	    insitu.WithGrid(5, 8, 12),
//	    insitu.WithIntervals(1, 10),
//	    insitu.WithSink(sink),
//	)
//	for frame := range frames {
//	    if err := ctrl.Step(ctx, frame); err != nil {
//	        return err
//	    }
//	}
//
// # Process Groups
//
// Every rank of a group runs its own Controller over its share of the data.
// Rendering and compositing are collective; root alone computes entropies
// and broadcasts every decision so that all ranks follow the same camera.
// The comm package provides in-process and TCP groups.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Controller, Option, Config, Coordinator
//   - Analysis: ViewpointGrid, EntropyGrid, FocusWindows, ZoomSearcher
//   - Paths: Synthesize, SynthesizeRoutes, FrameCache
//   - Collaborators: Renderer, Compositor, ImageSink, Telemetry
//   - Sub-packages: comm (collectives), composite (depth compositing),
//     output (image files), telemetry (CSV series and run manifest)
//
// # Coordinate System
//
// Frame buffers store rows top to bottom. Window points passed to
// Renderer.Unproject use the OpenGL convention:
//   - Origin (0,0) at bottom-left
//   - X increases right
//   - Y increases up
//   - Depth in [0, 1], 1 is the far plane
package insitu

// Version is the current version of the library.
const Version = "0.1.0"
