package insitu

import "fmt"

// Phase is the playback phase of the controller.
type Phase int

const (
	// Accumulating caches analysis frames between keyframes.
	Accumulating Phase = iota
	// Synthesizing builds the routes between two keyframe generations.
	Synthesizing
	// Replaying renders cached frames along a route.
	Replaying
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Accumulating:
		return "accumulating"
	case Synthesizing:
		return "synthesizing"
	case Replaying:
		return "replaying"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the controller state. Route and Frame are only meaningful while
// Replaying.
type State struct {
	Phase Phase
	Route int
	Frame int
}

// String returns a compact form of the state.
func (s State) String() string {
	if s.Phase == Replaying {
		return fmt.Sprintf("replaying(route=%d, frame=%d)", s.Route, s.Frame)
	}
	return s.Phase.String()
}

// stepKind classifies a simulation step.
type stepKind int

const (
	stepSkip stepKind = iota
	stepCache
	stepKeyframe
)

func (k stepKind) String() string {
	switch k {
	case stepSkip:
		return "skip"
	case stepCache:
		return "cache"
	default:
		return "keyframe"
	}
}
