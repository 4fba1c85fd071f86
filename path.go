package insitu

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
)

// pathLengthSamples is the sampling resolution of path-length telemetry.
const pathLengthSamples = 512

// PathState is one interpolated camera pose.
type PathState struct {
	Radius   float64
	Rotation mgl64.Quat
}

// PathPoint pairs a pose with the focus point it looks at. Keeping both in
// one value means a path's poses and focus points can only be consumed
// together.
type PathPoint struct {
	State PathState
	Focus mgl64.Vec3
}

// Location returns the camera location of the path point.
func (p PathPoint) Location(index int, dir Direction) Location {
	return ERPLocation(index, dir, p.State.Radius, p.State.Rotation, p.Focus)
}

// PathStats is the telemetry of one synthesized path.
type PathStats struct {
	// CameraLength is the camera trajectory length, densely sampled.
	CameraLength float64
	// FocusLength is the straight-line distance between the focus points.
	FocusLength float64
	// Elapsed is the synthesis time.
	Elapsed time.Duration
}

// Route is the path from one previous endpoint to one new endpoint.
type Route struct {
	ID     int
	From   int
	To     int
	Points []PathPoint
	Stats  PathStats
}

// Smoothstep eases the radius from r1 at t=0 to r2 at t=1.
func Smoothstep(r1, r2, t float64) float64 {
	return (r2-r1)*t*t*(3-2*t) + r1
}

// Interpolation selects how route rotations are interpolated.
type Interpolation int

const (
	// Slerp interpolates along the great arc between the two endpoints.
	Slerp Interpolation = iota
	// Squad is spherical quadrangle interpolation. The rotations adjacent
	// to the route in the endpoint window shape its tangents.
	Squad
)

// String returns the interpolation name.
func (m Interpolation) String() string {
	switch m {
	case Slerp:
		return "slerp"
	case Squad:
		return "squad"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(m))
	}
}

// ParseInterpolation parses an interpolation name as produced by String.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "slerp", "":
		return Slerp, nil
	case "squad":
		return Squad, nil
	default:
		return Slerp, fmt.Errorf("%w: unknown interpolation %q", ErrConfig, s)
	}
}

// RotationFunc returns the rotation at t in [0, 1] between two endpoints.
type RotationFunc func(t float64) mgl64.Quat

// SlerpRotation interpolates from q1 to q2.
func SlerpRotation(q1, q2 mgl64.Quat) RotationFunc {
	return func(t float64) mgl64.Quat {
		return mgl64.QuatSlerp(q1, q2, t)
	}
}

// SquadRotation interpolates from q1 to q2. q0 precedes q1 and q3 follows
// q2; pass q1 or q2 again where there is no neighbor.
func SquadRotation(q0, q1, q2, q3 mgl64.Quat) RotationFunc {
	q0, q1, q2, q3 = q0.Normalize(), q1.Normalize(), q2.Normalize(), q3.Normalize()
	if q0.Dot(q1) < 0 {
		q1 = q1.Scale(-1)
	}
	if q1.Dot(q2) < 0 {
		q2 = q2.Scale(-1)
	}
	if q2.Dot(q3) < 0 {
		q3 = q3.Scale(-1)
	}
	a := squadControl(q0, q1, q2)
	b := squadControl(q1, q2, q3)
	return func(t float64) mgl64.Quat {
		return mgl64.QuatSlerp(
			mgl64.QuatSlerp(q1, q2, t),
			mgl64.QuatSlerp(a, b, t),
			2*t*(1-t))
	}
}

// squadControl returns the inner control point at q:
// q·exp(−(log(q⁻¹·next) + log(q⁻¹·prev))/4).
func squadControl(prev, q, next mgl64.Quat) mgl64.Quat {
	inv := q.Conjugate()
	l := quatLog(inv.Mul(next)).Add(quatLog(inv.Mul(prev)))
	return q.Mul(quatExp(l.Scale(-0.25))).Normalize()
}

// quatLog is the logarithm of a unit quaternion, a pure quaternion.
func quatLog(q mgl64.Quat) mgl64.Quat {
	w := mgl64.Clamp(q.W, -1, 1)
	theta := math.Acos(w)
	s := math.Sin(theta)
	if s < 1e-12 {
		return mgl64.Quat{}
	}
	return mgl64.Quat{V: q.V.Mul(theta / s)}
}

// quatExp is the exponential of a pure quaternion.
func quatExp(q mgl64.Quat) mgl64.Quat {
	theta := q.V.Len()
	if theta < 1e-12 {
		return mgl64.Quat{W: 1, V: q.V}
	}
	sn, cs := math.Sincos(theta)
	return mgl64.Quat{W: cs, V: q.V.Mul(sn / theta)}
}

// interpolate returns the pose and focus at t between two endpoints.
func interpolate(from, to Endpoint, rot RotationFunc, t float64) PathPoint {
	return PathPoint{
		State: PathState{
			Radius:   Smoothstep(from.Radius(), to.Radius(), t),
			Rotation: rot(t),
		},
		Focus: from.Focus.Mul(1 - t).Add(to.Focus.Mul(t)),
	}
}

// Synthesize produces n intermediate points between two endpoints at
// t = (i+1)/(n+1) with SLERP rotations; the endpoints themselves are
// excluded.
func Synthesize(from, to Endpoint, n int) ([]PathPoint, PathStats) {
	return SynthesizeFunc(from, to, SlerpRotation(from.Rotation, to.Rotation), n)
}

// SynthesizeFunc is Synthesize with the rotations given by rot.
func SynthesizeFunc(from, to Endpoint, rot RotationFunc, n int) ([]PathPoint, PathStats) {
	start := time.Now()

	points := make([]PathPoint, n)
	for i := range points {
		t := float64(i+1) / float64(n+1)
		points[i] = interpolate(from, to, rot, t)
	}

	stats := PathStats{
		CameraLength: cameraPathLength(from, to, rot),
		FocusLength:  to.Focus.Sub(from.Focus).Len(),
	}
	stats.Elapsed = time.Since(start)
	return points, stats
}

// cameraPathLength sums the distances between densely sampled positions.
func cameraPathLength(from, to Endpoint, rot RotationFunc) float64 {
	var length float64
	prev := from.Rotation.Rotate(mgl64.Vec3{0, from.Radius(), 0})
	for i := 1; i <= pathLengthSamples; i++ {
		t := float64(i) / pathLengthSamples
		p := interpolate(from, to, rot, t)
		cur := p.State.Rotation.Rotate(mgl64.Vec3{0, p.State.Radius, 0})
		length += floats.Distance(prev[:], cur[:], 2)
		prev = cur
	}
	return length
}

// SynthesizeRoutes builds the C×C directed routes from every previous
// endpoint to every new endpoint with SLERP rotations. Route j*C+k runs from
// prev[j] to next[k].
func SynthesizeRoutes(prev, next []Endpoint, n int) ([]Route, error) {
	return Slerp.Routes(nil, prev, next, n)
}

// Routes builds the C×C directed routes from prev to next. For Squad, the
// route from prev[j] leaves along the tangent set by older[j], the endpoint
// prev[j] was reached from; a nil older stands for a first generation.
// Nothing follows next, so each route arrives with next[k] as its own
// neighbor.
func (m Interpolation) Routes(older, prev, next []Endpoint, n int) ([]Route, error) {
	if len(prev) != len(next) {
		return nil, fmt.Errorf("%w: %d previous endpoints, %d new", ErrInvariant, len(prev), len(next))
	}
	if older != nil && len(older) != len(prev) {
		return nil, fmt.Errorf("%w: %d older endpoints, %d previous", ErrInvariant, len(older), len(prev))
	}
	c := len(next)
	routes := make([]Route, 0, c*c)
	for j := range prev {
		for k := range next {
			from, to := prev[j], next[k]
			rot := SlerpRotation(from.Rotation, to.Rotation)
			if m == Squad {
				before := from.Rotation
				if older != nil {
					before = older[j].Rotation
				}
				rot = SquadRotation(before, from.Rotation, to.Rotation, to.Rotation)
			}
			points, stats := SynthesizeFunc(from, to, rot, n)
			routes = append(routes, Route{
				ID:     j*c + k,
				From:   j,
				To:     k,
				Points: points,
				Stats:  stats,
			})
		}
	}
	return routes, nil
}
