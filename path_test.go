package insitu

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func endpointAt(p, focus mgl64.Vec3) Endpoint {
	return Endpoint{Position: p, Rotation: RotationFor(p), Focus: focus}
}

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		r1, r2 float64
	}{
		{1, 2},
		{12, 3.5},
		{-4, 4},
		{7, 7},
	}
	for _, tt := range tests {
		if got := Smoothstep(tt.r1, tt.r2, 0); got != tt.r1 {
			t.Errorf("Smoothstep(%v, %v, 0) = %v, want %v", tt.r1, tt.r2, got, tt.r1)
		}
		if got := Smoothstep(tt.r1, tt.r2, 1); got != tt.r2 {
			t.Errorf("Smoothstep(%v, %v, 1) = %v, want %v", tt.r1, tt.r2, got, tt.r2)
		}
		mid := (tt.r1 + tt.r2) / 2
		if got := Smoothstep(tt.r1, tt.r2, 0.5); math.Abs(got-mid) > 1e-12 {
			t.Errorf("Smoothstep(%v, %v, 0.5) = %v, want %v", tt.r1, tt.r2, got, mid)
		}
	}
}

func TestSmoothstepEasesIn(t *testing.T) {
	// Eased motion covers less than the linear share near the ends.
	if got := Smoothstep(0, 1, 0.1); got >= 0.1 {
		t.Errorf("Smoothstep(0, 1, 0.1) = %v, want < 0.1", got)
	}
	if got := Smoothstep(0, 1, 0.9); got <= 0.9 {
		t.Errorf("Smoothstep(0, 1, 0.9) = %v, want > 0.9", got)
	}
}

func TestSlerpOppositeRotations(t *testing.T) {
	q1 := mgl64.QuatIdent()
	q2 := mgl64.QuatRotate(math.Pi, mgl64.Vec3{0, 0, 1})

	mid := mgl64.QuatSlerp(q1, q2, 0.5)
	if math.Abs(mid.Len()-1) > 1e-9 {
		t.Errorf("slerp midpoint length = %v, want 1", mid.Len())
	}
	// Halfway in angle: a quarter turn from either end.
	angle := 2 * math.Acos(math.Min(1, math.Abs(mid.Dot(q1))))
	if math.Abs(angle-math.Pi/2) > 1e-6 {
		t.Errorf("slerp midpoint angle = %v, want %v", angle, math.Pi/2)
	}
	// Repeated evaluation is consistent.
	if again := mgl64.QuatSlerp(q1, q2, 0.5); again != mid {
		t.Errorf("slerp not deterministic: %v vs %v", again, mid)
	}
}

func TestSynthesize(t *testing.T) {
	from := endpointAt(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{0, 0, 0})
	to := endpointAt(mgl64.Vec3{10, 0, 0}, mgl64.Vec3{2, 0, 0})

	const n = 5
	points, stats := Synthesize(from, to, n)
	if len(points) != n {
		t.Fatalf("len(points) = %d, want %d", len(points), n)
	}

	// Endpoints are excluded: the first point sits at t = 1/(n+1).
	first := points[0]
	wantFocus := mgl64.Vec3{2.0 / 6, 0, 0}
	if !vecApprox(first.Focus, wantFocus) {
		t.Errorf("first focus = %v, want %v", first.Focus, wantFocus)
	}
	for i, p := range points {
		if math.Abs(p.State.Radius-10) > 1e-9 {
			t.Errorf("points[%d].Radius = %v, want 10", i, p.State.Radius)
		}
	}

	// Middle point of an odd count is at t = 0.5 on the equator, 45° around.
	mid := points[2].Location(0, Uni).Position
	want := mgl64.Vec3{10 * math.Sqrt2 / 2, 0, 10 * math.Sqrt2 / 2}
	if !vecApprox(mid, want) {
		t.Errorf("middle position = %v, want %v", mid, want)
	}

	// A quarter circle of radius 10.
	if math.Abs(stats.CameraLength-5*math.Pi) > 1e-3 {
		t.Errorf("CameraLength = %v, want %v", stats.CameraLength, 5*math.Pi)
	}
	if stats.FocusLength != 2 {
		t.Errorf("FocusLength = %v, want 2", stats.FocusLength)
	}
}

func TestSynthesizeZeroPoints(t *testing.T) {
	e := endpointAt(mgl64.Vec3{0, 3, 0}, mgl64.Vec3{})
	points, stats := Synthesize(e, e, 0)
	if len(points) != 0 {
		t.Errorf("len(points) = %d, want 0", len(points))
	}
	if stats.CameraLength > 1e-9 {
		t.Errorf("CameraLength = %v, want 0", stats.CameraLength)
	}
}

func TestSynthesizeRoutes(t *testing.T) {
	prev := []Endpoint{
		endpointAt(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{}),
		endpointAt(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{}),
	}
	next := []Endpoint{
		endpointAt(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{1, 0, 0}),
		endpointAt(mgl64.Vec3{0, 0, -5}, mgl64.Vec3{0, 1, 0}),
	}

	routes, err := SynthesizeRoutes(prev, next, 3)
	if err != nil {
		t.Fatalf("SynthesizeRoutes() = %v", err)
	}
	if len(routes) != 4 {
		t.Fatalf("len(routes) = %d, want 4", len(routes))
	}
	for i, r := range routes {
		if r.ID != i || r.From != i/2 || r.To != i%2 {
			t.Errorf("routes[%d] = id %d from %d to %d", i, r.ID, r.From, r.To)
		}
		if len(r.Points) != 3 {
			t.Errorf("routes[%d] has %d points, want 3", i, len(r.Points))
		}
	}
}

func TestSynthesizeRoutesMismatch(t *testing.T) {
	_, err := SynthesizeRoutes(make([]Endpoint, 2), make([]Endpoint, 1), 3)
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("SynthesizeRoutes() error = %v, want ErrInvariant", err)
	}
}

func TestSquadRotationHitsEndpoints(t *testing.T) {
	z := mgl64.Vec3{0, 0, 1}
	x := mgl64.Vec3{1, 0, 0}
	tests := []struct {
		name           string
		q0, q1, q2, q3 mgl64.Quat
	}{
		{"no neighbors", mgl64.QuatIdent(), mgl64.QuatIdent(), mgl64.QuatRotate(1, z), mgl64.QuatRotate(1, z)},
		{"neighbors", mgl64.QuatRotate(-0.8, x), mgl64.QuatIdent(), mgl64.QuatRotate(1.2, z), mgl64.QuatRotate(2, x)},
		{"opposite sign", mgl64.QuatRotate(0.3, x), mgl64.QuatRotate(0.5, z), mgl64.QuatRotate(2.5, z).Scale(-1), mgl64.QuatRotate(2.5, z)},
		{"half turn", mgl64.QuatIdent(), mgl64.QuatIdent(), mgl64.QuatRotate(math.Pi, z), mgl64.QuatRotate(math.Pi, z)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rot := SquadRotation(tt.q0, tt.q1, tt.q2, tt.q3)
			if got := rot(0); !got.OrientationEqualThreshold(tt.q1, 1e-9) {
				t.Errorf("rot(0) = %v, want %v", got, tt.q1)
			}
			if got := rot(1); !got.OrientationEqualThreshold(tt.q2, 1e-9) {
				t.Errorf("rot(1) = %v, want %v", got, tt.q2)
			}
			for _, u := range []float64{0.25, 0.5, 0.75} {
				if l := rot(u).Len(); math.Abs(l-1) > 1e-9 {
					t.Errorf("|rot(%v)| = %v, want 1", u, l)
				}
			}
		})
	}
}

func TestSquadRoutesFollowOlderGeneration(t *testing.T) {
	older := []Endpoint{endpointAt(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{})}
	prev := []Endpoint{endpointAt(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{})}
	next := []Endpoint{endpointAt(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{})}

	slerp, err := Slerp.Routes(older, prev, next, 3)
	if err != nil {
		t.Fatalf("Slerp.Routes() = %v", err)
	}
	squad, err := Squad.Routes(older, prev, next, 3)
	if err != nil {
		t.Fatalf("Squad.Routes() = %v", err)
	}
	first, err := Squad.Routes(nil, prev, next, 3)
	if err != nil {
		t.Fatalf("Squad.Routes(nil) = %v", err)
	}

	ref, _ := Synthesize(prev[0], next[0], 3)
	for i, p := range slerp[0].Points {
		if p.State.Rotation != ref[i].State.Rotation {
			t.Errorf("slerp point %d = %v, want %v", i, p.State.Rotation, ref[i].State.Rotation)
		}
	}
	mid := func(r Route) mgl64.Quat { return r.Points[1].State.Rotation }
	if mid(squad[0]).OrientationEqualThreshold(mid(slerp[0]), 1e-6) {
		t.Errorf("squad midpoint %v equals slerp midpoint", mid(squad[0]))
	}
	if mid(squad[0]).OrientationEqualThreshold(mid(first[0]), 1e-6) {
		t.Errorf("squad midpoint %v ignores the older generation", mid(squad[0]))
	}
	for i, p := range squad[0].Points {
		if l := p.State.Rotation.Len(); math.Abs(l-1) > 1e-9 {
			t.Errorf("squad point %d |q| = %v, want 1", i, l)
		}
	}

	if _, err := Squad.Routes(make([]Endpoint, 2), prev, next, 3); !errors.Is(err, ErrInvariant) {
		t.Errorf("Squad.Routes() with short older = %v, want ErrInvariant", err)
	}
}

func TestParseInterpolation(t *testing.T) {
	for _, m := range []Interpolation{Slerp, Squad} {
		got, err := ParseInterpolation(m.String())
		if err != nil || got != m {
			t.Errorf("ParseInterpolation(%q) = %v, %v", m.String(), got, err)
		}
	}
	if got, err := ParseInterpolation(""); err != nil || got != Slerp {
		t.Errorf("ParseInterpolation(\"\") = %v, %v, want slerp", got, err)
	}
	if _, err := ParseInterpolation("bezier"); !errors.Is(err, ErrConfig) {
		t.Errorf("ParseInterpolation(bezier) error = %v, want ErrConfig", err)
	}
}

func BenchmarkSynthesize(b *testing.B) {
	from := endpointAt(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{})
	to := endpointAt(mgl64.Vec3{3, 8, 1}, mgl64.Vec3{1, 1, 1})
	b.ReportAllocs()
	for b.Loop() {
		_, _ = Synthesize(from, to, 9)
	}
}
