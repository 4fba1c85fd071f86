package insitu

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Direction is the view direction type of a camera location.
type Direction int

const (
	// Uni renders a single view looking at LookAt.
	Uni Direction = iota
	// Omni renders every direction around the position.
	Omni
	// Adaptive lets the renderer choose the direction.
	Adaptive
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Uni:
		return "uni"
	case Omni:
		return "omni"
	case Adaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses a direction name as produced by String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "uni", "":
		return Uni, nil
	case "omni":
		return Omni, nil
	case "adaptive":
		return Adaptive, nil
	default:
		return Uni, fmt.Errorf("%w: unknown direction %q", ErrConfig, s)
	}
}

// Location is an immutable camera pose. Focusing and zooming produce
// modified copies; the viewpoint grid's locations are never changed.
type Location struct {
	Index     int
	Direction Direction
	Position  mgl64.Vec3
	Up        mgl64.Vec3
	Rotation  mgl64.Quat
	LookAt    mgl64.Vec3
}

// baseAxis is the reference camera direction: a camera at +Y looking down.
var baseAxis = mgl64.Vec3{0, 1, 0}

// baseUp is the up vector of the reference camera.
var baseUp = mgl64.Vec3{0, 0, -1}

// RotationFor returns the camera rotation of a viewpoint at position.
// It composes the azimuth about +Y with the rotation taking +Y onto
// position, so that Rotate((0, r, 0)) lands on the position.
func RotationFor(position mgl64.Vec3) mgl64.Quat {
	if position.Len() < 1e-12 {
		return mgl64.QuatIdent()
	}
	phi := math.Atan2(position.X(), position.Z())
	qPhi := mgl64.QuatRotate(phi, baseAxis)
	qTheta := mgl64.QuatBetweenVectors(baseAxis, position)
	return qTheta.Mul(qPhi).Normalize()
}

// NewLocation builds the location of a viewpoint at position looking at
// lookAt. Up is derived from the rotation.
func NewLocation(index int, dir Direction, position, lookAt mgl64.Vec3) Location {
	rot := RotationFor(position)
	return Location{
		Index:     index,
		Direction: dir,
		Position:  position,
		Up:        rot.Rotate(baseUp),
		Rotation:  rot,
		LookAt:    lookAt,
	}
}

// Focused returns a copy of l aimed at focus. The up vector is turned by
// the rotation between the old and new view directions.
func (l Location) Focused(focus mgl64.Vec3) Location {
	from := l.LookAt.Sub(l.Position)
	to := focus.Sub(l.Position)
	out := l
	out.LookAt = focus
	if from.Len() < 1e-12 || to.Len() < 1e-12 {
		return out
	}
	r := mgl64.QuatBetweenVectors(from, to)
	out.Up = r.Rotate(l.Up)
	out.Rotation = r.Mul(l.Rotation).Normalize()
	return out
}

// MovedTo returns a copy of l at position, re-oriented for that position
// and aimed at focus.
func (l Location) MovedTo(position, focus mgl64.Vec3) Location {
	moved := NewLocation(l.Index, l.Direction, position, l.LookAt)
	return moved.Focused(focus)
}

// ERPLocation builds the location of one interpolated path pose: the camera
// sits at Rotate((0, radius, 0), rotation) and is aimed at focus.
func ERPLocation(index int, dir Direction, radius float64, rotation mgl64.Quat, focus mgl64.Vec3) Location {
	l := Location{
		Index:     index,
		Direction: dir,
		Position:  rotation.Rotate(mgl64.Vec3{0, radius, 0}),
		Up:        rotation.Rotate(baseUp),
		Rotation:  rotation,
	}
	return l.Focused(focus)
}

// View returns the view matrix of the location.
func (l Location) View() mgl64.Mat4 {
	return mgl64.LookAtV(l.Position, l.LookAt, l.Up)
}

// Endpoint is one recorded keyframe result: where the camera ended up and
// what it looked at. Paths are synthesized between pairs of endpoints.
type Endpoint struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Focus    mgl64.Vec3
}

// Radius returns the distance of the endpoint from the origin.
func (e Endpoint) Radius() float64 {
	return e.Position.Len()
}

// EndpointOf records a location as an endpoint. The rotation is recomputed
// from the position so that path replay reproduces the position exactly.
func EndpointOf(l Location) Endpoint {
	return Endpoint{
		Position: l.Position,
		Rotation: RotationFor(l.Position),
		Focus:    l.LookAt,
	}
}
