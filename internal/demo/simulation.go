// Package demo provides a small heated-sphere particle simulation and a
// point-splat renderer that drive the controller from the command line.
//
// Each rank owns a disjoint share of the particles. Every rank seeds the
// same generator, so the union of the shares is the same cloud for any
// group size.
package demo

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrFrameType is returned when the renderer is handed a frame it did not
// produce.
var ErrFrameType = errors.New("demo: unsupported frame type")

const (
	hotWidth  = 1.5
	relax     = 4.0
	swirl     = 0.6
	buoyancy  = 2.5
	diffusion = 0.15
	orbit     = 0.8
)

// Particle is one tracer of the simulation.
type Particle struct {
	Position    mgl64.Vec3
	Temperature float64 // normalized to [0, 1]
}

// Frame is a snapshot of this rank's particles at one step.
type Frame struct {
	step      int
	Particles []Particle
}

// Step implements insitu.Frame.
func (f *Frame) Step() int { return f.step }

// SimOptions configures a Simulation.
type SimOptions struct {
	Particles int
	Seed      int64
	TimeStep  float64
	Radius    float64
}

// Simulation advects particles inside a sphere heated by a source that
// orbits below the equator. Hot particles rise, everything swirls around
// the Y axis, and particles leaving the sphere re-enter mirrored in height.
type Simulation struct {
	opts      SimOptions
	step      int
	time      float64
	particles []Particle
	noise     distuv.Normal
}

// NewSimulation returns the share of rank in a group of size.
func NewSimulation(opts SimOptions, rank, size int) (*Simulation, error) {
	if opts.Particles < 1 {
		return nil, fmt.Errorf("demo: particle count %d", opts.Particles)
	}
	if opts.TimeStep <= 0 {
		return nil, fmt.Errorf("demo: time step %v", opts.TimeStep)
	}
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("demo: rank %d of %d", rank, size)
	}
	if opts.Radius <= 0 {
		opts.Radius = 4
	}

	seed := uint64(opts.Seed) //nolint:gosec // any bit pattern is a valid seed
	cube := distuv.Uniform{Min: -opts.Radius, Max: opts.Radius, Src: rand.NewPCG(seed, 0)}
	s := &Simulation{
		opts:      opts,
		particles: make([]Particle, 0, opts.Particles/size+1),
		noise:     distuv.Normal{Mu: 0, Sigma: diffusion, Src: rand.NewPCG(seed, uint64(rank)+1)}, //nolint:gosec // rank >= 0
	}
	r2 := opts.Radius * opts.Radius
	for i := 0; i < opts.Particles; {
		p := mgl64.Vec3{cube.Rand(), cube.Rand(), cube.Rand()}
		if p.LenSqr() > r2 {
			continue
		}
		if i%size == rank {
			s.particles = append(s.particles, Particle{Position: p})
		}
		i++
	}
	return s, nil
}

// Len returns the number of particles owned by this rank.
func (s *Simulation) Len() int { return len(s.particles) }

// HotSpot returns the current position of the heat source.
func (s *Simulation) HotSpot() mgl64.Vec3 {
	a := orbit * s.time
	r := s.opts.Radius / 2
	return mgl64.Vec3{r * math.Cos(a), -s.opts.Radius / 3, r * math.Sin(a)}
}

// Advance returns a snapshot of the current step and integrates one time
// step. Snapshots are independent of later steps.
func (s *Simulation) Advance() *Frame {
	f := &Frame{step: s.step, Particles: append([]Particle(nil), s.particles...)}

	dt := s.opts.TimeStep
	hot := s.HotSpot()
	k := math.Min(1, relax*dt)
	sq := math.Sqrt(dt)
	r := s.opts.Radius
	for i := range s.particles {
		p := &s.particles[i]
		target := math.Exp(-p.Position.Sub(hot).LenSqr() / (hotWidth * hotWidth))
		p.Temperature += (target - p.Temperature) * k

		v := mgl64.Vec3{-p.Position.Z(), 0, p.Position.X()}.Mul(swirl)
		v[1] += buoyancy * (p.Temperature - 0.1)
		jitter := mgl64.Vec3{s.noise.Rand(), s.noise.Rand(), s.noise.Rand()}
		p.Position = p.Position.Add(v.Mul(dt)).Add(jitter.Mul(sq))

		if l := p.Position.Len(); l > r {
			p.Position = p.Position.Mul(r / l)
			p.Position[1] = -p.Position[1]
			p.Temperature *= 0.5
		}
	}
	s.time += dt
	s.step++
	return f
}
