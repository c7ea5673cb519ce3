// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package solver advances the stable-fluids state one tick at a time.
//
// The Solver owns the simulation fields and issues every kernel dispatch
// through a kernel.Executor. It holds no parameters of its own: each Step
// receives the snapshot to use for that tick.
package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
)

// ErrReleased is returned by dispatching methods after Release, or after a
// Resize that failed to allocate.
var ErrReleased = errors.New("solver: fields released")

// PressureDecay scales the previous tick's pressure before relaxation.
const PressureDecay = 0.8

// Grid holds the dimensions of the velocity-sized fields (velocity,
// pressure, divergence, curl) and of the dye.
type Grid struct {
	VelocityWidth, VelocityHeight int
	DyeWidth, DyeHeight           int
}

// GridSize returns the dimensions of a grid whose shorter side is
// resolution and whose longer side follows the aspect of width x height.
func GridSize(resolution, width, height int) (int, int) {
	if width <= 0 || height <= 0 {
		return resolution, resolution
	}
	aspect := float64(width) / float64(height)
	if aspect < 1 {
		aspect = 1 / aspect
	}
	long := int(math.Round(float64(resolution) * aspect))
	if width >= height {
		return long, resolution
	}
	return resolution, long
}

// NewGrid sizes both grids for a canvas of width x height.
func NewGrid(velocityResolution, dyeResolution, width, height int) Grid {
	var g Grid
	g.VelocityWidth, g.VelocityHeight = GridSize(velocityResolution, width, height)
	g.DyeWidth, g.DyeHeight = GridSize(dyeResolution, width, height)
	return g
}

// StepParams is the per-tick parameter snapshot of Step.
type StepParams struct {
	Viscosity          float32
	Diffusion          float32
	PressureIterations int
	CurlStrength       float32
}

// VelocityDissipation is the per-tick velocity decay factor. It is not clamped.
func (p StepParams) VelocityDissipation() float32 { return 1 - p.Viscosity/100 }

// DyeDissipation is the per-tick dye decay factor. It is not clamped.
func (p StepParams) DyeDissipation() float32 { return 1 - p.Diffusion/10 }

// Splat is one injection request.
type Splat struct {
	// X, Y is the position in normalized grid coordinates, origin bottom-left.
	X, Y float32

	// DX, DY is the velocity added at the center.
	DX, DY float32

	// Color is the RGB dye added at the center.
	Color [3]float32
}

// Solver holds the simulation state.
type Solver struct {
	exec kernel.Executor
	grid Grid

	velocity   *field.Double
	dye        *field.Double
	pressure   *field.Double
	divergence *field.Field
	curl       *field.Field

	dispatches uint64
}

// New allocates every field at rest through exec.
func New(exec kernel.Executor, grid Grid) (*Solver, error) {
	s := &Solver{exec: exec}
	if err := s.allocate(grid); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Solver) allocate(g Grid) (err error) {
	defer func() {
		if err != nil {
			s.Release()
		}
	}()
	vw, vh := g.VelocityWidth, g.VelocityHeight
	if s.velocity, err = field.NewDouble(s.exec, "velocity", vw, vh, 2); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if s.dye, err = field.NewDouble(s.exec, "dye", g.DyeWidth, g.DyeHeight, 4); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if s.pressure, err = field.NewDouble(s.exec, "pressure", vw, vh, 1); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if s.divergence, err = s.exec.Alloc("divergence", vw, vh, 1); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if s.curl, err = s.exec.Alloc("curl", vw, vh, 1); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	s.grid = g
	return nil
}

// Resize recreates every field at the new grid. Prior contents are
// discarded and the simulation restarts at rest.
func (s *Solver) Resize(g Grid) error {
	s.Release()
	return s.allocate(g)
}

// Grid returns the current grid dimensions.
func (s *Solver) Grid() Grid { return s.grid }

// Velocity, Dye and Pressure expose the double-buffered fields.
func (s *Solver) Velocity() *field.Double { return s.velocity }

// Dye returns the dye field.
func (s *Solver) Dye() *field.Double { return s.dye }

// Pressure returns the pressure field.
func (s *Solver) Pressure() *field.Double { return s.pressure }

// Divergence returns the divergence scratch field.
func (s *Solver) Divergence() *field.Field { return s.divergence }

// Curl returns the curl scratch field.
func (s *Solver) Curl() *field.Field { return s.curl }

// Dispatches returns the number of kernel dispatches issued so far.
func (s *Solver) Dispatches() uint64 { return s.dispatches }

// Release frees every field. The Solver is unusable until Resize.
func (s *Solver) Release() {
	s.velocity.Release()
	s.dye.Release()
	s.pressure.Release()
	s.divergence.Release()
	s.curl.Release()
	s.velocity, s.dye, s.pressure, s.divergence, s.curl = nil, nil, nil, nil, nil
}

func (s *Solver) ready() error {
	if s.velocity == nil {
		return ErrReleased
	}
	return nil
}

func (s *Solver) run(p *kernel.Program, target *field.Field, u kernel.Uniforms) error {
	if err := s.exec.Run(p, target, u); err != nil {
		return fmt.Errorf("solver: %s: %w", p.Name, err)
	}
	s.dispatches++
	return nil
}

// Step advances the simulation by dt. The first dispatch error aborts the
// tick and is returned.
func (s *Solver) Step(dt float32, p StepParams) error {
	if err := s.ready(); err != nil {
		return err
	}
	v := s.velocity
	texel := v.TexelSize()

	if err := s.run(kernel.Curl, s.curl, kernel.Uniforms{
		"uVelocity": kernel.Tex(v.Read()),
	}); err != nil {
		return err
	}

	if err := s.run(kernel.Vorticity, v.Write(), kernel.Uniforms{
		"uVelocity": kernel.Tex(v.Read()),
		"uCurl":     kernel.Tex(s.curl),
		"curl":      kernel.Float(p.CurlStrength),
		"dt":        kernel.Float(dt),
	}); err != nil {
		return err
	}
	v.Swap()

	if err := s.Project(p.PressureIterations); err != nil {
		return err
	}

	if err := s.run(kernel.Advection, v.Write(), kernel.Uniforms{
		"uVelocity":   kernel.Tex(v.Read()),
		"uSource":     kernel.Tex(v.Read()),
		"texelSize":   kernel.Vec2(texel[0], texel[1]),
		"dt":          kernel.Float(dt),
		"dissipation": kernel.Float(p.VelocityDissipation()),
	}); err != nil {
		return err
	}
	v.Swap()

	if err := s.run(kernel.Advection, s.dye.Write(), kernel.Uniforms{
		"uVelocity":   kernel.Tex(v.Read()),
		"uSource":     kernel.Tex(s.dye.Read()),
		"texelSize":   kernel.Vec2(texel[0], texel[1]),
		"dt":          kernel.Float(dt),
		"dissipation": kernel.Float(p.DyeDissipation()),
	}); err != nil {
		return err
	}
	s.dye.Swap()
	return nil
}

// Project removes the divergent part of the velocity: divergence, pressure
// warm-start decay, iterations Jacobi relaxations, gradient subtraction.
// There is no convergence check.
func (s *Solver) Project(iterations int) error {
	if err := s.ready(); err != nil {
		return err
	}
	v, prs := s.velocity, s.pressure

	if err := s.run(kernel.Divergence, s.divergence, kernel.Uniforms{
		"uVelocity": kernel.Tex(v.Read()),
	}); err != nil {
		return err
	}

	if err := s.run(kernel.Scale, prs.Write(), kernel.Uniforms{
		"uTexture": kernel.Tex(prs.Read()),
		"value":    kernel.Float(PressureDecay),
	}); err != nil {
		return err
	}
	prs.Swap()

	for range iterations {
		if err := s.run(kernel.Pressure, prs.Write(), kernel.Uniforms{
			"uPressure":   kernel.Tex(prs.Read()),
			"uDivergence": kernel.Tex(s.divergence),
		}); err != nil {
			return err
		}
		prs.Swap()
	}

	if err := s.run(kernel.GradientSubtract, v.Write(), kernel.Uniforms{
		"uPressure": kernel.Tex(prs.Read()),
		"uVelocity": kernel.Tex(v.Read()),
	}); err != nil {
		return err
	}
	v.Swap()
	return nil
}
