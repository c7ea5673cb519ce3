package fluid

import (
	"fmt"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/solver"
)

// MaxResolution bounds VelocityResolution and DyeResolution.
const MaxResolution = 8192

// Params is one snapshot of the simulation parameters. A Simulation loads a
// single snapshot at the start of every tick.
type Params struct {
	// VelocityResolution is the shorter side of the velocity, pressure,
	// divergence and curl grids.
	VelocityResolution int `yaml:"velocity_resolution"`

	// DyeResolution is the shorter side of the dye grid.
	DyeResolution int `yaml:"dye_resolution"`

	// Viscosity sets the velocity dissipation 1 - Viscosity/100 per tick.
	Viscosity float32 `yaml:"viscosity"`

	// Diffusion sets the dye dissipation 1 - Diffusion/10 per tick.
	Diffusion float32 `yaml:"diffusion"`

	// PressureIterations is the number of Jacobi relaxations per tick.
	PressureIterations int `yaml:"pressure_iterations"`

	// CurlStrength scales the vorticity confinement force.
	CurlStrength float32 `yaml:"curl_strength"`

	// SplatRadius is the Gaussian falloff scale of injections.
	SplatRadius float32 `yaml:"splat_radius"`

	// Palette names the color set injections sample from.
	Palette string `yaml:"palette"`

	// Precision is the preferred field storage format:
	// "float32", "float16" or "unorm8".
	Precision string `yaml:"precision"`

	// Paused skips the solver step. Injection and presentation still run.
	Paused bool `yaml:"paused"`
}

// DefaultParams returns the default parameter set.
func DefaultParams() Params {
	return Params{
		VelocityResolution: 128,
		DyeResolution:      512,
		Viscosity:          1,
		Diffusion:          0.2,
		PressureIterations: 25,
		CurlStrength:       30,
		SplatRadius:        0.005,
		Palette:            DefaultPalette,
		Precision:          field.Float16.String(),
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidParams.
// Dissipation factors are not clamped, so any viscosity or diffusion is
// accepted.
func (p Params) Validate() error {
	switch {
	case p.VelocityResolution <= 0 || p.VelocityResolution > MaxResolution:
		return fmt.Errorf("%w: velocity_resolution %d must be in [1, %d]", ErrInvalidParams, p.VelocityResolution, MaxResolution)
	case p.DyeResolution <= 0 || p.DyeResolution > MaxResolution:
		return fmt.Errorf("%w: dye_resolution %d must be in [1, %d]", ErrInvalidParams, p.DyeResolution, MaxResolution)
	case p.PressureIterations < 0:
		return fmt.Errorf("%w: pressure_iterations %d must not be negative", ErrInvalidParams, p.PressureIterations)
	case p.SplatRadius <= 0:
		return fmt.Errorf("%w: splat_radius %g must be positive", ErrInvalidParams, p.SplatRadius)
	}
	if _, ok := palettes[p.Palette]; !ok {
		return fmt.Errorf("%w: unknown palette %q", ErrInvalidParams, p.Palette)
	}
	if _, err := field.ParseFormat(p.Precision); err != nil {
		return fmt.Errorf("%w: precision: %w", ErrInvalidParams, err)
	}
	return nil
}

func (p Params) format() field.Format {
	f, err := field.ParseFormat(p.Precision)
	if err != nil {
		return field.Float16
	}
	return f
}

func (p Params) stepParams() solver.StepParams {
	return solver.StepParams{
		Viscosity:          p.Viscosity,
		Diffusion:          p.Diffusion,
		PressureIterations: p.PressureIterations,
		CurlStrength:       p.CurlStrength,
	}
}

func (p Params) grid(width, height int) solver.Grid {
	return solver.NewGrid(p.VelocityResolution, p.DyeResolution, width, height)
}
