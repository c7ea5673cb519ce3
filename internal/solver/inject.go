package solver

import (
	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
)

// Splat deposits one Gaussian impulse: the velocity delta into velocity,
// then the color into dye, each as a full pass followed by a swap.
// aspect is the canvas width over height.
func (s *Solver) Splat(sp Splat, radius, aspect float32) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.splatInto(s.velocity, sp, [3]float32{sp.DX, sp.DY, 0}, radius, aspect); err != nil {
		return err
	}
	return s.splatInto(s.dye, sp, sp.Color, radius, aspect)
}

// SplatAll applies splats in order, each as an independent Splat.
func (s *Solver) SplatAll(splats []Splat, radius, aspect float32) error {
	for _, sp := range splats {
		if err := s.Splat(sp, radius, aspect); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) splatInto(d *field.Double, sp Splat, value [3]float32, radius, aspect float32) error {
	if err := s.run(kernel.Splat, d.Write(), kernel.Uniforms{
		"uTarget":     kernel.Tex(d.Read()),
		"aspectRatio": kernel.Float(aspect),
		"point":       kernel.Vec2(sp.X, sp.Y),
		"color":       kernel.Vec3(value[0], value[1], value[2]),
		"radius":      kernel.Float(radius),
	}); err != nil {
		return err
	}
	d.Swap()
	return nil
}

// Present renders the dye into the executor's surface.
func (s *Solver) Present() error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.run(kernel.Display, nil, kernel.Uniforms{
		"uTexture": kernel.Tex(s.dye.Read()),
	})
}

// Clear sets the dye to zero. Velocity is untouched.
func (s *Solver) Clear() error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.run(kernel.Fill, s.dye.Write(), kernel.Uniforms{
		"value": kernel.Vec4(0, 0, 0, 0),
	}); err != nil {
		return err
	}
	s.dye.Swap()
	return nil
}
