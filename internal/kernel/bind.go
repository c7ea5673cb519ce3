package kernel

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/fluid/internal/field"
)

// Binding is a validated dispatch: the target, the input Fields in binding
// order and the parameter slots in declaration order.
type Binding struct {
	Program *Program
	Target  *field.Field
	Inputs  []*field.Field
	Params  [][4]float32
}

// Bind resolves u against p's declarations for a dispatch into target.
func Bind(p *Program, target *field.Field, u Uniforms) (*Binding, error) {
	if target == nil {
		return nil, fmt.Errorf("%s: %w", p.Name, ErrNoSurface)
	}
	if target.Released() {
		return nil, fmt.Errorf("%s: target %s: %w", p.Name, target.Label(), ErrReleased)
	}
	b := &Binding{
		Program: p,
		Target:  target,
		Inputs:  make([]*field.Field, len(p.Inputs)),
		Params:  make([][4]float32, len(p.Params)),
	}
	for i, name := range p.Inputs {
		v, ok := u[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w %q", p.Name, ErrMissingUniform, name)
		}
		if v.kind != KindField || v.f == nil {
			return nil, fmt.Errorf("%s: %w: %q is %s, want field", p.Name, ErrUniformKind, name, v.kind)
		}
		if v.f == target {
			return nil, fmt.Errorf("%s: %w: %q is %s", p.Name, ErrAliasedTarget, name, target.Label())
		}
		if v.f.Released() {
			return nil, fmt.Errorf("%s: input %q: %w", p.Name, name, ErrReleased)
		}
		b.Inputs[i] = v.f
	}
	for i, prm := range p.Params {
		v, ok := u[prm.Name]
		if !ok {
			return nil, fmt.Errorf("%s: %w %q", p.Name, ErrMissingUniform, prm.Name)
		}
		if v.kind != prm.Kind {
			return nil, fmt.Errorf("%s: %w: %q is %s, want %s", p.Name, ErrUniformKind, prm.Name, v.kind, prm.Kind)
		}
		b.Params[i] = v.v
	}
	return b, nil
}

// UniformSize returns the byte size of p's uniform block:
// one vec4 for the target, one per input and one per parameter.
func UniformSize(p *Program) uint64 {
	return uint64(16 * (1 + len(p.Inputs) + len(p.Params)))
}

// Pack encodes the uniform block of b in the layout Source declares.
func (b *Binding) Pack() []byte {
	buf := make([]byte, UniformSize(b.Program))
	off := 0
	put := func(v [4]float32) {
		for i := range 4 {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v[i]))
		}
		off += 16
	}
	put(dims(b.Target))
	for _, in := range b.Inputs {
		put(dims(in))
	}
	for _, prm := range b.Params {
		put(prm)
	}
	return buf
}

// Variant returns the shader variant this binding needs.
func (b *Binding) Variant() Variant {
	v := Variant{
		Program:  b.Program,
		Out:      b.Target.Format(),
		Channels: b.Target.Channels(),
	}
	for i, in := range b.Inputs {
		v.In[i] = in.Format()
	}
	return v
}

func dims(f *field.Field) [4]float32 {
	ts := f.TexelSize()
	return [4]float32{float32(f.Width()), float32(f.Height()), ts[0], ts[1]}
}
