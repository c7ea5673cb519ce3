// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package kernel defines the per-texel programs of the fluid solver and the
// Executor contract that runs them.
//
// A Program is written once and realized twice: as a WGSL compute shader
// (see Source) for the wgpu executor, and as a Go evaluator (Program.Eval)
// for the reference executor. Both realizations share the same sampling
// rules: bilinear filtering with clamp-to-edge addressing, texel centers at
// (i+0.5)/n, and neighbor coordinates vL, vR, vT, vB one texel away.
package kernel

import (
	"errors"
	"fmt"

	"github.com/gogpu/fluid/internal/field"
)

var (
	// ErrCompile wraps a program that failed validation or pipeline creation.
	ErrCompile = errors.New("kernel: program failed to compile")

	// ErrMissingUniform is returned when a declared uniform has no value.
	ErrMissingUniform = errors.New("kernel: missing uniform")

	// ErrUniformKind is returned when a uniform value has the wrong kind.
	ErrUniformKind = errors.New("kernel: uniform kind mismatch")

	// ErrAliasedTarget is returned when a program would read the field it writes.
	ErrAliasedTarget = errors.New("kernel: target is also an input")

	// ErrReleased is returned when a released field is bound.
	ErrReleased = errors.New("kernel: field released")

	// ErrNoSurface is returned when the surface is used before ResizeSurface.
	ErrNoSurface = errors.New("kernel: surface not configured")

	// ErrForeignField is returned when a field from another executor is bound.
	ErrForeignField = errors.New("kernel: field not owned by this executor")
)

// Kind is the type of a uniform value.
type Kind uint8

// Uniform kinds.
const (
	KindFloat Kind = iota + 1
	KindVec2
	KindVec3
	KindVec4
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindVec2:
		return "vec2"
	case KindVec3:
		return "vec3"
	case KindVec4:
		return "vec4"
	case KindField:
		return "field"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a uniform value: a scalar, a vector, or a Field handle.
type Value struct {
	kind Kind
	v    [4]float32
	f    *field.Field
}

// Float returns a scalar uniform.
func Float(x float32) Value { return Value{kind: KindFloat, v: [4]float32{x}} }

// Vec2 returns a 2-vector uniform.
func Vec2(x, y float32) Value { return Value{kind: KindVec2, v: [4]float32{x, y}} }

// Vec3 returns a 3-vector uniform.
func Vec3(x, y, z float32) Value { return Value{kind: KindVec3, v: [4]float32{x, y, z}} }

// Vec4 returns a 4-vector uniform.
func Vec4(x, y, z, w float32) Value { return Value{kind: KindVec4, v: [4]float32{x, y, z, w}} }

// Tex returns a Field-valued uniform (a texture handle).
func Tex(f *field.Field) Value { return Value{kind: KindField, f: f} }

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// Uniforms maps uniform names to values for one dispatch.
type Uniforms map[string]Value

// Param declares a non-field uniform of a Program.
type Param struct {
	Name string
	Kind Kind
}

// Program is one per-texel kernel.
type Program struct {
	// Name identifies the program in logs, labels and errors.
	Name string

	// Inputs are the Field uniforms, in binding order.
	Inputs []string

	// Params are the value uniforms, in slot order.
	Params []Param

	// Stencil programs receive vL, vR, vT, vB.
	Stencil bool

	// Body is WGSL statements that assign the output texel to `result`.
	Body string

	// Eval computes the output texel on the CPU.
	Eval func(c *Cell) field.Texel
}

func (p *Program) String() string { return p.Name }

// Executor runs Programs over Fields. Implementations: the wgpu compute
// executor and the reference executor.
type Executor interface {
	field.Allocator

	// Name returns the backend name ("wgpu", "software").
	Name() string

	// Run invokes p once per texel of target, overwriting all of it.
	// A nil target selects the surface.
	Run(p *Program, target *field.Field, u Uniforms) error

	// ResizeSurface recreates the surface at the given size.
	ResizeSurface(width, height int) error

	// Surface returns the RGBA8 presentation target, nil before ResizeSurface.
	Surface() *field.Field

	// ReadPixels copies the surface into dst as RGBA8, top row first.
	// dst must hold width*height*4 bytes.
	ReadPixels(dst []byte) error

	// ReadField returns four floats per texel of f, row 0 first.
	ReadField(f *field.Field) ([]float32, error)

	// Close releases every resource owned by the executor.
	Close() error
}
