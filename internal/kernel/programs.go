package kernel

import (
	"math"

	"github.com/gogpu/fluid/internal/field"
)

// VelocityLimit bounds each velocity component after vorticity confinement.
const VelocityLimit = 1000

// Curl computes the scalar vorticity of uVelocity.
var Curl = &Program{
	Name:    "curl",
	Inputs:  []string{"uVelocity"},
	Stencil: true,
	Body: `
    let L = sample_uVelocity(vL).y;
    let R = sample_uVelocity(vR).y;
    let T = sample_uVelocity(vT).x;
    let B = sample_uVelocity(vB).x;
    result = vec4<f32>(0.5 * ((R - L) - (T - B)), 0.0, 0.0, 1.0);`,
	Eval: func(c *Cell) field.Texel {
		l := c.Sample(0, c.L)[1]
		r := c.Sample(0, c.R)[1]
		t := c.Sample(0, c.T)[0]
		b := c.Sample(0, c.B)[0]
		return field.Texel{0.5 * ((r - l) - (t - b)), 0, 0, 1}
	},
}

// Vorticity adds the confinement force derived from uCurl to uVelocity.
var Vorticity = &Program{
	Name:    "vorticity",
	Inputs:  []string{"uVelocity", "uCurl"},
	Params:  []Param{{"curl", KindFloat}, {"dt", KindFloat}},
	Stencil: true,
	Body: `
    let L = sample_uCurl(vL).x;
    let R = sample_uCurl(vR).x;
    let T = sample_uCurl(vT).x;
    let B = sample_uCurl(vB).x;
    let C = sample_uCurl(vUv).x;
    var force = 0.5 * vec2<f32>(abs(T) - abs(B), abs(R) - abs(L));
    force = force / (length(force) + 0.0001);
    force = force * (curl * C);
    force.y = -force.y;
    let vel = sample_uVelocity(vUv).xy + force * dt;
    result = vec4<f32>(clamp(vel, vec2<f32>(-1000.0), vec2<f32>(1000.0)), 0.0, 1.0);`,
	Eval: func(c *Cell) field.Texel {
		l := c.Sample(1, c.L)[0]
		r := c.Sample(1, c.R)[0]
		t := c.Sample(1, c.T)[0]
		b := c.Sample(1, c.B)[0]
		center := c.Sample(1, c.UV)[0]
		fx := 0.5 * (abs32(t) - abs32(b))
		fy := 0.5 * (abs32(r) - abs32(l))
		n := float32(math.Sqrt(float64(fx*fx+fy*fy))) + 0.0001
		fx, fy = fx/n, fy/n
		s := c.Float(0) * center
		fx, fy = fx*s, -(fy * s)
		dt := c.Float(1)
		v := c.Sample(0, c.UV)
		return field.Texel{
			clamp32(v[0]+fx*dt, -VelocityLimit, VelocityLimit),
			clamp32(v[1]+fy*dt, -VelocityLimit, VelocityLimit),
			0, 1,
		}
	},
}

// Divergence computes the central-difference divergence of uVelocity.
var Divergence = &Program{
	Name:    "divergence",
	Inputs:  []string{"uVelocity"},
	Stencil: true,
	Body: `
    let L = sample_uVelocity(vL).x;
    let R = sample_uVelocity(vR).x;
    let T = sample_uVelocity(vT).y;
    let B = sample_uVelocity(vB).y;
    result = vec4<f32>(0.5 * ((R - L) + (T - B)), 0.0, 0.0, 1.0);`,
	Eval: func(c *Cell) field.Texel {
		l := c.Sample(0, c.L)[0]
		r := c.Sample(0, c.R)[0]
		t := c.Sample(0, c.T)[1]
		b := c.Sample(0, c.B)[1]
		return field.Texel{0.5 * ((r - l) + (t - b)), 0, 0, 1}
	},
}

// Scale multiplies uTexture by value. The solver uses it for the pressure
// warm-start decay.
var Scale = &Program{
	Name:   "scale",
	Inputs: []string{"uTexture"},
	Params: []Param{{"value", KindFloat}},
	Body: `
    result = value * sample_uTexture(vUv);`,
	Eval: func(c *Cell) field.Texel {
		v := c.Sample(0, c.UV)
		k := c.Float(0)
		return field.Texel{k * v[0], k * v[1], k * v[2], k * v[3]}
	},
}

// Pressure is one Jacobi relaxation step of the pressure Poisson equation.
var Pressure = &Program{
	Name:    "pressure",
	Inputs:  []string{"uPressure", "uDivergence"},
	Stencil: true,
	Body: `
    let L = sample_uPressure(vL).x;
    let R = sample_uPressure(vR).x;
    let T = sample_uPressure(vT).x;
    let B = sample_uPressure(vB).x;
    let div = sample_uDivergence(vUv).x;
    result = vec4<f32>(0.25 * (L + R + T + B - div), 0.0, 0.0, 1.0);`,
	Eval: func(c *Cell) field.Texel {
		l := c.Sample(0, c.L)[0]
		r := c.Sample(0, c.R)[0]
		t := c.Sample(0, c.T)[0]
		b := c.Sample(0, c.B)[0]
		div := c.Sample(1, c.UV)[0]
		return field.Texel{0.25 * (l + r + t + b - div), 0, 0, 1}
	},
}

// GradientSubtract removes the pressure gradient from uVelocity.
var GradientSubtract = &Program{
	Name:    "gradientSubtract",
	Inputs:  []string{"uPressure", "uVelocity"},
	Stencil: true,
	Body: `
    let L = sample_uPressure(vL).x;
    let R = sample_uPressure(vR).x;
    let T = sample_uPressure(vT).x;
    let B = sample_uPressure(vB).x;
    let vel = sample_uVelocity(vUv).xy - vec2<f32>(R - L, T - B);
    result = vec4<f32>(vel, 0.0, 1.0);`,
	Eval: func(c *Cell) field.Texel {
		l := c.Sample(0, c.L)[0]
		r := c.Sample(0, c.R)[0]
		t := c.Sample(0, c.T)[0]
		b := c.Sample(0, c.B)[0]
		v := c.Sample(1, c.UV)
		return field.Texel{v[0] - (r - l), v[1] - (t - b), 0, 1}
	},
}

// Advection traces each texel back along uVelocity and samples uSource there.
// texelSize is the velocity grid's texel size for both velocity and dye.
var Advection = &Program{
	Name:   "advection",
	Inputs: []string{"uVelocity", "uSource"},
	Params: []Param{{"texelSize", KindVec2}, {"dt", KindFloat}, {"dissipation", KindFloat}},
	Body: `
    let coord = vUv - dt * sample_uVelocity(vUv).xy * texelSize;
    result = dissipation * sample_uSource(coord);`,
	Eval: func(c *Cell) field.Texel {
		ts := c.Vec2(0)
		dt := c.Float(1)
		k := c.Float(2)
		v := c.Sample(0, c.UV)
		coord := [2]float32{c.UV[0] - dt*v[0]*ts[0], c.UV[1] - dt*v[1]*ts[1]}
		s := c.Sample(1, coord)
		return field.Texel{k * s[0], k * s[1], k * s[2], k * s[3]}
	},
}

// Splat adds a Gaussian blob of color centered at point to uTarget.
var Splat = &Program{
	Name:   "splat",
	Inputs: []string{"uTarget"},
	Params: []Param{
		{"aspectRatio", KindFloat},
		{"point", KindVec2},
		{"color", KindVec3},
		{"radius", KindFloat},
	},
	Body: `
    var p = vUv - point;
    p.x = p.x * aspectRatio;
    let s = exp(-dot(p, p) / radius) * color;
    let base = sample_uTarget(vUv).xyz;
    result = vec4<f32>(base + s, 1.0);`,
	Eval: func(c *Cell) field.Texel {
		pt := c.Vec2(1)
		col := c.Vec3(2)
		px := (c.UV[0] - pt[0]) * c.Float(0)
		py := c.UV[1] - pt[1]
		g := float32(math.Exp(float64(-(px*px + py*py) / c.Float(3))))
		base := c.Sample(0, c.UV)
		return field.Texel{base[0] + g*col[0], base[1] + g*col[1], base[2] + g*col[2], 1}
	},
}

// Display copies the RGB of uTexture to the surface with opaque alpha.
// Rows are flipped so the surface is stored top row first.
var Display = &Program{
	Name:   "display",
	Inputs: []string{"uTexture"},
	Body: `
    let c = sample_uTexture(vec2<f32>(vUv.x, 1.0 - vUv.y));
    result = vec4<f32>(c.xyz, 1.0);`,
	Eval: func(c *Cell) field.Texel {
		v := c.Sample(0, [2]float32{c.UV[0], 1 - c.UV[1]})
		return field.Texel{v[0], v[1], v[2], 1}
	},
}

// Fill writes a constant to every texel.
var Fill = &Program{
	Name:   "fill",
	Params: []Param{{"value", KindVec4}},
	Body: `
    result = value;`,
	Eval: func(c *Cell) field.Texel {
		return c.Vec4(0)
	},
}

// Programs lists every program the solver uses.
func Programs() []*Program {
	return []*Program{Curl, Vorticity, Divergence, Scale, Pressure, GradientSubtract, Advection, Splat, Display, Fill}
}

func abs32(x float32) float32 { return math.Float32frombits(math.Float32bits(x) &^ (1 << 31)) }

func clamp32(x, lo, hi float32) float32 {
	return min(max(x, lo), hi)
}
