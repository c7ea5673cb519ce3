package kernel

import (
	"fmt"
	"strings"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/naga"
)

// WorkgroupSize is the edge length of the square compute workgroup.
const WorkgroupSize = 8

// maxInputs bounds Program.Inputs; every program reads at most two fields.
const maxInputs = 2

// Variant is a Program specialized to the storage formats it touches.
type Variant struct {
	Program  *Program
	Out      field.Format
	Channels int
	In       [maxInputs]field.Format
}

// Key returns a stable label such as "advection[f16:f32,f16]x4".
func (v Variant) Key() string {
	var b strings.Builder
	b.WriteString(v.Program.Name)
	b.WriteByte('[')
	b.WriteString(short(v.Out))
	b.WriteByte(':')
	for i := range v.Program.Inputs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(short(v.In[i]))
	}
	fmt.Fprintf(&b, "]x%d", v.Channels)
	return b.String()
}

// Uniform returns the variant of p with every field in format f.
func Uniform(p *Program, f field.Format, channels int) Variant {
	v := Variant{Program: p, Out: f, Channels: channels}
	for i := range p.Inputs {
		v.In[i] = f
	}
	return v
}

func short(f field.Format) string {
	switch f {
	case field.Float32:
		return "f32"
	case field.Float16:
		return "f16"
	default:
		return "u8"
	}
}

// storageType is the WGSL element type of a format.
func storageType(f field.Format) string {
	switch f {
	case field.Float32:
		return "vec4<f32>"
	case field.Float16:
		return "vec2<u32>"
	default:
		return "u32"
	}
}

var decoders = map[field.Format]string{
	field.Float32: `fn decode_f32(e: vec4<f32>) -> vec4<f32> {
    return e;
}
`,
	field.Float16: `fn decode_f16(e: vec2<u32>) -> vec4<f32> {
    return vec4<f32>(unpack2x16float(e.x), unpack2x16float(e.y));
}
`,
	field.Unorm8: `fn decode_u8(e: u32) -> vec4<f32> {
    return unpack4x8unorm(e);
}
`,
}

var encoders = map[field.Format]string{
	field.Float32: `fn encode_f32(v: vec4<f32>) -> vec4<f32> {
    return v;
}
`,
	field.Float16: `fn encode_f16(v: vec4<f32>) -> vec2<u32> {
    return vec2<u32>(pack2x16float(v.xy), pack2x16float(v.zw));
}
`,
	field.Unorm8: `fn encode_u8(v: vec4<f32>) -> u32 {
    return pack4x8unorm(v);
}
`,
}

const lerpFn = `fn lerp4(a: vec4<f32>, b: vec4<f32>, t: f32) -> vec4<f32> {
    return a * (1.0 - t) + b * t;
}
`

// Source generates the WGSL compute shader of v.
//
// Layout: binding 0 is the uniform block (target dims, one vec4 per input
// with its dims, one vec4 per parameter), binding 1 the output storage
// array, bindings 2.. the inputs in declaration order.
func Source(v Variant) string {
	p := v.Program
	var b strings.Builder

	fmt.Fprintf(&b, "// %s\n\n", v.Key())
	b.WriteString("struct Uniforms {\n    dims: vec4<f32>,\n")
	for _, in := range p.Inputs {
		fmt.Fprintf(&b, "    d_%s: vec4<f32>,\n", in)
	}
	for _, prm := range p.Params {
		fmt.Fprintf(&b, "    p_%s: vec4<f32>,\n", prm.Name)
	}
	b.WriteString("}\n\n")

	b.WriteString("@group(0) @binding(0) var<uniform> u: Uniforms;\n")
	fmt.Fprintf(&b, "@group(0) @binding(1) var<storage, read_write> dst: array<%s>;\n", storageType(v.Out))
	for i, in := range p.Inputs {
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read> src_%s: array<%s>;\n",
			i+2, in, storageType(v.In[i]))
	}
	b.WriteByte('\n')

	used := map[field.Format]bool{}
	for i := range p.Inputs {
		if !used[v.In[i]] {
			used[v.In[i]] = true
			b.WriteString(decoders[v.In[i]])
			b.WriteByte('\n')
		}
	}
	b.WriteString(encoders[v.Out])
	b.WriteByte('\n')
	if len(p.Inputs) > 0 {
		b.WriteString(lerpFn)
		b.WriteByte('\n')
	}

	for i, in := range p.Inputs {
		writeSampler(&b, in, short(v.In[i]))
	}

	fmt.Fprintf(&b, "@compute @workgroup_size(%d, %d, 1)\n", WorkgroupSize, WorkgroupSize)
	b.WriteString(`fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = u32(u.dims.x);
    let h = u32(u.dims.y);
    if (gid.x >= w || gid.y >= h) {
        return;
    }
    let texel = u.dims.zw;
    let vUv = (vec2<f32>(f32(gid.x), f32(gid.y)) + vec2<f32>(0.5, 0.5)) * texel;
`)
	if p.Stencil {
		b.WriteString(`    let vL = vUv - vec2<f32>(texel.x, 0.0);
    let vR = vUv + vec2<f32>(texel.x, 0.0);
    let vT = vUv + vec2<f32>(0.0, texel.y);
    let vB = vUv - vec2<f32>(0.0, texel.y);
`)
	}
	for _, prm := range p.Params {
		fmt.Fprintf(&b, "    let %s = u.p_%s%s;\n", prm.Name, prm.Name, swizzle(prm.Kind))
	}
	b.WriteString("    var result = vec4<f32>(0.0, 0.0, 0.0, 0.0);")
	b.WriteString(p.Body)
	b.WriteByte('\n')
	switch v.Channels {
	case 1:
		b.WriteString("    result = vec4<f32>(result.x, 0.0, 0.0, 1.0);\n")
	case 2:
		b.WriteString("    result = vec4<f32>(result.x, result.y, 0.0, 1.0);\n")
	}
	fmt.Fprintf(&b, "    dst[gid.y * w + gid.x] = encode_%s(result);\n}\n", short(v.Out))
	return b.String()
}

func writeSampler(b *strings.Builder, name, format string) {
	fmt.Fprintf(b, `fn fetch_%[1]s(x: i32, y: i32) -> vec4<f32> {
    let w = i32(u.d_%[1]s.x);
    let h = i32(u.d_%[1]s.y);
    let cx = clamp(x, 0, w - 1);
    let cy = clamp(y, 0, h - 1);
    return decode_%[2]s(src_%[1]s[u32(cy * w + cx)]);
}

fn sample_%[1]s(uv: vec2<f32>) -> vec4<f32> {
    let st = uv * u.d_%[1]s.xy - vec2<f32>(0.5, 0.5);
    let base = floor(st);
    let fr = st - base;
    let x = i32(base.x);
    let y = i32(base.y);
    let lo = lerp4(fetch_%[1]s(x, y), fetch_%[1]s(x + 1, y), fr.x);
    let hi = lerp4(fetch_%[1]s(x, y + 1), fetch_%[1]s(x + 1, y + 1), fr.x);
    return lerp4(lo, hi, fr.y);
}

`, name, format)
}

func swizzle(k Kind) string {
	switch k {
	case KindFloat:
		return ".x"
	case KindVec2:
		return ".xy"
	case KindVec3:
		return ".xyz"
	default:
		return ""
	}
}

// Compile generates the WGSL of v and validates it with naga. Failures are
// wrapped in ErrCompile with the variant key.
func Compile(v Variant) (string, error) {
	src := Source(v)
	if _, err := naga.Compile(src); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrCompile, v.Key(), err)
	}
	return src, nil
}
