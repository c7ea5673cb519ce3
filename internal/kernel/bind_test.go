package kernel

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/fluid/internal/field"
)

type nopStorage struct{}

func (nopStorage) Release() {}

func newField(label string, w, h, ch int) *field.Field {
	return field.New(label, w, h, ch, field.Float32, nopStorage{})
}

func TestBindOrdersInputsAndParams(t *testing.T) {
	vel := newField("velocity", 8, 4, 2)
	src := newField("dye", 16, 8, 4)
	dst := newField("dye.out", 16, 8, 4)

	b, err := Bind(Advection, dst, Uniforms{
		"uSource":     Tex(src),
		"uVelocity":   Tex(vel),
		"dissipation": Float(0.98),
		"dt":          Float(0.016),
		"texelSize":   Vec2(0.125, 0.25),
	})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if b.Inputs[0] != vel || b.Inputs[1] != src {
		t.Error("inputs must follow the program's declaration order")
	}
	want := [][4]float32{{0.125, 0.25}, {0.016}, {0.98}}
	for i := range want {
		if b.Params[i] != want[i] {
			t.Errorf("param %d = %v, want %v", i, b.Params[i], want[i])
		}
	}
}

func TestBindErrors(t *testing.T) {
	vel := newField("velocity", 4, 4, 2)
	out := newField("out", 4, 4, 1)
	released := newField("gone", 4, 4, 1)
	released.Release()

	tests := []struct {
		name    string
		target  *field.Field
		u       Uniforms
		wantErr error
	}{
		{"nil target", nil, Uniforms{"uVelocity": Tex(vel)}, ErrNoSurface},
		{"missing input", out, Uniforms{}, ErrMissingUniform},
		{"scalar for field", out, Uniforms{"uVelocity": Float(1)}, ErrUniformKind},
		{"aliased", vel, Uniforms{"uVelocity": Tex(vel)}, ErrAliasedTarget},
		{"released input", out, Uniforms{"uVelocity": Tex(released)}, ErrReleased},
		{"released target", released, Uniforms{"uVelocity": Tex(vel)}, ErrReleased},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(Curl, tt.target, tt.u)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBindParamKind(t *testing.T) {
	tgt := newField("t", 4, 4, 4)
	_, err := Bind(Fill, tgt, Uniforms{"value": Vec3(0, 0, 0)})
	if !errors.Is(err, ErrUniformKind) {
		t.Fatalf("err = %v, want ErrUniformKind", err)
	}
	_, err = Bind(Fill, tgt, Uniforms{})
	if !errors.Is(err, ErrMissingUniform) {
		t.Fatalf("err = %v, want ErrMissingUniform", err)
	}
}

func TestPackLayout(t *testing.T) {
	tgt := newField("p", 4, 2, 1)
	in := newField("d", 8, 8, 1)
	b, err := Bind(Scale, tgt, Uniforms{"uTexture": Tex(in), "value": Float(0.8)})
	if err != nil {
		t.Fatal(err)
	}
	buf := b.Pack()
	if uint64(len(buf)) != UniformSize(Scale) || len(buf) != 48 {
		t.Fatalf("len = %d, want 48", len(buf))
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	if f(0) != 4 || f(4) != 2 || f(8) != 0.25 || f(12) != 0.5 {
		t.Errorf("target dims = %v %v %v %v", f(0), f(4), f(8), f(12))
	}
	if f(16) != 8 || f(20) != 8 || f(24) != 0.125 {
		t.Errorf("input dims = %v %v %v", f(16), f(20), f(24))
	}
	if f(32) != 0.8 {
		t.Errorf("value = %v, want 0.8", f(32))
	}
}

func TestBindingVariant(t *testing.T) {
	vel := field.New("v", 4, 4, 2, field.Float32, nopStorage{})
	dye := field.New("d", 8, 8, 4, field.Unorm8, nopStorage{})
	out := field.New("o", 8, 8, 4, field.Unorm8, nopStorage{})
	b, err := Bind(Advection, out, Uniforms{
		"uVelocity": Tex(vel), "uSource": Tex(dye),
		"texelSize": Vec2(0.25, 0.25), "dt": Float(1), "dissipation": Float(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	v := b.Variant()
	if v.Out != field.Unorm8 || v.In[0] != field.Float32 || v.In[1] != field.Unorm8 || v.Channels != 4 {
		t.Errorf("variant = %+v", v)
	}
}
