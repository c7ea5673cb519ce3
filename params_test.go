package fluid

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gogpu/fluid/internal/field"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	want := Params{
		VelocityResolution: 128,
		DyeResolution:      512,
		Viscosity:          1,
		Diffusion:          0.2,
		PressureIterations: 25,
		CurlStrength:       30,
		SplatRadius:        0.005,
		Palette:            "classic",
		Precision:          "float16",
	}
	if p != want {
		t.Errorf("DefaultParams() = %+v, want %+v", p, want)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("DefaultParams().Validate() = %v", err)
	}
	if p.format() != field.Float16 {
		t.Errorf("format() = %v, want float16", p.format())
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"defaults", func(*Params) {}, true},
		{"zero velocity resolution", func(p *Params) { p.VelocityResolution = 0 }, false},
		{"negative dye resolution", func(p *Params) { p.DyeResolution = -1 }, false},
		{"max dye resolution", func(p *Params) { p.DyeResolution = MaxResolution }, true},
		{"dye resolution above max", func(p *Params) { p.DyeResolution = 1 << 16 }, false},
		{"velocity resolution above max", func(p *Params) { p.VelocityResolution = MaxResolution + 1 }, false},
		{"negative iterations", func(p *Params) { p.PressureIterations = -1 }, false},
		{"zero iterations", func(p *Params) { p.PressureIterations = 0 }, true},
		{"zero radius", func(p *Params) { p.SplatRadius = 0 }, false},
		{"unknown palette", func(p *Params) { p.Palette = "sepia" }, false},
		{"unknown precision", func(p *Params) { p.Precision = "float64" }, false},
		{"unorm8", func(p *Params) { p.Precision = "unorm8" }, true},
		{"viscosity above 100", func(p *Params) { p.Viscosity = 150 }, true},
		{"negative diffusion", func(p *Params) { p.Diffusion = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Validate() = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestStepParamsConversion(t *testing.T) {
	p := DefaultParams()
	sp := p.stepParams()
	if sp.Viscosity != p.Viscosity || sp.Diffusion != p.Diffusion ||
		sp.PressureIterations != p.PressureIterations || sp.CurlStrength != p.CurlStrength {
		t.Errorf("stepParams() = %+v from %+v", sp, p)
	}

	g := p.grid(800, 600)
	if g.VelocityWidth != 171 || g.VelocityHeight != 128 || g.DyeWidth != 683 || g.DyeHeight != 512 {
		t.Errorf("grid(800, 600) = %+v", g)
	}
}

func TestPalettes(t *testing.T) {
	names := PaletteNames()
	if !slices.IsSorted(names) {
		t.Errorf("PaletteNames() = %v, not sorted", names)
	}
	if !slices.Contains(names, DefaultPalette) {
		t.Errorf("PaletteNames() = %v, missing %q", names, DefaultPalette)
	}
	for _, name := range names {
		p, ok := PaletteByName(name)
		if !ok || p.Name != name || len(p.Colors) == 0 {
			t.Errorf("PaletteByName(%q) = %+v, %v", name, p, ok)
		}
		for _, c := range p.Colors {
			for _, v := range c {
				if v < 0 || v > 1 {
					t.Errorf("palette %q color %v outside [0, 1]", name, c)
				}
			}
		}
	}
	if _, ok := PaletteByName("sepia"); ok {
		t.Error("PaletteByName(sepia) found a palette")
	}
}

func TestPaletteSampleUniform(t *testing.T) {
	p, _ := PaletteByName("classic")
	r := rand.New(rand.NewPCG(1, 2))

	counts := make(map[[3]float32]int)
	const draws = 12000
	for range draws {
		counts[p.Sample(r, 1)]++
	}
	if len(counts) != len(p.Colors) {
		t.Fatalf("sampled %d distinct colors, want %d", len(counts), len(p.Colors))
	}
	expected := draws / len(p.Colors)
	for c, n := range counts {
		if n < expected*7/10 || n > expected*13/10 {
			t.Errorf("color %v drawn %d times, want about %d", c, n, expected)
		}
	}

	scaled := Palette{Colors: [][3]float32{{1, 0.5, 0}}}.Sample(r, pointerIntensity)
	if scaled != [3]float32{0.15, 0.075, 0} {
		t.Errorf("Sample(0.15) = %v", scaled)
	}
	if got := (Palette{}).Sample(r, 1); got != [3]float32{} {
		t.Errorf("empty palette Sample = %v, want black", got)
	}
}
