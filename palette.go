package fluid

import (
	"math/rand/v2"
	"slices"
)

// DefaultPalette is the palette of DefaultParams.
const DefaultPalette = "classic"

// Dye intensities. Pointer contacts are faint so that a dragged stroke
// builds up over many ticks; bursts are bright single deposits.
const (
	pointerIntensity = 0.15
	burstIntensity   = 1.5
)

// Palette is a named set of RGB colors with components in [0, 1].
type Palette struct {
	Name   string
	Colors [][3]float32
}

var palettes = map[string]Palette{
	"classic": {Name: "classic", Colors: [][3]float32{
		{1, 0, 0}, {1, 0.5, 0}, {1, 1, 0}, {0.5, 1, 0},
		{0, 1, 0}, {0, 1, 0.5}, {0, 1, 1}, {0, 0.5, 1},
		{0, 0, 1}, {0.5, 0, 1}, {1, 0, 1}, {1, 0, 0.5},
	}},
	"fire": {Name: "fire", Colors: [][3]float32{
		{1, 0.1, 0}, {1, 0.35, 0}, {1, 0.6, 0.05}, {1, 0.85, 0.2}, {0.8, 0.05, 0.02},
	}},
	"ocean": {Name: "ocean", Colors: [][3]float32{
		{0, 0.3, 0.8}, {0, 0.6, 0.9}, {0.1, 0.9, 0.9}, {0, 0.8, 0.5}, {0.2, 0.2, 1},
	}},
	"neon": {Name: "neon", Colors: [][3]float32{
		{1, 0, 0.6}, {0, 1, 0.8}, {0.7, 1, 0}, {0.6, 0, 1},
	}},
	"mono": {Name: "mono", Colors: [][3]float32{
		{1, 1, 1},
	}},
}

// PaletteByName looks up a registered palette.
func PaletteByName(name string) (Palette, bool) {
	p, ok := palettes[name]
	return p, ok
}

// PaletteNames returns the registered palette names in sorted order.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Sample returns a uniformly chosen color scaled by intensity.
func (p Palette) Sample(r *rand.Rand, intensity float32) [3]float32 {
	if len(p.Colors) == 0 {
		return [3]float32{}
	}
	c := p.Colors[r.IntN(len(p.Colors))]
	return [3]float32{c[0] * intensity, c[1] * intensity, c[2] * intensity}
}
