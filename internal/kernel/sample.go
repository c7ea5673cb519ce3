package kernel

import (
	"math"

	"github.com/gogpu/fluid/internal/field"
)

// Sampler gives texel access to one input field.
type Sampler interface {
	Size() (width, height int)
	Fetch(x, y int) field.Texel
}

// Bilinear samples s at normalized coordinate uv with linear filtering and
// clamp-to-edge addressing. It mirrors the generated WGSL sample_* helpers.
func Bilinear(s Sampler, uv [2]float32) field.Texel {
	w, h := s.Size()
	sx := uv[0]*float32(w) - 0.5
	sy := uv[1]*float32(h) - 0.5
	ix := float32(math.Floor(float64(sx)))
	iy := float32(math.Floor(float64(sy)))
	fx := sx - ix
	fy := sy - iy
	x, y := clampIndex(ix, w), clampIndex(iy, h)
	x1, y1 := clampIndex(ix+1, w), clampIndex(iy+1, h)

	a := s.Fetch(x, y)
	b := s.Fetch(x1, y)
	c := s.Fetch(x, y1)
	d := s.Fetch(x1, y1)
	var out field.Texel
	for i := range out {
		lo := a[i]*(1-fx) + b[i]*fx
		hi := c[i]*(1-fx) + d[i]*fx
		out[i] = lo*(1-fy) + hi*fy
	}
	return out
}

func clampIndex(v float32, n int) int {
	if !(v > 0) {
		return 0
	}
	if v >= float32(n-1) {
		return n - 1
	}
	return int(v)
}

// Cell is the evaluation context of one output texel.
type Cell struct {
	// UV is the texel center; L, R, T, B are its neighbors (stencil programs).
	UV, L, R, T, B [2]float32

	inputs []Sampler
	params [][4]float32
}

// NewCell prepares a Cell for a dispatch. Executors call Move per texel.
func NewCell(inputs []Sampler, params [][4]float32) *Cell {
	return &Cell{inputs: inputs, params: params}
}

// Move positions the cell on texel (x, y) of a grid with the given texel size.
func (c *Cell) Move(x, y int, texel [2]float32) {
	c.UV = [2]float32{(float32(x) + 0.5) * texel[0], (float32(y) + 0.5) * texel[1]}
	c.L = [2]float32{c.UV[0] - texel[0], c.UV[1]}
	c.R = [2]float32{c.UV[0] + texel[0], c.UV[1]}
	c.T = [2]float32{c.UV[0], c.UV[1] + texel[1]}
	c.B = [2]float32{c.UV[0], c.UV[1] - texel[1]}
}

// Sample reads input i at uv.
func (c *Cell) Sample(i int, uv [2]float32) field.Texel {
	return Bilinear(c.inputs[i], uv)
}

// Float returns scalar parameter i.
func (c *Cell) Float(i int) float32 { return c.params[i][0] }

// Vec2 returns 2-vector parameter i.
func (c *Cell) Vec2(i int) [2]float32 { return [2]float32{c.params[i][0], c.params[i][1]} }

// Vec3 returns 3-vector parameter i.
func (c *Cell) Vec3(i int) [3]float32 {
	return [3]float32{c.params[i][0], c.params[i][1], c.params[i][2]}
}

// Vec4 returns 4-vector parameter i.
func (c *Cell) Vec4(i int) [4]float32 { return c.params[i] }
