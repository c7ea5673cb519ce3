// Package export writes presented frames and raw fields as PNG images.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// ErrSize is returned when a field's data does not match its dimensions.
var ErrSize = errors.New("export: data size mismatch")

// Quality selects the resampling kernel of Scale.
type Quality uint8

const (
	// Nearest keeps hard texel edges; useful for inspecting small grids.
	Nearest Quality = iota

	// Bilinear is fast and smooth.
	Bilinear

	// CatmullRom is the highest quality.
	CatmullRom
)

func (q Quality) scaler() xdraw.Scaler {
	switch q {
	case Nearest:
		return xdraw.NearestNeighbor
	case Bilinear:
		return xdraw.ApproxBiLinear
	default:
		return xdraw.CatmullRom
	}
}

// ParseQuality parses "nearest", "bilinear" or "catmullrom".
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	case "catmullrom", "":
		return CatmullRom, nil
	}
	return 0, fmt.Errorf("export: unknown quality %q", s)
}

// Scale resamples src to width x height. If the size already matches, src
// is returned as an RGBA copy.
func Scale(src image.Image, width, height int, q Quality) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
		return dst
	}
	q.scaler().Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// FieldImage maps raw field data (four floats per texel, row 0 at the
// bottom) to an image, top row first. Each of the first three components
// is mapped through |v|*gain, clamped to [0, 1].
func FieldImage(data []float32, width, height int, gain float32) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(data) != width*height*4 {
		return nil, fmt.Errorf("%w: %d floats for %dx%d", ErrSize, len(data), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		row := height - 1 - y
		for x := range width {
			i := (row*width + x) * 4
			img.SetRGBA(x, y, color.RGBA{
				R: channel(data[i], gain),
				G: channel(data[i+1], gain),
				B: channel(data[i+2], gain),
				A: 255,
			})
		}
	}
	return img, nil
}

func channel(v, gain float32) uint8 {
	f := math.Abs(float64(v * gain))
	switch {
	case math.IsNaN(f):
		return 0
	case f >= 1:
		return 255
	}
	return uint8(f*255 + 0.5)
}

// Encode writes img as PNG.
func Encode(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// Save writes img as a PNG file, creating parent directories.
func Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: encode %s: %w", path, err)
	}
	return f.Close()
}

// FramePath returns the file name of frame index in dir.
func FramePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%05d.png", index))
}
