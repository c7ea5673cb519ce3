// Package software is the reference kernel executor: it evaluates every
// program per texel in Go with the same sampling rules and storage
// quantization as the wgpu executor.
//
// It exists to verify the solver's numerics without a GPU and is only used
// when selected by name; it is never substituted for a failed GPU.
package software

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
	"github.com/gogpu/fluid/internal/parallel"
)

// Name is the backend name of the reference executor.
const Name = "software"

var errClosed = errors.New("software: executor closed")

// Config configures an Executor.
type Config struct {
	// Format is the preferred storage format.
	Format field.Format

	// StorageLimit emulates a device's max storage binding size in bytes.
	// Zero selects the WebGPU default limit, so grids that no device could
	// hold fail with field.ErrFieldTooLarge instead of exhausting memory.
	StorageLimit uint64

	// Workers is the number of goroutines evaluating row bands.
	// Zero uses GOMAXPROCS.
	Workers int
}

// Executor implements kernel.Executor on the CPU.
type Executor struct {
	cfg     Config
	pool    *parallel.Pool
	surface *field.Field
	logger  atomic.Pointer[slog.Logger]
	closed  bool
}

var _ kernel.Executor = (*Executor)(nil)

// New returns a reference executor.
func New(cfg Config) *Executor {
	if cfg.StorageLimit == 0 {
		cfg.StorageLimit = gputypes.DefaultLimits().MaxStorageBufferBindingSize
	}
	e := &Executor{cfg: cfg, pool: parallel.NewPool(cfg.Workers)}
	e.logger.Store(slog.New(nopHandler{}))
	return e
}

// storage is the backing of a software Field.
type storage struct {
	owner *Executor
	data  []field.Texel
}

func (s *storage) Release() { s.data = nil }

// Name implements kernel.Executor.
func (e *Executor) Name() string { return Name }

// SetLogger sets the executor's logger. Nil restores silence.
func (e *Executor) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	e.logger.Store(l)
}

// Alloc implements field.Allocator.
func (e *Executor) Alloc(label string, width, height, channels int) (*field.Field, error) {
	if e.closed {
		return nil, errClosed
	}
	if err := field.CheckSize(width, height, channels); err != nil {
		return nil, err
	}
	format, degraded, err := field.Select(e.cfg.Format, width, height, e.cfg.StorageLimit)
	if err != nil {
		return nil, fmt.Errorf("software: alloc %s: %w", label, err)
	}
	if degraded {
		e.logger.Load().Debug("software: storage format degraded",
			"field", label, "preferred", e.cfg.Format, "format", format,
			"width", width, "height", height)
	}
	s := &storage{owner: e, data: make([]field.Texel, width*height)}
	return field.New(label, width, height, channels, format, s), nil
}

// Run implements kernel.Executor.
func (e *Executor) Run(p *kernel.Program, target *field.Field, u kernel.Uniforms) error {
	if e.closed {
		return errClosed
	}
	if target == nil {
		target = e.surface
	}
	b, err := kernel.Bind(p, target, u)
	if err != nil {
		return err
	}
	dst, err := e.own(b.Target)
	if err != nil {
		return err
	}
	samplers := make([]kernel.Sampler, len(b.Inputs))
	for i, in := range b.Inputs {
		s, err := e.own(in)
		if err != nil {
			return err
		}
		samplers[i] = grid{w: in.Width(), h: in.Height(), data: s.data}
	}

	w, h := b.Target.Width(), b.Target.Height()
	texel := b.Target.TexelSize()
	format, channels := b.Target.Format(), b.Target.Channels()
	e.pool.Rows(w, h, func(y0, y1 int) {
		c := kernel.NewCell(samplers, b.Params)
		for y := y0; y < y1; y++ {
			for x := range w {
				c.Move(x, y, texel)
				dst.data[y*w+x] = field.Quantize(format, field.Mask(channels, p.Eval(c)))
			}
		}
	})
	return nil
}

// ResizeSurface implements kernel.Executor.
func (e *Executor) ResizeSurface(width, height int) error {
	if e.closed {
		return errClosed
	}
	if err := field.CheckSize(width, height, 4); err != nil {
		return err
	}
	if e.surface != nil && e.surface.Width() == width && e.surface.Height() == height {
		return nil
	}
	if _, _, err := field.Select(field.Unorm8, width, height, e.cfg.StorageLimit); err != nil {
		return fmt.Errorf("software: surface: %w", err)
	}
	e.surface.Release()
	s := &storage{owner: e, data: make([]field.Texel, width*height)}
	e.surface = field.New("surface", width, height, 4, field.Unorm8, s)
	return nil
}

// Surface implements kernel.Executor.
func (e *Executor) Surface() *field.Field { return e.surface }

// ReadPixels implements kernel.Executor.
func (e *Executor) ReadPixels(dst []byte) error {
	if e.surface == nil {
		return kernel.ErrNoSurface
	}
	s, err := e.own(e.surface)
	if err != nil {
		return err
	}
	if len(dst) < len(s.data)*4 {
		return fmt.Errorf("software: pixel buffer holds %d bytes, need %d", len(dst), len(s.data)*4)
	}
	for i, v := range s.data {
		field.Encode(field.Unorm8, v, dst[i*4:])
	}
	return nil
}

// ReadField implements kernel.Executor.
func (e *Executor) ReadField(f *field.Field) ([]float32, error) {
	s, err := e.own(f)
	if err != nil {
		return nil, err
	}
	out := make([]float32, 0, len(s.data)*4)
	for _, v := range s.data {
		out = append(out, v[:]...)
	}
	return out, nil
}

// WriteField replaces the contents of f, four floats per texel, quantized
// to f's format. Tests use it to seed synthetic fields.
func (e *Executor) WriteField(f *field.Field, values []float32) error {
	s, err := e.own(f)
	if err != nil {
		return err
	}
	if len(values) != len(s.data)*4 {
		return fmt.Errorf("software: %s needs %d values, got %d", f.Label(), len(s.data)*4, len(values))
	}
	for i := range s.data {
		var v field.Texel
		copy(v[:], values[i*4:i*4+4])
		s.data[i] = field.Quantize(f.Format(), field.Mask(f.Channels(), v))
	}
	return nil
}

// Close implements kernel.Executor.
func (e *Executor) Close() error {
	if e.closed {
		return nil
	}
	e.surface.Release()
	e.surface = nil
	e.pool.Close()
	e.closed = true
	return nil
}

func (e *Executor) own(f *field.Field) (*storage, error) {
	if f.Released() {
		return nil, fmt.Errorf("%w: %s", kernel.ErrReleased, f.Label())
	}
	s, ok := f.Storage().(*storage)
	if !ok || s.owner != e {
		return nil, fmt.Errorf("%w: %s", kernel.ErrForeignField, f.Label())
	}
	if s.data == nil {
		return nil, fmt.Errorf("%w: %s", kernel.ErrReleased, f.Label())
	}
	return s, nil
}

// grid adapts storage to kernel.Sampler.
type grid struct {
	w, h int
	data []field.Texel
}

func (g grid) Size() (int, int)           { return g.w, g.h }
func (g grid) Fetch(x, y int) field.Texel { return g.data[y*g.w+x] }

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
