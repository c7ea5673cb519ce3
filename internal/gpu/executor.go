//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
)

// Name is the backend name of the wgpu executor.
const Name = "wgpu"

// fenceTimeout bounds how long a readback waits for the GPU.
const fenceTimeout = 5 * time.Second

var (
	// ErrNoDevice is returned when no usable GPU device could be obtained.
	ErrNoDevice = errors.New("gpu: no usable device")

	// ErrClosed is returned by operations on a closed executor.
	ErrClosed = errors.New("gpu: executor closed")
)

// Config configures an Executor.
type Config struct {
	// Format is the preferred storage format.
	Format field.Format

	// Provider shares an existing device instead of creating one.
	// Its Device() must return a *wgpu.Device.
	Provider gpucontext.DeviceProvider

	// StorageLimit lowers the device's max storage binding size.
	// Zero uses the device limit.
	StorageLimit uint64

	// MaxMemoryMB is the field memory budget. Zero selects DefaultMaxMemoryMB.
	MaxMemoryMB int

	// Logger receives device selection and compile records. Nil is silent.
	Logger *slog.Logger
}

// Stats reports executor activity.
type Stats struct {
	Dispatches uint64
	Readbacks  uint64
	Pipelines  int
	Memory     MemoryStats
}

// Executor implements kernel.Executor with wgpu compute shaders.
//
// Executor is safe for concurrent use, but a simulation drives it from a
// single goroutine.
type Executor struct {
	mu sync.Mutex

	cfg      Config
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	external bool
	limit    uint64

	memory    *MemoryManager
	pipelines map[string]*pipeline
	surface   *field.Field

	logger atomic.Pointer[slog.Logger]

	dispatches uint64
	readbacks  uint64
	closed     bool
}

var _ kernel.Executor = (*Executor)(nil)

// New creates an executor on a new device, or on cfg.Provider's device,
// and compiles the preferred-format variant of every program.
func New(cfg Config) (*Executor, error) {
	e := &Executor{
		cfg:       cfg,
		memory:    NewMemoryManager(cfg.MaxMemoryMB),
		pipelines: make(map[string]*pipeline),
	}
	e.SetLogger(cfg.Logger)
	if err := e.initDevice(); err != nil {
		e.releaseDevice()
		return nil, err
	}

	e.limit = e.device.Limits().MaxStorageBufferBindingSize
	if cfg.StorageLimit != 0 && (e.limit == 0 || cfg.StorageLimit < e.limit) {
		e.limit = cfg.StorageLimit
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range kernel.Programs() {
		for _, ch := range []int{1, 2, 4} {
			if _, err := e.pipelineFor(kernel.Uniform(p, cfg.Format, ch)); err != nil {
				e.closeLocked()
				return nil, err
			}
		}
	}
	e.log().Info("gpu: executor ready",
		"format", cfg.Format, "storage_limit", e.limit,
		"shared_device", e.external, "pipelines", len(e.pipelines))
	return e, nil
}

func (e *Executor) initDevice() error {
	if e.cfg.Provider != nil {
		info := e.cfg.Provider.AdapterInfo()
		if info.Type == gpucontext.AdapterTypeSoftware {
			return fmt.Errorf("%w: provider adapter %q is a software renderer", ErrNoDevice, info.Name)
		}
		device, ok := e.cfg.Provider.Device().(*wgpu.Device)
		if !ok || device == nil {
			return fmt.Errorf("%w: provider device is %T, not *wgpu.Device", ErrNoDevice, e.cfg.Provider.Device())
		}
		e.device = device
		e.external = true
	} else {
		instance, err := wgpu.CreateInstance(nil)
		if err != nil {
			return fmt.Errorf("%w: create instance: %w", ErrNoDevice, err)
		}
		e.instance = instance
		adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})
		if err != nil {
			return fmt.Errorf("%w: request adapter: %w", ErrNoDevice, err)
		}
		e.adapter = adapter
		if err := checkAdapter(adapter.Info()); err != nil {
			return err
		}
		e.log().Info("gpu: adapter selected",
			"name", adapter.Info().Name, "type", adapter.Info().DeviceType)
		device, err := adapter.RequestDevice(nil)
		if err != nil {
			return fmt.Errorf("%w: request device: %w", ErrNoDevice, err)
		}
		e.device = device
	}
	e.queue = e.device.Queue()
	if e.queue == nil {
		return fmt.Errorf("%w: device has no queue", ErrNoDevice)
	}
	return nil
}

// checkAdapter accepts hardware and virtual GPUs. CPU adapters interpret
// shaders and are rejected like a missing device.
func checkAdapter(info wgpu.AdapterInfo) error {
	if info.DeviceType == gputypes.DeviceTypeCPU {
		return fmt.Errorf("%w: adapter %q is a software renderer", ErrNoDevice, info.Name)
	}
	return nil
}

func (e *Executor) releaseDevice() {
	if !e.external && e.device != nil {
		e.device.Release()
	}
	if e.adapter != nil {
		e.adapter.Release()
	}
	if e.instance != nil {
		e.instance.Release()
	}
	e.device, e.adapter, e.instance, e.queue = nil, nil, nil, nil
}

// Name implements kernel.Executor.
func (e *Executor) Name() string { return Name }

// StorageLimit returns the effective max storage binding size in bytes.
func (e *Executor) StorageLimit() uint64 { return e.limit }

// Stats returns dispatch, pipeline and memory counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Dispatches: e.dispatches,
		Readbacks:  e.readbacks,
		Pipelines:  len(e.pipelines),
		Memory:     e.memory.Stats(),
	}
}

// Alloc implements field.Allocator.
func (e *Executor) Alloc(label string, width, height, channels int) (*field.Field, error) {
	if err := field.CheckSize(width, height, channels); err != nil {
		return nil, err
	}
	format, degraded, err := field.Select(e.cfg.Format, width, height, e.limit)
	if err != nil {
		return nil, fmt.Errorf("gpu: alloc %s: %w", label, err)
	}
	if degraded {
		e.log().Debug("gpu: storage format degraded",
			"field", label, "preferred", e.cfg.Format, "format", format,
			"width", width, "height", height, "limit", e.limit)
	}
	return e.alloc(label, width, height, channels, format)
}

func (e *Executor) alloc(label string, width, height, channels int, format field.Format) (*field.Field, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	//nolint:gosec // G115: dimensions validated by CheckSize
	size := uint64(width) * uint64(height) * uint64(format.BytesPerTexel())
	b, err := e.newBuffer(label, size)
	if err != nil {
		return nil, err
	}
	return field.New(label, width, height, channels, format, b), nil
}

// Run implements kernel.Executor.
func (e *Executor) Run(p *kernel.Program, target *field.Field, u kernel.Uniforms) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
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
	inputs := make([]*buffer, len(b.Inputs))
	for i, in := range b.Inputs {
		if inputs[i], err = e.own(in); err != nil {
			return err
		}
	}
	pl, err := e.pipelineFor(b.Variant())
	if err != nil {
		return err
	}
	bg, err := pl.group(e.device, dst, inputs)
	if err != nil {
		return err
	}
	if err := e.queue.WriteBuffer(pl.uniform, 0, b.Pack()); err != nil {
		return fmt.Errorf("gpu: write uniforms %s: %w", p.Name, err)
	}

	encoder, err := e.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: p.Name})
	if err != nil {
		return fmt.Errorf("gpu: create encoder: %w", err)
	}
	pass, err := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: p.Name})
	if err != nil {
		return fmt.Errorf("gpu: begin compute pass: %w", err)
	}
	pass.SetPipeline(pl.compute)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(workgroups(b.Target.Width()), workgroups(b.Target.Height()), 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("gpu: end compute pass %s: %w", p.Name, err)
	}
	cmd, err := encoder.Finish()
	if err != nil {
		return fmt.Errorf("gpu: finish %s: %w", p.Name, err)
	}
	if _, err := e.queue.Submit(cmd); err != nil {
		return fmt.Errorf("gpu: submit %s: %w", p.Name, err)
	}
	e.dispatches++
	return nil
}

func workgroups(n int) uint32 {
	//nolint:gosec // G115: n is a validated field dimension
	return uint32((n + kernel.WorkgroupSize - 1) / kernel.WorkgroupSize)
}

// ResizeSurface implements kernel.Executor.
func (e *Executor) ResizeSurface(width, height int) error {
	if err := field.CheckSize(width, height, 4); err != nil {
		return err
	}
	if s := e.Surface(); s != nil && s.Width() == width && s.Height() == height {
		return nil
	}
	if _, _, err := field.Select(field.Unorm8, width, height, e.limit); err != nil {
		return fmt.Errorf("gpu: surface: %w", err)
	}
	surface, err := e.alloc("surface", width, height, 4, field.Unorm8)
	if err != nil {
		return err
	}
	e.mu.Lock()
	old := e.surface
	e.surface = surface
	e.mu.Unlock()
	old.Release()
	return nil
}

// Surface implements kernel.Executor.
func (e *Executor) Surface() *field.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.surface
}

// ReadPixels implements kernel.Executor.
func (e *Executor) ReadPixels(dst []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.surface == nil {
		return kernel.ErrNoSurface
	}
	b, err := e.own(e.surface)
	if err != nil {
		return err
	}
	if uint64(len(dst)) < b.size {
		return fmt.Errorf("gpu: pixel buffer holds %d bytes, need %d", len(dst), b.size)
	}
	data, err := e.readBuffer(b)
	if err != nil {
		return err
	}
	e.readbacks++
	copy(dst, data)
	return nil
}

// ReadField implements kernel.Executor.
func (e *Executor) ReadField(f *field.Field) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	b, err := e.own(f)
	if err != nil {
		return nil, err
	}
	data, err := e.readBuffer(b)
	if err != nil {
		return nil, err
	}
	e.readbacks++
	stride := f.Format().BytesPerTexel()
	out := make([]float32, 0, f.Texels()*4)
	for i := range f.Texels() {
		v := field.Decode(f.Format(), data[i*stride:])
		out = append(out, v[:]...)
	}
	return out, nil
}

// WriteField uploads four floats per texel into f, encoded in f's format.
func (e *Executor) WriteField(f *field.Field, values []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	b, err := e.own(f)
	if err != nil {
		return err
	}
	if len(values) != f.Texels()*4 {
		return fmt.Errorf("gpu: %s needs %d values, got %d", f.Label(), f.Texels()*4, len(values))
	}
	stride := f.Format().BytesPerTexel()
	data := make([]byte, b.size)
	for i := range f.Texels() {
		var v field.Texel
		copy(v[:], values[i*4:i*4+4])
		field.Encode(f.Format(), field.Mask(f.Channels(), v), data[i*stride:])
	}
	return e.queue.WriteBuffer(b.buf, 0, data)
}

// Close implements kernel.Executor. A shared device is left alive.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
	return nil
}

func (e *Executor) closeLocked() {
	if e.closed {
		return
	}
	e.closed = true
	for key, p := range e.pipelines {
		p.destroy()
		delete(e.pipelines, key)
	}
	for _, b := range e.memory.Close() {
		e.destroyBuffer(b)
	}
	e.surface = nil
	e.releaseDevice()
	e.log().Debug("gpu: executor closed")
}
