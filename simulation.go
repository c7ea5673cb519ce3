package fluid

import (
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
	"github.com/gogpu/fluid/internal/solver"
)

// burstVelocity bounds each velocity component of a multi-splat injection.
const burstVelocity = 500

// Simulation is a fluid simulation bound to one kernel executor.
//
// Step, Present, Clear and ReadPixels are meant for the host's frame loop.
// SetParams may be called from any goroutine; the new snapshot takes effect
// at the start of the next tick.
type Simulation struct {
	params atomic.Pointer[Params]

	mu       sync.Mutex
	backend  string
	provider gpucontext.DeviceProvider
	exec     kernel.Executor
	solver   *solver.Solver
	format   field.Format
	tracker  *Tracker
	rng      *rand.Rand
	observer Observer

	width, height int
	pendingW      int
	pendingH      int
	burst         []Splat
	closed        bool
	failed        error
}

// New creates a simulation for a canvas of width x height pixels. Every
// field starts at rest.
//
// New fails with ErrNoBackend when the requested backend is not registered,
// and with the backend's error when it cannot be opened. There is no
// fallback to another backend.
func New(width, height int, opts ...Option) (*Simulation, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrInvalidParams, width, height)
	}
	if err := o.params.Validate(); err != nil {
		return nil, err
	}

	seed := o.seed
	if !o.seeded {
		seed = rand.Uint64()
	}
	s := &Simulation{
		backend:  o.backend,
		provider: o.provider,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		observer: o.observer,
		width:    width,
		height:   height,
	}
	p := o.params
	s.params.Store(&p)
	s.tracker = NewTracker(func() [3]float32 {
		return s.palette().Sample(s.rng, pointerIntensity)
	})

	if err := s.open(p); err != nil {
		return nil, err
	}
	Logger().Info("fluid: simulation created",
		slog.String("backend", s.exec.Name()),
		slog.Int("width", width),
		slog.Int("height", height))
	return s, nil
}

// open creates the executor, its surface and the solver for params p.
func (s *Simulation) open(p Params) error {
	exec, err := openBackend(s.backend, BackendConfig{Format: p.format(), Provider: s.provider})
	if err != nil {
		return err
	}
	if err := exec.ResizeSurface(s.width, s.height); err != nil {
		s.closeExecutor(exec)
		return fmt.Errorf("fluid: surface: %w", err)
	}
	sol, err := solver.New(exec, p.grid(s.width, s.height))
	if err != nil {
		s.closeExecutor(exec)
		return fmt.Errorf("fluid: %w", err)
	}
	s.exec, s.solver, s.format = exec, sol, p.format()
	s.observeGrid()
	return nil
}

func (s *Simulation) closeExecutor(exec kernel.Executor) {
	untrackExecutor(exec)
	if err := exec.Close(); err != nil {
		Logger().Warn("fluid: close executor", slog.String("err", err.Error()))
	}
}

func (s *Simulation) observeGrid() {
	if s.observer == nil {
		return
	}
	g := s.solver.Grid()
	s.observer.ObserveGrid(GridStats{
		VelocityWidth:  g.VelocityWidth,
		VelocityHeight: g.VelocityHeight,
		DyeWidth:       g.DyeWidth,
		DyeHeight:      g.DyeHeight,
		Format:         s.solver.Dye().Format().String(),
	})
}

func (s *Simulation) palette() Palette {
	if p, ok := palettes[s.params.Load().Palette]; ok {
		return p
	}
	return palettes[DefaultPalette]
}

// usable reports why the simulation cannot run: ErrClosed after Close, or
// the reallocation error that left it without fields. Called with s.mu held.
func (s *Simulation) usable() error {
	if s.closed {
		return ErrClosed
	}
	return s.failed
}

// fail releases whatever the failed reallocation left and makes err sticky.
func (s *Simulation) fail(err error) error {
	if s.solver != nil {
		s.solver.Release()
	}
	s.failed = fmt.Errorf("fluid: simulation unusable: %w", err)
	Logger().Warn("fluid: reallocation failed", slog.String("err", err.Error()))
	return s.failed
}

// Params returns the current parameter snapshot.
func (s *Simulation) Params() Params { return *s.params.Load() }

// SetParams validates p and publishes it for the next tick. A change of
// resolution or precision reallocates every field at the next tick,
// resetting the simulation to rest.
func (s *Simulation) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.params.Store(&p)
	return nil
}

// Backend returns the name of the executor in use.
func (s *Simulation) Backend() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exec == nil {
		return s.backend
	}
	return s.exec.Name()
}

// Size returns the canvas size the surface currently has.
func (s *Simulation) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Grid returns the current velocity and dye grid dimensions, or the zero
// Grid once a reallocation has failed.
func (s *Simulation) Grid() solver.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.solver == nil || s.failed != nil {
		return solver.Grid{}
	}
	return s.solver.Grid()
}

// Resize schedules a canvas resize. It is applied at the start of the next
// Step and, when the size differs, reallocates every field at rest.
func (s *Simulation) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalidParams, width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	s.pendingW, s.pendingH = width, height
	return nil
}

// HandlePointer feeds one pointer event to the input tracker.
func (s *Simulation) HandlePointer(ev gpucontext.PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Handle(ev)
}

// MultiSplat queues count random injections, applied together at the next
// tick. Only one batch may be pending.
func (s *Simulation) MultiSplat(count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: splat count %d must be positive", ErrInvalidParams, count)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if len(s.burst) > 0 {
		return ErrSplatPending
	}
	pal := s.palette()
	batch := make([]Splat, count)
	for i := range batch {
		batch[i] = Splat{
			X:     s.rng.Float32(),
			Y:     s.rng.Float32(),
			DX:    burstVelocity * (2*s.rng.Float32() - 1),
			DY:    burstVelocity * (2*s.rng.Float32() - 1),
			Color: pal.Sample(s.rng, burstIntensity),
		}
	}
	s.burst = batch
	return nil
}

// SplatPending reports whether a multi-splat batch is queued.
func (s *Simulation) SplatPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.burst) > 0
}

// Step advances the simulation by dt seconds: pending resize or
// reallocation, queued injections, then the solver step unless paused.
// A dispatch error aborts the tick. A failed reallocation leaves the
// simulation without fields: Step and every later call except Close
// return that error.
func (s *Simulation) Step(dt float32) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}

	p := *s.params.Load()
	if err := s.reconcile(p); err != nil {
		return err
	}
	before := s.solver.Dispatches()

	splats := append(s.burst, s.tracker.Drain(s.width, s.height)...)
	s.burst = nil
	aspect := float32(s.width) / float32(s.height)
	if err := s.solver.SplatAll(splats, p.SplatRadius, aspect); err != nil {
		return fmt.Errorf("fluid: splat: %w", err)
	}

	if !p.Paused {
		if err := s.solver.Step(dt, p.stepParams()); err != nil {
			return fmt.Errorf("fluid: step: %w", err)
		}
	}

	if s.observer != nil {
		s.observer.ObserveTick(TickStats{
			Duration:   time.Since(start),
			Dispatches: s.solver.Dispatches() - before,
			Splats:     len(splats),
			Paused:     p.Paused,
		})
	}
	return nil
}

// reconcile applies a pending resize and any resolution or precision change
// of p. Each reallocation resets the simulation to rest.
func (s *Simulation) reconcile(p Params) error {
	resized := false
	if s.pendingW > 0 {
		w, h := s.pendingW, s.pendingH
		s.pendingW, s.pendingH = 0, 0
		if w != s.width || h != s.height {
			if err := s.exec.ResizeSurface(w, h); err != nil {
				return fmt.Errorf("fluid: surface: %w", err)
			}
			s.width, s.height = w, h
			resized = true
		}
	}

	if p.format() != s.format {
		Logger().Info("fluid: precision changed",
			slog.String("from", s.format.String()),
			slog.String("to", p.format().String()))
		s.solver.Release()
		s.closeExecutor(s.exec)
		s.exec, s.solver = nil, nil
		if err := s.open(p); err != nil {
			return s.fail(err)
		}
		return nil
	}

	g := p.grid(s.width, s.height)
	if !resized && g == s.solver.Grid() {
		return nil
	}
	if err := s.solver.Resize(g); err != nil {
		return s.fail(fmt.Errorf("resize: %w", err))
	}
	Logger().Info("fluid: grid reallocated",
		slog.Int("velocity_width", g.VelocityWidth),
		slog.Int("velocity_height", g.VelocityHeight),
		slog.Int("dye_width", g.DyeWidth),
		slog.Int("dye_height", g.DyeHeight))
	s.observeGrid()
	return nil
}

// Present renders the dye into the surface.
func (s *Simulation) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.solver.Present(); err != nil {
		return fmt.Errorf("fluid: present: %w", err)
	}
	return nil
}

// Clear sets the dye to zero. Velocity is untouched.
func (s *Simulation) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.solver.Clear(); err != nil {
		return fmt.Errorf("fluid: clear: %w", err)
	}
	return nil
}

// ReadPixels copies the surface into dst as RGBA8, top row first.
// dst must hold width*height*4 bytes of the current Size.
func (s *Simulation) ReadPixels(dst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	return s.exec.ReadPixels(dst)
}

// Image returns a copy of the surface.
func (s *Simulation) Image() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	surf := s.exec.Surface()
	img := image.NewRGBA(image.Rect(0, 0, surf.Width(), surf.Height()))
	if err := s.exec.ReadPixels(img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

// FieldNames lists the names accepted by ReadField.
var FieldNames = []string{"velocity", "dye", "pressure", "divergence", "curl"}

// ReadField returns the current contents of a named field, four floats per
// texel with row 0 at the bottom, and its dimensions.
func (s *Simulation) ReadField(name string) (data []float32, width, height int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, 0, 0, err
	}
	var f *field.Field
	switch name {
	case "velocity":
		f = s.solver.Velocity().Read()
	case "dye":
		f = s.solver.Dye().Read()
	case "pressure":
		f = s.solver.Pressure().Read()
	case "divergence":
		f = s.solver.Divergence()
	case "curl":
		f = s.solver.Curl()
	default:
		return nil, 0, 0, fmt.Errorf("%w: unknown field %q", ErrInvalidParams, name)
	}
	data, err = s.exec.ReadField(f)
	if err != nil {
		return nil, 0, 0, err
	}
	return data, f.Width(), f.Height(), nil
}

// Close releases every field and the executor, also after a failed
// reallocation. Further calls return ErrClosed.
func (s *Simulation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	if s.solver != nil {
		s.solver.Release()
	}
	if s.exec == nil {
		return nil
	}
	untrackExecutor(s.exec)
	return s.exec.Close()
}
