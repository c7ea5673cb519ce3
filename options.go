package fluid

import (
	"time"

	"github.com/gogpu/gpucontext"
)

// Option configures a Simulation during creation.
//
// Example:
//
//	// Default backend (wgpu), default parameters
//	sim, err := fluid.New(800, 600)
//
//	// Reference backend (import _ "github.com/gogpu/fluid/software") with a fixed seed
//	sim, err := fluid.New(800, 600, fluid.WithBackend("software"), fluid.WithSeed(1))
type Option func(*options)

// options holds optional configuration for Simulation creation.
type options struct {
	params   Params
	backend  string
	provider gpucontext.DeviceProvider
	seed     uint64
	seeded   bool
	observer Observer
}

// defaultOptions returns the default simulation options.
func defaultOptions() options {
	return options{
		params:  DefaultParams(),
		backend: DefaultBackend,
	}
}

// WithParams sets the initial parameter snapshot. New validates it.
func WithParams(p Params) Option {
	return func(o *options) {
		o.params = p
	}
}

// WithBackend selects the kernel executor by registered name.
// See Backends for the names available in the current binary.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithDeviceProvider shares an existing GPU device with the simulation
// instead of creating a private one. The provider keeps ownership: Close
// does not release the shared device.
//
// Example:
//
//	provider := app.GPUContextProvider()
//	sim, err := fluid.New(w, h, fluid.WithDeviceProvider(provider))
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithSeed fixes the seed of the random source used for palette colors and
// multi-splat bursts.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// WithObserver receives per-tick statistics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// TickStats describes one completed tick.
type TickStats struct {
	// Duration is the wall time of Step.
	Duration time.Duration

	// Dispatches is the number of kernel dispatches the tick issued.
	Dispatches uint64

	// Splats is the number of injection requests applied.
	Splats int

	// Paused reports whether the solver step was skipped.
	Paused bool
}

// GridStats describes the grid after a (re)allocation.
type GridStats struct {
	VelocityWidth, VelocityHeight int
	DyeWidth, DyeHeight           int
	Format                        string
}

// Observer receives simulation statistics. Methods are called from the
// goroutine running Step.
type Observer interface {
	ObserveTick(TickStats)
	ObserveGrid(GridStats)
}
