package fluid

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
)

// ErrNoBackend is returned when no executor is registered under the
// requested backend name.
var ErrNoBackend = errors.New("fluid: backend not available")

// DefaultBackend is the backend New uses when WithBackend is not given.
const DefaultBackend = "wgpu"

// BackendConfig is passed to a BackendFactory.
type BackendConfig struct {
	// Format is the preferred field storage format.
	Format field.Format

	// Provider shares an existing GPU device, when set.
	Provider gpucontext.DeviceProvider
}

// BackendFactory creates a kernel executor. A factory that cannot obtain its
// device returns an error; the simulation never substitutes another backend.
type BackendFactory func(BackendConfig) (kernel.Executor, error)

var (
	backendMu sync.RWMutex
	backends  = map[string]BackendFactory{}
)

// RegisterBackend makes a backend available under name. Registering a name
// twice replaces the earlier factory.
//
// Backends register themselves from init via blank import:
//
//	import _ "github.com/gogpu/fluid/gpu"      // registers "wgpu"
//	import _ "github.com/gogpu/fluid/software" // registers the CPU reference
func RegisterBackend(name string, f BackendFactory) {
	if name == "" || f == nil {
		panic("fluid: RegisterBackend requires a name and a factory")
	}
	backendMu.Lock()
	backends[name] = f
	backendMu.Unlock()
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// openBackend creates the executor registered under name.
func openBackend(name string, cfg BackendConfig) (kernel.Executor, error) {
	backendMu.RLock()
	f, ok := backends[name]
	backendMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrNoBackend, name, Backends())
	}
	exec, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("fluid: open backend %q: %w", name, err)
	}
	propagateLogger(exec, Logger())
	trackExecutor(exec)
	return exec, nil
}

// loggerSetter is implemented by executors that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the logger to an executor if it implements
// loggerSetter. Called from both SetLogger and openBackend so that every
// live executor has the current logger.
func propagateLogger(exec kernel.Executor, l *slog.Logger) {
	if ls, ok := exec.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

var (
	liveMu sync.Mutex
	live   = map[kernel.Executor]struct{}{}
)

func trackExecutor(exec kernel.Executor) {
	liveMu.Lock()
	live[exec] = struct{}{}
	liveMu.Unlock()
}

func untrackExecutor(exec kernel.Executor) {
	liveMu.Lock()
	delete(live, exec)
	liveMu.Unlock()
}

func liveExecutors() []kernel.Executor {
	liveMu.Lock()
	defer liveMu.Unlock()
	out := make([]kernel.Executor, 0, len(live))
	for exec := range live {
		out = append(out, exec)
	}
	return out
}
