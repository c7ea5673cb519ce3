package fluid

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
	"github.com/gogpu/fluid/internal/software"
)

// The reference backend is opt-in through package software, which imports
// this package; tests here register it directly.
func init() {
	RegisterBackend(software.Name, func(cfg BackendConfig) (kernel.Executor, error) {
		return software.New(software.Config{Format: cfg.Format}), nil
	})
}

func TestBackendsSorted(t *testing.T) {
	RegisterBackend("aaa-test", func(BackendConfig) (kernel.Executor, error) { return nil, errors.New("unused") })
	t.Cleanup(func() {
		backendMu.Lock()
		delete(backends, "aaa-test")
		backendMu.Unlock()
	})
	names := Backends()
	if !slices.Contains(names, software.Name) || !slices.Contains(names, "aaa-test") {
		t.Errorf("Backends() = %v, want software and aaa-test", names)
	}
	if !slices.IsSorted(names) {
		t.Errorf("Backends() = %v, not sorted", names)
	}
}

func TestOpenBackendPassesConfig(t *testing.T) {
	var got BackendConfig
	RegisterBackend("config-test", func(cfg BackendConfig) (kernel.Executor, error) {
		got = cfg
		return software.New(software.Config{Format: cfg.Format}), nil
	})
	t.Cleanup(func() {
		backendMu.Lock()
		delete(backends, "config-test")
		backendMu.Unlock()
	})

	p := smallParams()
	p.Precision = "unorm8"
	sim, err := New(16, 16, WithBackend("config-test"), WithParams(p))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer sim.Close()
	if got.Format != field.Unorm8 {
		t.Errorf("factory Format = %v, want unorm8", got.Format)
	}
	if got.Provider != nil {
		t.Errorf("factory Provider = %v, want nil", got.Provider)
	}
}

func TestOpenBackendFailureIsFatal(t *testing.T) {
	errNoDevice := errors.New("no adapter")
	RegisterBackend("failing-test", func(BackendConfig) (kernel.Executor, error) {
		return nil, errNoDevice
	})
	t.Cleanup(func() {
		backendMu.Lock()
		delete(backends, "failing-test")
		backendMu.Unlock()
	})

	_, err := New(16, 16, WithBackend("failing-test"), WithParams(smallParams()))
	if !errors.Is(err, errNoDevice) {
		t.Errorf("New() = %v, want wrapped backend error", err)
	}
	if len(liveExecutors()) != 0 {
		t.Errorf("failed open left %d live executors", len(liveExecutors()))
	}
}

func TestRegisterBackendPanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("RegisterBackend(\"\", nil) did not panic")
		}
	}()
	RegisterBackend("", nil)
}
