package fluid

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/fluid/internal/kernel"
	"github.com/gogpu/fluid/internal/software"
)

// recordingExecutor is a reference executor that remembers the logger it
// was given.
type recordingExecutor struct {
	kernel.Executor
	mu     sync.Mutex
	logger *slog.Logger
}

func (r *recordingExecutor) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
}

func (r *recordingExecutor) current() *slog.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logger
}

// registerRecording registers a backend that hands out recordingExecutors
// and returns a pointer to the last one created.
func registerRecording(t *testing.T, name string) **recordingExecutor {
	t.Helper()
	var last *recordingExecutor
	RegisterBackend(name, func(cfg BackendConfig) (kernel.Executor, error) {
		last = &recordingExecutor{Executor: software.New(software.Config{Format: cfg.Format})}
		return last, nil
	})
	t.Cleanup(func() {
		backendMu.Lock()
		delete(backends, name)
		backendMu.Unlock()
	})
	return &last
}

func TestNopHandler_Enabled(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
}

func TestNopHandler_Handle(t *testing.T) {
	h := nopHandler{}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
}

func TestNopHandler_WithAttrsAndGroup(t *testing.T) {
	h := nopHandler{}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("key", "val")}).(nopHandler); !ok {
		t.Error("nopHandler.WithAttrs() did not return nopHandler")
	}
	if _, ok := h.WithGroup("group").(nopHandler); !ok {
		t.Error("nopHandler.WithGroup() did not return nopHandler")
	}
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger should not be enabled for %v", level)
		}
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	SetLogger(custom)

	got := Logger()
	if got != custom {
		t.Error("Logger() did not return the custom logger set via SetLogger")
	}

	got.Info("test message", "key", "value")
	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("expected log output to contain 'test message', got: %s", buf.String())
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) should set nop logger, not nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should produce a disabled logger")
	}
}

func TestSetLoggerPropagatesToExecutor(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	last := registerRecording(t, "logger-test")

	sim, err := New(32, 32, WithBackend("logger-test"), WithParams(smallParams()))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer sim.Close()

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)

	if (*last).current() != custom {
		t.Error("SetLogger did not propagate to executor via loggerSetter")
	}
}

func TestNewPropagatesCurrentLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	last := registerRecording(t, "propagation-test")

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)

	sim, err := New(32, 32, WithBackend("propagation-test"), WithParams(smallParams()))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer sim.Close()

	if (*last).current() != custom {
		t.Error("New did not propagate current logger to executor")
	}
}

func TestClosedSimulationStopsReceivingLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	last := registerRecording(t, "closed-test")

	sim, err := New(32, 32, WithBackend("closed-test"), WithParams(smallParams()))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	before := (*last).current()
	if err := sim.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if (*last).current() != before {
		t.Error("closed executor still received SetLogger")
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	const goroutines = 100

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := Logger()
			if l == nil {
				t.Error("Logger() returned nil during concurrent access")
			}
			l.Debug("concurrent read")
		}()
	}

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}

	wg.Wait()
}

func BenchmarkLoggerLoad(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		l := Logger()
		_ = l
	}
}

func BenchmarkLoggerDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("message", "key", "value")
	}
}
