package software

import (
	"slices"
	"testing"

	"github.com/gogpu/fluid"
)

func TestRegistered(t *testing.T) {
	if !slices.Contains(fluid.Backends(), Name) {
		t.Fatalf("Backends() = %v, want %q registered", fluid.Backends(), Name)
	}
}

func TestOpenPassesFormat(t *testing.T) {
	p := fluid.DefaultParams()
	p.VelocityResolution = 4
	p.DyeResolution = 8
	p.Precision = "unorm8"

	sim, err := fluid.New(8, 8, fluid.WithBackend(Name), fluid.WithParams(p))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer sim.Close()
	if got := sim.Backend(); got != Name {
		t.Errorf("Backend() = %q, want %q", got, Name)
	}
	if err := sim.Step(1.0 / 60); err != nil {
		t.Fatalf("Step() = %v", err)
	}
}
