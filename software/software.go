// Package software registers the CPU reference backend.
//
// The reference backend evaluates every kernel per texel in Go with the
// storage quantization of the GPU formats. It exists to check the solver's
// numerics on machines without a GPU and is far too slow for interactive
// use. Nothing registers it implicitly: import this package to make
// fluid.WithBackend("software") available.
//
// Usage:
//
//	import _ "github.com/gogpu/fluid/software" // register the "software" backend
package software

import (
	"github.com/gogpu/fluid"
	"github.com/gogpu/fluid/internal/kernel"
	swimpl "github.com/gogpu/fluid/internal/software"
)

// Name is the backend name registered by this package.
const Name = swimpl.Name

func init() {
	fluid.RegisterBackend(Name, open)
}

func open(cfg fluid.BackendConfig) (kernel.Executor, error) {
	return swimpl.New(swimpl.Config{Format: cfg.Format}), nil
}
