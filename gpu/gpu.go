//go:build !nogpu

// Package gpu registers the wgpu compute backend.
//
// Import this package to run simulations on the GPU. The backend opens a
// WebGPU device through gogpu/wgpu when a simulation is created, or uses
// the device of a provider passed with fluid.WithDeviceProvider.
//
// If no adapter is available (no Vulkan/Metal/DX12), fluid.New fails with
// the device error. There is no fallback to the reference backend; select
// it explicitly with fluid.WithBackend("software").
//
// Build with -tags nogpu to leave the backend out of the binary.
//
// Usage:
//
//	import _ "github.com/gogpu/fluid/gpu" // register the "wgpu" backend
package gpu

import (
	"github.com/gogpu/fluid"
	gpuimpl "github.com/gogpu/fluid/internal/gpu"
	"github.com/gogpu/fluid/internal/kernel"
)

func init() {
	fluid.RegisterBackend(gpuimpl.Name, open)
}

func open(cfg fluid.BackendConfig) (kernel.Executor, error) {
	exec, err := gpuimpl.New(gpuimpl.Config{
		Format:   cfg.Format,
		Provider: cfg.Provider,
		Logger:   fluid.Logger(),
	})
	if err != nil {
		fluid.Logger().Warn("GPU backend not available", "err", err)
		return nil, err
	}
	return exec, nil
}
