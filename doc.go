// Package fluid is a real-time 2D fluid simulator built on the stable-fluids
// method, running entirely on the GPU through WebGPU compute.
//
// # Overview
//
// A Simulation holds a velocity field, a pressure field, a dye field and two
// scratch fields on a uniform grid. Every tick it deposits the queued
// injections, confines vorticity, projects the velocity onto its
// divergence-free part with Jacobi pressure relaxation and advects velocity
// and dye semi-Lagrangianly. Present renders the dye into an RGBA surface.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/fluid"
//	    _ "github.com/gogpu/fluid/gpu" // register the wgpu backend
//	)
//
//	sim, err := fluid.New(800, 600)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sim.Close()
//
//	_ = sim.MultiSplat(10)
//	for range 120 {
//	    if err := sim.Step(1.0 / 60); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	_ = sim.Present()
//	img, _ := sim.Image()
//
// # Backends
//
// Kernels run on a named backend, registered by importing its package.
// "wgpu" (package gpu) dispatches WGSL compute shaders. "software" (package
// software) evaluates the same kernels per texel in Go; it is the numeric
// reference for tests and is never registered unless imported. A backend
// that cannot be opened is an error; the simulation never falls back to
// another one.
//
// # Parameters
//
// Params is a value snapshot. SetParams may be called from any goroutine
// and takes effect at the start of the next tick. LoadParams reads YAML
// files and WatchParams reloads them on change.
//
// # Input
//
// HandlePointer consumes gpucontext.PointerEvent values. Every contact that
// moved since the last tick injects one splat along its motion. MultiSplat
// queues a random burst.
//
// # Logging
//
// fluid is silent by default. See SetLogger.
package fluid
