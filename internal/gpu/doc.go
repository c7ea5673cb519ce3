//go:build !nogpu

// Package gpu runs fluid kernels as WebGPU compute shaders.
//
// It uses the gogpu/wgpu Pure Go WebGPU implementation (zero CGO), which
// supports Vulkan, Metal, DX12 and GLES depending on the platform.
//
// # Storage
//
// Every field is a storage buffer holding four components per texel in the
// field's format:
//
//	float32  array<vec4<f32>>   16 bytes per texel
//	float16  array<vec2<u32>>    8 bytes per texel (pack2x16float)
//	unorm8   array<u32>          4 bytes per texel (pack4x8unorm)
//
// Bilinear filtering is done in the shader on the decoded texels, so the
// same code path serves every format and no float-filterable texture
// capability is needed. When a field would exceed the device's maximum
// storage binding size, Alloc steps down to the next smaller format.
//
// # Dispatch
//
// Each Run records one compute pass into its own command encoder and
// submits it. Pipelines are compiled once per variant (program plus the
// formats it reads and writes); the variants for the preferred format are
// built by New. Bind groups are cached per (pipeline, target, inputs).
//
// # Usage
//
//	e, err := gpu.New(gpu.Config{Format: field.Float16})
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
package gpu
