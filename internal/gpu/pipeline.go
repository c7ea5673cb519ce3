//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	"github.com/gogpu/fluid/internal/kernel"
)

// groupKey identifies a bind group by the buffers it binds: target first,
// then the inputs in declaration order.
type groupKey [3]*buffer

// pipeline is one compiled kernel variant with its uniform buffer and the
// bind groups built for it so far.
type pipeline struct {
	variant  kernel.Variant
	module   *wgpu.ShaderModule
	bgLayout *wgpu.BindGroupLayout
	layout   *wgpu.PipelineLayout
	compute  *wgpu.ComputePipeline
	uniform  *wgpu.Buffer
	groups   map[groupKey]*wgpu.BindGroup
}

// layoutEntries returns the bind group layout matching kernel.Source:
// binding 0 uniform, binding 1 the read-write output, then read-only inputs.
func layoutEntries(inputs int) []wgpu.BindGroupLayoutEntry {
	entry := func(binding uint32, t gputypes.BufferBindingType) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		}
	}
	entries := []wgpu.BindGroupLayoutEntry{
		entry(0, gputypes.BufferBindingTypeUniform),
		entry(1, gputypes.BufferBindingTypeStorage),
	}
	for i := range inputs {
		//nolint:gosec // G115: at most two inputs
		entries = append(entries, entry(uint32(2+i), gputypes.BufferBindingTypeReadOnlyStorage))
	}
	return entries
}

// createPipeline compiles v. Failures are wrapped in kernel.ErrCompile.
func (e *Executor) createPipeline(v kernel.Variant) (*pipeline, error) {
	key := v.Key()
	src, err := kernel.Compile(v)
	if err != nil {
		return nil, err
	}
	p := &pipeline{variant: v, groups: make(map[groupKey]*wgpu.BindGroup)}
	fail := func(stage string, err error) (*pipeline, error) {
		p.destroy()
		return nil, fmt.Errorf("%w: %s: %s: %v", kernel.ErrCompile, key, stage, err)
	}

	if p.module, err = e.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: key,
		WGSL:  src,
	}); err != nil {
		return fail("shader module", err)
	}
	if p.bgLayout, err = e.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   key,
		Entries: layoutEntries(len(v.Program.Inputs)),
	}); err != nil {
		return fail("bind group layout", err)
	}
	if p.layout, err = e.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            key,
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.bgLayout},
	}); err != nil {
		return fail("pipeline layout", err)
	}
	if p.compute, err = e.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:      key,
		Layout:     p.layout,
		Module:     p.module,
		EntryPoint: "main",
	}); err != nil {
		return fail("compute pipeline", err)
	}
	if p.uniform, err = e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: key + " uniforms",
		Size:  kernel.UniformSize(v.Program),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return fail("uniform buffer", err)
	}
	e.log().Debug("gpu: pipeline compiled", "variant", key)
	return p, nil
}

// pipelineFor returns the cached pipeline of v, compiling it on first use.
// Called with e.mu held.
func (e *Executor) pipelineFor(v kernel.Variant) (*pipeline, error) {
	key := v.Key()
	if p, ok := e.pipelines[key]; ok {
		return p, nil
	}
	p, err := e.createPipeline(v)
	if err != nil {
		return nil, err
	}
	e.pipelines[key] = p
	return p, nil
}

// group returns the bind group for target and inputs.
func (p *pipeline) group(device *wgpu.Device, target *buffer, inputs []*buffer) (*wgpu.BindGroup, error) {
	key := groupKey{target}
	copy(key[1:], inputs)
	if bg, ok := p.groups[key]; ok {
		return bg, nil
	}
	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: p.uniform, Size: kernel.UniformSize(p.variant.Program)},
		{Binding: 1, Buffer: target.buf, Size: target.size},
	}
	for i, in := range inputs {
		//nolint:gosec // G115: at most two inputs
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(2 + i), Buffer: in.buf, Size: in.size})
	}
	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.variant.Key(),
		Layout:  p.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: bind group %s: %w", p.variant.Key(), err)
	}
	p.groups[key] = bg
	return bg, nil
}

// dropGroups releases every bind group referencing b.
func (p *pipeline) dropGroups(b *buffer) {
	for key, bg := range p.groups {
		for _, kb := range key {
			if kb == b {
				bg.Release()
				delete(p.groups, key)
				break
			}
		}
	}
}

func (p *pipeline) destroy() {
	for key, bg := range p.groups {
		bg.Release()
		delete(p.groups, key)
	}
	if p.uniform != nil {
		p.uniform.Release()
		p.uniform = nil
	}
	if p.compute != nil {
		p.compute.Release()
		p.compute = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
	if p.bgLayout != nil {
		p.bgLayout.Release()
		p.bgLayout = nil
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}
