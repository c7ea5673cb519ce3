//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/wgpu"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
)

// Buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpu: buffer has been destroyed")

	// ErrMappingFailed is returned when a readback buffer cannot be mapped.
	ErrMappingFailed = errors.New("gpu: buffer mapping failed")
)

// fieldUsage is the usage of every field buffer: bound as storage, filled
// by Queue.WriteBuffer, copied out for readback.
const fieldUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

// buffer is the field.Storage of the wgpu executor.
type buffer struct {
	owner *Executor
	buf   *wgpu.Buffer
	size  uint64
}

// Release implements field.Storage.
func (b *buffer) Release() {
	if b.owner != nil {
		b.owner.forget(b)
	}
}

// newBuffer creates a zero-filled storage buffer of size bytes.
// Called with e.mu held.
func (e *Executor) newBuffer(label string, size uint64) (*buffer, error) {
	if err := e.memory.reserve(size); err != nil {
		return nil, err
	}
	buf, err := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: fieldUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %s: %w", label, err)
	}
	if err := e.queue.WriteBuffer(buf, 0, make([]byte, size)); err != nil {
		buf.Release()
		return nil, fmt.Errorf("gpu: clear buffer %s: %w", label, err)
	}
	b := &buffer{owner: e, buf: buf, size: size}
	e.memory.track(b, size)
	return b, nil
}

// forget drops every cached binding of b and destroys it.
func (e *Executor) forget(b *buffer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyBuffer(b)
}

// destroyBuffer is forget with e.mu held.
func (e *Executor) destroyBuffer(b *buffer) {
	if b.buf == nil {
		return
	}
	for _, p := range e.pipelines {
		p.dropGroups(b)
	}
	e.memory.untrack(b)
	b.buf.Release()
	b.buf = nil
}

// readBuffer copies size bytes of src back to the CPU through a staging
// buffer. Called with e.mu held.
func (e *Executor) readBuffer(src *buffer) ([]byte, error) {
	staging, err := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  src.size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create readback buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := e.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(src.buf, 0, staging, 0, src.size)
	cmd, err := encoder.Finish()
	if err != nil {
		return nil, fmt.Errorf("gpu: finish readback: %w", err)
	}
	if _, err := e.queue.Submit(cmd); err != nil {
		return nil, fmt.Errorf("gpu: submit readback: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), fenceTimeout)
	defer cancel()
	if err := staging.Map(ctx, wgpu.MapModeRead, 0, src.size); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMappingFailed, err)
	}
	defer func() { _ = staging.Unmap() }()
	rng, err := staging.MappedRange(0, src.size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMappingFailed, err)
	}
	out := make([]byte, src.size)
	copy(out, rng.Bytes())
	return out, nil
}

// own resolves the buffer behind f. Called with e.mu held.
func (e *Executor) own(f *field.Field) (*buffer, error) {
	if f.Released() {
		return nil, fmt.Errorf("%w: %s", kernel.ErrReleased, f.Label())
	}
	b, ok := f.Storage().(*buffer)
	if !ok || b.owner != e {
		return nil, fmt.Errorf("%w: %s", kernel.ErrForeignField, f.Label())
	}
	if b.buf == nil {
		return nil, fmt.Errorf("%w: %s", ErrBufferDestroyed, f.Label())
	}
	return b, nil
}
