// Package field holds the grid containers the solver reads and writes.
//
// A Field is executor-agnostic: it records dimensions, channel layout and
// storage format, and carries an opaque Storage handle owned by the executor
// that allocated it (a wgpu buffer, or a float slice for the reference
// executor). A Double pairs two Fields with read/write roles.
package field

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned for non-positive dimensions or an
	// unsupported channel count.
	ErrInvalidSize = errors.New("field: invalid size")

	// ErrFieldTooLarge is returned when a field does not fit the device
	// even in the lowest-precision format.
	ErrFieldTooLarge = errors.New("field: exceeds device storage limit")

	// ErrUnknownFormat is returned by ParseFormat.
	ErrUnknownFormat = errors.New("field: unknown format")
)

// Storage is the executor-owned backing of a Field.
type Storage interface {
	Release()
}

// Allocator creates zero-initialized Fields. Kernel executors implement it.
type Allocator interface {
	Alloc(label string, width, height, channels int) (*Field, error)
}

// Field is a 2D grid of 1-, 2- or 4-component texels.
// Dimensions are fixed for the lifetime of the Field.
type Field struct {
	label    string
	width    int
	height   int
	channels int
	format   Format
	storage  Storage
}

// CheckSize validates field dimensions and channel count.
func CheckSize(width, height, channels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidSize, width, height)
	}
	switch channels {
	case 1, 2, 4:
		return nil
	}
	return fmt.Errorf("%w: channels=%d", ErrInvalidSize, channels)
}

// New wraps executor storage in a Field. Executors call it from Alloc after
// CheckSize has passed.
func New(label string, width, height, channels int, format Format, storage Storage) *Field {
	return &Field{
		label:    label,
		width:    width,
		height:   height,
		channels: channels,
		format:   format,
		storage:  storage,
	}
}

// Label returns the debug label.
func (f *Field) Label() string { return f.label }

// Width returns the grid width in texels.
func (f *Field) Width() int { return f.width }

// Height returns the grid height in texels.
func (f *Field) Height() int { return f.height }

// Channels returns the number of meaningful components per texel.
func (f *Field) Channels() int { return f.channels }

// Format returns the storage format.
func (f *Field) Format() Format { return f.format }

// Storage returns the executor-owned backing.
func (f *Field) Storage() Storage { return f.storage }

// Texels returns width*height.
func (f *Field) Texels() int { return f.width * f.height }

// ByteSize returns the storage footprint in bytes.
func (f *Field) ByteSize() uint64 {
	return uint64(f.Texels()) * uint64(f.format.BytesPerTexel())
}

// TexelSize returns the reciprocal grid dimensions (1/w, 1/h).
func (f *Field) TexelSize() [2]float32 {
	return [2]float32{1 / float32(f.width), 1 / float32(f.height)}
}

// Release frees the storage. Safe to call more than once.
func (f *Field) Release() {
	if f == nil || f.storage == nil {
		return
	}
	f.storage.Release()
	f.storage = nil
}

// Released reports whether Release has been called.
func (f *Field) Released() bool { return f.storage == nil }

func (f *Field) String() string {
	return fmt.Sprintf("%s %dx%dx%d %s", f.label, f.width, f.height, f.channels, f.format)
}
