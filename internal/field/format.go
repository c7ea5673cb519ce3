// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package field

import (
	"fmt"
	"strings"
)

// Format is the storage format of a Field's texels.
//
// Every format stores four components per texel; the difference is the
// precision and range of each component:
//
//	Float32  16 bytes per texel, full float range
//	Float16   8 bytes per texel, IEEE binary16 (two packed words)
//	Unorm8    4 bytes per texel, clamped to [0, 1] in 1/255 steps
type Format uint8

const (
	// Float32 stores vec4<f32> texels.
	Float32 Format = iota

	// Float16 stores texels as two pack2x16float words.
	Float16

	// Unorm8 stores texels as one pack4x8unorm word.
	Unorm8
)

// String returns the configuration name of the format.
func (f Format) String() string {
	switch f {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Unorm8:
		return "unorm8"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// ParseFormat parses a configuration name ("float32", "float16", "unorm8").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "f32":
		return Float32, nil
	case "float16", "f16", "half", "":
		return Float16, nil
	case "unorm8", "rgba8", "8bit":
		return Unorm8, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// BytesPerTexel returns the storage footprint of one texel.
func (f Format) BytesPerTexel() int {
	switch f {
	case Float32:
		return 16
	case Float16:
		return 8
	default:
		return 4
	}
}

// lower returns the next lower-precision format.
func (f Format) lower() (Format, bool) {
	switch f {
	case Float32:
		return Float16, true
	case Float16:
		return Unorm8, true
	default:
		return f, false
	}
}

// Select returns the highest-precision format, starting at preferred, whose
// storage for a width x height grid fits in limit bytes. A zero limit means
// unlimited. The second result reports whether a lower format than preferred
// was substituted.
func Select(preferred Format, width, height int, limit uint64) (Format, bool, error) {
	f := preferred
	for {
		size := uint64(width) * uint64(height) * uint64(f.BytesPerTexel())
		if limit == 0 || size <= limit {
			return f, f != preferred, nil
		}
		next, ok := f.lower()
		if !ok {
			return f, false, fmt.Errorf("%w: %dx%d needs %d bytes, limit %d",
				ErrFieldTooLarge, width, height, size, limit)
		}
		f = next
	}
}
