package field

import (
	"encoding/binary"
	"math"
)

// Texel is one four-component texel value.
type Texel = [4]float32

// Mask applies the channel layout to a texel value: components past the
// channel count read as (0, 0, 1) for (y, z, w), like a 1- or 2-channel
// texture does.
func Mask(channels int, v Texel) Texel {
	switch channels {
	case 1:
		return Texel{v[0], 0, 0, 1}
	case 2:
		return Texel{v[0], v[1], 0, 1}
	default:
		return v
	}
}

// Encode writes v in format f to dst, which must hold f.BytesPerTexel bytes.
// The byte layout matches the WGSL storage encoding of the same format.
func Encode(f Format, v Texel, dst []byte) {
	switch f {
	case Float32:
		for i := range 4 {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v[i]))
		}
	case Float16:
		lo := uint32(halfBits(v[0])) | uint32(halfBits(v[1]))<<16
		hi := uint32(halfBits(v[2])) | uint32(halfBits(v[3]))<<16
		binary.LittleEndian.PutUint32(dst[0:], lo)
		binary.LittleEndian.PutUint32(dst[4:], hi)
	default:
		for i := range 4 {
			dst[i] = unorm8(v[i])
		}
	}
}

// Decode reads one texel in format f from src.
func Decode(f Format, src []byte) Texel {
	var v Texel
	switch f {
	case Float32:
		for i := range 4 {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	case Float16:
		lo := binary.LittleEndian.Uint32(src[0:])
		hi := binary.LittleEndian.Uint32(src[4:])
		v[0] = halfToFloat(uint16(lo))
		v[1] = halfToFloat(uint16(lo >> 16))
		v[2] = halfToFloat(uint16(hi))
		v[3] = halfToFloat(uint16(hi >> 16))
	default:
		for i := range 4 {
			v[i] = float32(src[i]) / 255
		}
	}
	return v
}

// Quantize rounds v to the precision of format f.
func Quantize(f Format, v Texel) Texel {
	switch f {
	case Float32:
		return v
	case Float16:
		for i := range v {
			v[i] = halfToFloat(halfBits(v[i]))
		}
		return v
	default:
		for i := range v {
			v[i] = float32(unorm8(v[i])) / 255
		}
		return v
	}
}

// unorm8 follows pack4x8unorm: round(clamp(x, 0, 1) * 255).
func unorm8(x float32) uint8 {
	if !(x > 0) {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(math.RoundToEven(float64(x) * 255))
}
