package tensor

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// DType describes the element encoding of a tensor payload.
type DType uint8

const (
	DTypeF32 DType = iota
	DTypeF16
	DTypeBF16
)

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	case DTypeBF16:
		return "bf16"
	default:
		return "unknown"
	}
}

// ElemSize returns the byte size of one element, or false for unknown dtypes.
func (d DType) ElemSize() (int, bool) {
	switch d {
	case DTypeF32:
		return 4, true
	case DTypeF16, DTypeBF16:
		return 2, true
	default:
		return 0, false
	}
}

func u16le(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

func f32le(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
}

func fp16ToF32(u uint16) float32 {
	return float16.Frombits(u).Float32()
}

// bf16 is f32 with the low 16 mantissa bits dropped.
func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}
