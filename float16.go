package deepspeed

import (
	"github.com/x448/float16"
)

// Float16 represents an IEEE 754 half-precision number stored as its
// raw bit pattern.
type Float16 uint16

// ToFloat32 converts Float16 to float32. The conversion is exact:
// every half-precision value is representable in float32.
func (f Float16) ToFloat32() float32 {
	return float16.Frombits(uint16(f)).Float32()
}

// FromFloat32 converts float32 to Float16 with round-to-nearest-even.
func FromFloat32(f float32) Float16 {
	return Float16(float16.Fromfloat32(f).Bits())
}

// Half2 packs two adjacent half-precision values handled as one unit.
// Kernels load and reduce data at this granularity.
type Half2 struct {
	Lo Float16
	Hi Float16
}

// Float32s unpacks both halves.
func (h Half2) Float32s() (lo, hi float32) {
	return h.Lo.ToFloat32(), h.Hi.ToFloat32()
}

// Float16Slice wraps a byte slice as Float16 values
type Float16Slice struct {
	data []byte
}

// NewFloat16Slice creates a Float16 slice from a byte slice
func NewFloat16Slice(data []byte) Float16Slice {
	return Float16Slice{data: data}
}

// Len returns the number of Float16 elements
func (s Float16Slice) Len() int {
	return len(s.data) / 2
}

// Get returns the Float16 at index i
func (s Float16Slice) Get(i int) Float16 {
	return Float16(uint16(s.data[i*2]) | (uint16(s.data[i*2+1]) << 8))
}

// Set sets the Float16 at index i
func (s Float16Slice) Set(i int, val Float16) {
	s.data[i*2] = byte(val)
	s.data[i*2+1] = byte(val >> 8)
}

// GetFloat32 returns the value at index i as float32
func (s Float16Slice) GetFloat32(i int) float32 {
	return s.Get(i).ToFloat32()
}

// SetFloat32 sets the value at index i from float32
func (s Float16Slice) SetFloat32(i int, val float32) {
	s.Set(i, FromFloat32(val))
}

// GetHalf2 returns the pair at pair index i, covering elements 2i and
// 2i+1.
func (s Float16Slice) GetHalf2(i int) Half2 {
	return Half2{Lo: s.Get(2 * i), Hi: s.Get(2*i + 1)}
}

// DevicePtr methods for Float16

// Float16 returns a Float16 slice view of the memory
func (d DevicePtr) Float16() Float16Slice {
	if d.ptr == nil {
		return Float16Slice{}
	}
	return NewFloat16Slice(d.Byte())
}

// Bulk conversions between half and single precision

// ConvertFloat16ToFloat32 expands n half-precision values from src
// into float32 values in dst.
func ConvertFloat16ToFloat32(src, dst DevicePtr, n int) {
	srcF16 := src.Float16()
	dstF32 := dst.Float32()

	for i := 0; i < n; i++ {
		dstF32[i] = srcF16.GetFloat32(i)
	}
}

// ConvertFloat32ToFloat16 narrows n float32 values from src into
// half-precision values in dst with round-to-nearest-even.
func ConvertFloat32ToFloat16(src, dst DevicePtr, n int) {
	srcF32 := src.Float32()
	dstF16 := dst.Float16()

	for i := 0; i < n; i++ {
		dstF16.SetFloat32(i, srcF32[i])
	}
}
