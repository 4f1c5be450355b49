package deepspeed

import (
	"github.com/d4l3k/go-bfloat16"
)

// BFloat16 represents a 16-bit brain floating point number stored as
// its raw bit pattern. Format: 1 sign bit, 8 exponent bits, 7 mantissa
// bits.
type BFloat16 uint16

// ToBFloat16 converts float32 to BFloat16 by truncating the mantissa.
func ToBFloat16(f float32) BFloat16 {
	return BFloat16(bfloat16.FromFloat32(f))
}

// ToFloat32 converts BFloat16 to float32. The conversion is exact.
func (b BFloat16) ToFloat32() float32 {
	return bfloat16.ToFloat32(bfloat16.BF16(b))
}

// BFloat16Slice wraps a byte slice as BFloat16 values
type BFloat16Slice struct {
	data []byte
}

// NewBFloat16Slice creates a BFloat16 slice from a byte slice
func NewBFloat16Slice(data []byte) BFloat16Slice {
	return BFloat16Slice{data: data}
}

// Len returns the number of BFloat16 elements
func (s BFloat16Slice) Len() int {
	return len(s.data) / 2
}

// Get returns the BFloat16 at index i
func (s BFloat16Slice) Get(i int) BFloat16 {
	return BFloat16(uint16(s.data[i*2]) | (uint16(s.data[i*2+1]) << 8))
}

// Set sets the BFloat16 at index i
func (s BFloat16Slice) Set(i int, val BFloat16) {
	s.data[i*2] = byte(val)
	s.data[i*2+1] = byte(val >> 8)
}

// GetFloat32 returns the value at index i as float32
func (s BFloat16Slice) GetFloat32(i int) float32 {
	return s.Get(i).ToFloat32()
}

// SetFloat32 sets the value at index i from float32
func (s BFloat16Slice) SetFloat32(i int, val float32) {
	s.Set(i, ToBFloat16(val))
}

// Decode expands the whole slice into newly allocated float32 values.
func (s BFloat16Slice) Decode() []float32 {
	return bfloat16.DecodeFloat32(s.data)
}

// DevicePtr methods for BFloat16

// BFloat16 returns a BFloat16 slice view of the memory
func (d DevicePtr) BFloat16() BFloat16Slice {
	if d.ptr == nil {
		return BFloat16Slice{}
	}
	return NewBFloat16Slice(d.Byte())
}

// ConvertBFloat16ToFloat16 rewrites n bfloat16 values from src as
// half-precision values in dst. Values outside the half range become
// infinities; the quantization kernels only consume half data, so
// bfloat16 tensors are staged through this conversion first.
func ConvertBFloat16ToFloat16(src, dst DevicePtr, n int) {
	srcBF := src.BFloat16()
	dstF16 := dst.Float16()

	for i := 0; i < n; i++ {
		dstF16.SetFloat32(i, srcBF.GetFloat32(i))
	}
}
