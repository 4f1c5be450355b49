package quantize

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deepspeed "github.com/mingshine10000/DeepSpeed"
)

func TestDequantizeSymmetric8(t *testing.T) {
	const groups, elems = 1, 8
	input := mallocT(t, groups*elems)
	params := mallocT(t, groups*4)
	output := mallocT(t, groups*elems*2)

	copy(input.Int8(), []int8{64, -128, 32, -64, 127, 0, -16, 16})
	params.Float32()[0] = 0.015625

	require.NoError(t, Dequantize(output, params, input, groups, elems,
		Options{Mode: ModeSymmetric, Bits: 8}))
	deepspeed.SynchronizeOrFail(t)

	expected := []float32{1.0, -2.0, 0.5, -1.0, 1.984375, 0, -0.25, 0.25}
	outHalf := output.Float16()
	for i, want := range expected {
		assert.Equal(t, want, outHalf.GetFloat32(i), "element %d", i)
	}
}

func TestDequantize4BitSignExtension(t *testing.T) {
	// Unit scale makes the output the raw nibble values: the low
	// nibble of each byte is the earlier element, and both nibbles
	// must sign extend.
	const groups, elems = 1, 8
	input := mallocT(t, groups*elems/2)
	params := mallocT(t, groups*4)
	output := mallocT(t, groups*elems*2)

	copy(input.Byte(), []byte{0xF8, 0x7D, 0xC0, 0xA5})
	params.Float32()[0] = 1.0

	require.NoError(t, Dequantize(output, params, input, groups, elems,
		Options{Mode: ModeSymmetric, Bits: 4}))
	deepspeed.SynchronizeOrFail(t)

	expected := []float32{-8, -1, -3, 7, 0, -4, 5, -6}
	outHalf := output.Float16()
	for i, want := range expected {
		assert.Equal(t, want, outHalf.GetFloat32(i), "element %d", i)
	}
}

func TestDequantize4BitAllNibbles(t *testing.T) {
	const groups, elems = 1, 16
	qs := []int8{-8, -7, -6, -5, -4, -3, -2, -1, 0, 1, 2, 3, 4, 5, 6, 7}

	input := mallocT(t, groups*elems/2)
	params := mallocT(t, groups*4)
	output := mallocT(t, groups*elems*2)

	packed := input.Byte()
	for i := 0; i < elems; i += 2 {
		packed[i/2] = byte(qs[i+1])<<4 | byte(qs[i])&0x0F
	}
	params.Float32()[0] = 1.0

	require.NoError(t, Dequantize(output, params, input, groups, elems,
		Options{Mode: ModeSymmetric, Bits: 4}))
	deepspeed.SynchronizeOrFail(t)

	outHalf := output.Float16()
	for i, q := range qs {
		assert.Equal(t, float32(q), outHalf.GetFloat32(i), "nibble %d", q)
	}
}

func TestDequantizeAsymmetric(t *testing.T) {
	// Group 0 uses scale 0.5 with offset 10; group 1 holds the
	// all-zero encoding, bytes -128 with parameters (1, -128), which
	// must come back as exact zeros.
	const groups, elems = 2, 8
	input := mallocT(t, groups*elems)
	params := mallocT(t, groups*2*4)
	output := mallocT(t, groups*elems*2)

	in := input.Int8()
	copy(in, []int8{20, -128, 0, 64, -43, 107, 85, 127})
	for i := elems; i < 2*elems; i++ {
		in[i] = -128
	}

	table := params.Float32()
	table[0], table[1] = 0.5, 10
	table[2], table[3] = 1.0, -128

	require.NoError(t, Dequantize(output, params, input, groups, elems,
		Options{Mode: ModeAsymmetric, Bits: 8}))
	deepspeed.SynchronizeOrFail(t)

	expected := []float32{5, -69, -5, 27, -26.5, 48.5, 37.5, 58.5}
	outHalf := output.Float16()
	for i, want := range expected {
		assert.Equal(t, want, outHalf.GetFloat32(i), "element %d", i)
	}
	for i := elems; i < 2*elems; i++ {
		assert.Equal(t, float32(0), outHalf.GetFloat32(i), "zero group element %d", i)
	}
}

func TestDequantizeIntegerSymmetric(t *testing.T) {
	const groups, elems = 1, 8
	input := mallocT(t, groups*elems)
	params := mallocT(t, groups*4)
	output := mallocT(t, groups*elems*2)

	copy(input.Int8(), []int8{63, -95, 31, -15, 95, 0, 79, -47})
	params.Float32()[0] = 4.0

	require.NoError(t, Dequantize(output, params, input, groups, elems,
		Options{Mode: ModeIntegerSymmetric, Bits: 8}))
	deepspeed.SynchronizeOrFail(t)

	// Reconstruction is q*scale/127, then half-precision storage.
	outHalf := output.Float16()
	for i, q := range []int8{63, -95, 31, -15, 95, 0, 79, -47} {
		want := float32(q) * 4 / 127
		assert.InDelta(t, want, outHalf.GetFloat32(i), 1e-3, "element %d", i)
	}
}

func TestDequantizeValidation(t *testing.T) {
	const groups, elems = 1, 64
	input := mallocT(t, groups*elems)
	params := mallocT(t, groups*4)
	output := mallocT(t, groups*elems*2)

	valid := Options{Mode: ModeSymmetric, Bits: 8}

	var null deepspeed.DevicePtr
	require.ErrorIs(t, Dequantize(null, params, input, groups, elems, valid), deepspeed.ErrNullPointer)
	require.ErrorIs(t, Dequantize(output, null, input, groups, elems, valid), deepspeed.ErrNullPointer)
	require.ErrorIs(t, Dequantize(output, params, null, groups, elems, valid), deepspeed.ErrNullPointer)

	err := Dequantize(output, params, input, groups, elems, Options{Bits: 5})
	assert.True(t, deepspeed.IsInvalidArgError(err), "got %v", err)

	err = Dequantize(output, params, input, groups, 20, valid)
	assert.True(t, deepspeed.IsInvalidArgError(err), "got %v", err)

	// Packed input sized for 4-bit cannot serve an 8-bit decode.
	half4 := mallocT(t, groups*elems/2)
	err = Dequantize(output, params, half4, groups, elems, valid)
	assert.True(t, deepspeed.IsInvalidArgError(err), "got %v", err)

	smallOut := mallocT(t, elems)
	err = Dequantize(smallOut, params, input, groups, elems, valid)
	assert.True(t, deepspeed.IsInvalidArgError(err), "got %v", err)
}

func BenchmarkDequantize(b *testing.B) {
	const groups, elems = 64, 512
	rng := rand.New(rand.NewSource(1))

	for _, bits := range []int{8, 4} {
		b.Run(fmt.Sprintf("symmetric_%dbit", bits), func(b *testing.B) {
			input := deepspeed.MallocOrFail(b, groups*elems*bits/8)
			params := deepspeed.MallocOrFail(b, groups*4)
			output := deepspeed.MallocOrFail(b, groups*elems*2)
			defer deepspeed.Free(input)
			defer deepspeed.Free(params)
			defer deepspeed.Free(output)

			packed := input.Byte()
			for i := range packed {
				packed[i] = byte(rng.Intn(256))
			}
			for g := 0; g < groups; g++ {
				params.Float32()[g] = 0.01
			}
			opts := Options{Mode: ModeSymmetric, Bits: bits}

			b.SetBytes(int64(groups * elems * 2))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := Dequantize(output, params, input, groups, elems, opts); err != nil {
					b.Fatal(err)
				}
				if err := deepspeed.Synchronize(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
