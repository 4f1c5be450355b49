package quantize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymmetricParams(t *testing.T) {
	// Group [1.0, -2.0, 0.5, -1.0]: absolute max 2.0, so the 8-bit
	// scale is 256/4 = 64.
	p := NewSymmetricParams(AbsMaxStats{Max: 2.0}, 8)
	assert.Equal(t, float32(64), p.Scale)

	values := []float32{1.0, -2.0, 0.5, -1.0}
	expected := []int8{64, -128, 32, -64}
	for i, v := range values {
		assert.Equal(t, expected[i], p.Quantize(v), "value %v", v)
	}

	table := []float32{-1}
	p.Store(table, 0)
	assert.Equal(t, float32(0.015625), table[0])
}

func TestSymmetricParamsClamp(t *testing.T) {
	// max 1.0 gives scale 128; the positive end of the range rounds
	// to 128 and clamps down to 127.
	p := NewSymmetricParams(AbsMaxStats{Max: 1.0}, 8)
	assert.Equal(t, int8(127), p.Quantize(1.0))
	assert.Equal(t, int8(-128), p.Quantize(-1.0))
	assert.Equal(t, int8(127), p.Quantize(40.0))
	assert.Equal(t, int8(-128), p.Quantize(-40.0))
}

func TestSymmetricParamsZeroGroup(t *testing.T) {
	p := NewSymmetricParams(AbsMaxStats{Max: 0}, 8)
	assert.Equal(t, float32(1), p.Scale)
	assert.Equal(t, int8(0), p.Quantize(0))

	table := []float32{-1}
	p.Store(table, 0)
	assert.Equal(t, float32(1), table[0])
}

func TestSymmetricParams4Bit(t *testing.T) {
	// max 2.0 at width 4: scale 16/4 = 4, range [-8, 7].
	p := NewSymmetricParams(AbsMaxStats{Max: 2.0}, 4)
	assert.Equal(t, float32(4), p.Scale)
	assert.Equal(t, int8(4), p.Quantize(1.0))
	assert.Equal(t, int8(-8), p.Quantize(-2.0))
	assert.Equal(t, int8(7), p.Quantize(2.0))

	for _, v := range []float32{3, -3, 100, -100} {
		q := p.Quantize(v)
		assert.GreaterOrEqual(t, q, int8(-8), "value %v", v)
		assert.LessOrEqual(t, q, int8(7), "value %v", v)
	}
}

func TestAsymmetricParams(t *testing.T) {
	// Group [1.0, -2.0, 0.5, -1.0]: max 1.0, min -2.0, so scale is
	// 256/3 and the offset centers -2.0 on -128.
	p := NewAsymmetricParams(MinMaxStats{Max: 1.0, Min: -2.0}, 8)
	assert.InDelta(t, 256.0/3.0, p.Scale, 1e-4)
	assert.InDelta(t, 42.6667, p.Offset, 1e-3)

	assert.Equal(t, int8(127), p.Quantize(1.0)) // rounds to 128, clamps
	assert.Equal(t, int8(-128), p.Quantize(-2.0))
	assert.Equal(t, int8(85), p.Quantize(0.5))
	assert.Equal(t, int8(-43), p.Quantize(-1.0))

	table := make([]float32, 2)
	p.Store(table, 0)
	assert.InDelta(t, 3.0/256.0, table[0], 1e-7)
	assert.Equal(t, p.Offset, table[1])
}

func TestAsymmetricParamsConstantGroup(t *testing.T) {
	// max == min falls back to scale 1; the offset still positions
	// the constant exactly, so reconstruction is lossless.
	p := NewAsymmetricParams(MinMaxStats{Max: 3.0, Min: 3.0}, 8)
	assert.Equal(t, float32(1), p.Scale)
	assert.Equal(t, float32(-131), p.Offset)

	q := p.Quantize(3.0)
	assert.Equal(t, int8(-128), q)
	recon := (float32(q) - p.Offset) / p.Scale
	assert.Equal(t, float32(3), recon)
}

func TestAsymmetricParamsZeroGroup(t *testing.T) {
	// An all-zero group reduces to max == min == 0: scale stays 1 and
	// the offset parks zero at the bottom of the range, so the
	// quantized bytes are -128, not zero, and reconstruct exactly.
	p := NewAsymmetricParams(MinMaxStats{Max: 0, Min: 0}, 8)
	assert.Equal(t, float32(1), p.Scale)
	assert.Equal(t, float32(-128), p.Offset)

	q := p.Quantize(0)
	assert.Equal(t, int8(-128), q)
	recon := (float32(q) - p.Offset) / p.Scale
	assert.Equal(t, float32(0), recon)
}

func TestIntegerSymmetricParamsTruncation(t *testing.T) {
	// max 3.2 rounds up to integer scale 4. Quantization truncates
	// toward zero: 3.2*127/4 = 101.6 keeps 101, where rounding would
	// give 102.
	p := NewIntegerSymmetricParams(AbsMaxStats{Max: 3.2}, 8)
	assert.Equal(t, int32(4), p.Scale)
	assert.Equal(t, int8(101), p.Quantize(3.2))
	assert.Equal(t, int8(-101), p.Quantize(-3.2))
	assert.Equal(t, int8(0), p.Quantize(0.001))

	table := []float32{-1}
	p.Store(table, 0)
	assert.Equal(t, float32(4), table[0])
}

func TestIntegerSymmetricParamsScale(t *testing.T) {
	cases := []struct {
		max   float32
		scale int32
	}{
		{0, 1},
		{0.4, 1},
		{0.5, 1},
		{1.0, 2},
		{3.2, 4},
		{100, 101},
	}
	for _, tc := range cases {
		p := NewIntegerSymmetricParams(AbsMaxStats{Max: tc.max}, 8)
		assert.Equal(t, tc.scale, p.Scale, "max %v", tc.max)
	}
}

func TestIntegerSymmetricParamsZeroGroup(t *testing.T) {
	p := NewIntegerSymmetricParams(AbsMaxStats{Max: 0}, 8)
	assert.Equal(t, int32(1), p.Scale)
	assert.Equal(t, int8(0), p.Quantize(0))

	table := []float32{-1}
	p.Store(table, 0)
	assert.Equal(t, float32(1), table[0])
}

func TestQuantRange(t *testing.T) {
	qMin, qMax := quantRange(8)
	assert.Equal(t, int32(-128), qMin)
	assert.Equal(t, int32(127), qMax)

	qMin, qMax = quantRange(4)
	assert.Equal(t, int32(-8), qMin)
	assert.Equal(t, int32(7), qMax)
}

func TestParamsStoreSlots(t *testing.T) {
	// Symmetric modes use one slot per group, asymmetric two.
	table := make([]float32, 6)

	IntegerSymmetricParams{Scale: 7}.Store(table, 0)
	SymmetricParams{Scale: 2}.Store(table, 1)
	AsymmetricParams{Scale: 4, Offset: -3}.Store(table, 2)

	assert.Equal(t, float32(7), table[0])
	assert.Equal(t, float32(0.5), table[1])
	assert.Equal(t, float32(0.25), table[4])
	assert.Equal(t, float32(-3), table[5])
}
