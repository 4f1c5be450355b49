package quantize

import (
	"math"
)

// Params converts values of one group into quantized integers and
// serializes the group's parameters into the parameter table. A
// Params value is immutable once constructed from finalized
// statistics; exactly one thread per group calls Store.
//
// Quantized values always occupy a signed 8-bit container, even at
// bit width 4 where two of them are later packed per output byte.
type Params interface {
	Quantize(val float32) int8
	Store(table []float32, group int)
}

// quantRange returns the signed integer bounds for a bit width.
func quantRange(bits int) (qMin, qMax int32) {
	return -(1 << (bits - 1)), (1 << (bits - 1)) - 1
}

// SymmetricParams quantizes with a floating-point scale centered on
// zero. The scale maps [-max, max] onto the full integer range.
type SymmetricParams struct {
	Scale float32

	qMin, qMax int32
}

// NewSymmetricParams derives parameters from reduced statistics. An
// all-zero group gets scale 1 so the stored reciprocal stays finite.
func NewSymmetricParams(stats AbsMaxStats, bits int) SymmetricParams {
	scale := float32(1.0)
	if stats.Max != 0 {
		scale = float32(int32(1)<<bits) / (2 * stats.Max)
	}
	qMin, qMax := quantRange(bits)
	return SymmetricParams{Scale: scale, qMin: qMin, qMax: qMax}
}

// Quantize scales, rounds to nearest even, and clamps to the integer
// range.
func (p SymmetricParams) Quantize(val float32) int8 {
	q := int32(math.RoundToEven(float64(val * p.Scale)))
	if q < p.qMin {
		q = p.qMin
	}
	if q > p.qMax {
		q = p.qMax
	}
	return int8(q)
}

// Store writes the reciprocal scale, directly usable as the
// dequantization multiplier, to the group's slot.
func (p SymmetricParams) Store(table []float32, group int) {
	table[group] = 1 / p.Scale
}

// IntegerSymmetricParams quantizes through an integer-valued scale
// used as a divisor. The quantized value is val*qMax/scale truncated
// toward zero; this mode carries no clamp, matching its use in
// integer pipelines where the ratio bound makes overflow impossible.
type IntegerSymmetricParams struct {
	Scale int32

	qMax int32
}

// NewIntegerSymmetricParams derives the integer scale round(max+0.5),
// rounding half away from zero. The scale is always at least 1, so an
// all-zero group stores exactly 1 and the divisor is never zero.
func NewIntegerSymmetricParams(stats AbsMaxStats, bits int) IntegerSymmetricParams {
	_, qMax := quantRange(bits)
	return IntegerSymmetricParams{
		Scale: int32(math.Round(float64(stats.Max) + 0.5)),
		qMax:  qMax,
	}
}

// Quantize computes val*qMax/scale in float32 and truncates.
func (p IntegerSymmetricParams) Quantize(val float32) int8 {
	scaled := val * float32(p.qMax) / float32(p.Scale)
	return int8(int32(scaled))
}

// Store writes the numeric scale value to the group's slot. The
// dequantizer divides by qMax and multiplies by this value.
func (p IntegerSymmetricParams) Store(table []float32, group int) {
	table[group] = float32(p.Scale)
}

// AsymmetricParams quantizes with a scale over the observed value
// interval and an offset that shifts the result into the signed
// integer range. Zero need not map to zero in this mode.
type AsymmetricParams struct {
	Scale  float32
	Offset float32

	qMin, qMax int32
}

// NewAsymmetricParams derives parameters from reduced statistics. A
// constant group gets scale 1; the offset still positions the
// constant exactly, so reconstruction stays lossless for that case.
func NewAsymmetricParams(stats MinMaxStats, bits int) AsymmetricParams {
	scale := float32(1.0)
	if stats.Max != stats.Min {
		scale = float32(int32(1)<<bits) / (stats.Max - stats.Min)
	}
	qMin, qMax := quantRange(bits)
	return AsymmetricParams{
		Scale:  scale,
		Offset: float32(qMin) - stats.Min*scale,
		qMin:   qMin,
		qMax:   qMax,
	}
}

// Quantize scales, shifts, rounds to nearest even, and clamps to the
// integer range.
func (p AsymmetricParams) Quantize(val float32) int8 {
	q := int32(math.RoundToEven(float64(val*p.Scale + p.Offset)))
	if q < p.qMin {
		q = p.qMin
	}
	if q > p.qMax {
		q = p.qMax
	}
	return int8(q)
}

// Store writes the reciprocal scale and the offset to the group's
// adjacent slots.
func (p AsymmetricParams) Store(table []float32, group int) {
	table[2*group] = 1 / p.Scale
	table[2*group+1] = p.Offset
}
