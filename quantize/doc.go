// Package quantize converts groups of half-precision values into
// packed 4-bit or 8-bit signed integers with per-group scale and
// offset parameters derived on the fly.
//
// Three quantization modes are supported. Symmetric maps zero to zero
// using a floating-point scale derived from the group's absolute
// maximum. IntegerSymmetric does the same with an integer-valued
// scale used as a divisor. Asymmetric spends the full integer range
// on the observed [min, max] interval using a scale and an offset.
//
// The package exposes two layers. The host API (Quantize, Dequantize)
// validates buffers, derives a launch geometry, and runs the
// cooperative kernels over a whole tensor:
//
//	d_out, _ := deepspeed.Malloc(numGroups * elemsPerGroup)
//	d_params, _ := deepspeed.Malloc(numGroups * 4)
//	d_in, _ := deepspeed.Malloc(numGroups * elemsPerGroup * 2)
//
//	err := quantize.Quantize(d_out, d_params, d_in, numGroups, elemsPerGroup,
//	    quantize.Options{Mode: quantize.ModeSymmetric, Bits: 8})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	deepspeed.Synchronize()
//
// The kernel layer (ReduceAndQuantizeSymmetric and friends,
// QuantizeWithParams) operates on one group from inside a cooperative
// kernel and is exported for callers that fuse quantization into
// their own kernels or reuse one reduction across several outputs.
package quantize
