package quantize

import (
	deepspeed "github.com/mingshine10000/DeepSpeed"
)

// Chunk quantizers convert one 16-byte load of values (HalfsPerLoad
// elements) into packed output bytes. They are generic over the
// parameter type so each mode's quantize call is monomorphized out of
// the per-element loop.

// quantizeChunk8 writes one output byte per element.
func quantizeChunk8[P Params](out []int8, buf []float32, p P) {
	for i := 0; i < deepspeed.HalfsPerLoad; i++ {
		out[i] = p.Quantize(buf[i])
	}
}

// quantizeChunk4 packs each consecutive pair of elements into one
// output byte. The later element takes the high nibble:
//
//	byte = (q1 & 0xF) << 4 | (q0 & 0xF)
//
// The dequantizer's unpacking depends on this exact layout.
func quantizeChunk4[P Params](out []int8, buf []float32, p P) {
	for i, oi := 0, 0; i < deepspeed.HalfsPerLoad; i, oi = i+2, oi+1 {
		q0 := p.Quantize(buf[i])
		q1 := p.Quantize(buf[i+1])
		out[oi] = int8(byte(q1)<<4 | byte(q0)&0x0F)
	}
}
