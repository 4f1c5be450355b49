package quantize

import (
	deepspeed "github.com/mingshine10000/DeepSpeed"
)

// Per-group orchestration. A cooperative block owns one group; each
// thread holds a private buffer of one or more 16-byte chunks of the
// group's data, laid out as chunk-contiguous float32 values. The
// orchestrators run the reduce, parameter, store, and quantize passes
// over those buffers.
//
// Buffers for chunks past the end of the group are zero filled by the
// loader. Zeros are absorbed by the absolute-maximum statistics; in
// asymmetric mode they participate in the extrema like any value, so
// callers that need exact asymmetric statistics size the launch so
// every chunk is in bounds.

// localReduceAbsMax serially folds a thread's buffer into absolute
// maximum statistics, pair by pair.
func localReduceAbsMax(buf []float32) AbsMaxStats {
	stats := NewAbsMaxStats()
	for i := 0; i < len(buf); i += 2 {
		stats.Update(buf[i], buf[i+1])
	}
	return stats
}

// localReduceMinMax serially folds a thread's buffer into min and max
// statistics, pair by pair.
func localReduceMinMax(buf []float32) MinMaxStats {
	stats := NewMinMaxStats()
	for i := 0; i < len(buf); i += 2 {
		stats.Update(buf[i], buf[i+1])
	}
	return stats
}

// QuantizeWithParams runs the store and quantize passes for one
// thread of a group's block using pre-finalized parameters. Callers
// that derive parameters once and apply them to several buffers reuse
// this entry; the full pipeline lives in the ReduceAndQuantize
// functions.
//
// buf holds the thread's chunks of the group, len(buf) a multiple of
// HalfsPerLoad. The thread with block rank 0 stores the group's
// parameters at slot tid.BlockIdx.X. Each chunk is written to the
// output at the thread's strided offset, skipped entirely when its
// element offset falls past elemsPerGroup. elemsPerGroup must be a
// multiple of HalfsPerLoad so chunks never straddle a group boundary.
func QuantizeWithParams[P Params](
	tid deepspeed.ThreadID,
	buf []float32,
	params P,
	paramTable []float32,
	output []int8,
	elemsPerGroup, bits int,
) {
	elemsPerByte := 8 / bits
	bytesPerChunk := deepspeed.HalfsPerLoad / elemsPerByte
	numChunks := len(buf) / deepspeed.HalfsPerLoad

	rank := tid.Linear()
	blockOffset := tid.BlockIdx.X * elemsPerGroup
	elemOffset := rank * deepspeed.HalfsPerLoad
	baseOffset := (blockOffset + elemOffset) / elemsPerByte
	stride := tid.BlockDim.Size() * deepspeed.HalfsPerLoad / elemsPerByte

	if rank == 0 {
		params.Store(paramTable, tid.BlockIdx.X)
	}

	for i := 0; i < numChunks; i++ {
		if elemOffset+i*stride*elemsPerByte < elemsPerGroup {
			out := output[baseOffset+i*stride : baseOffset+i*stride+bytesPerChunk]
			if bits == 8 {
				quantizeChunk8(out, buf[i*deepspeed.HalfsPerLoad:], params)
			} else {
				quantizeChunk4(out, buf[i*deepspeed.HalfsPerLoad:], params)
			}
		}
	}
}

// ReduceAndQuantizeSymmetric runs the full four-pass pipeline for one
// thread of a group's block in symmetric mode: local serial
// reduction, block-wide reduction, parameter store, and strided
// quantized writes. It returns the derived parameters so a caller can
// reuse them for further buffers through QuantizeWithParams.
func ReduceAndQuantizeSymmetric(
	tid deepspeed.ThreadID,
	tb *deepspeed.ThreadBlock,
	buf []float32,
	paramTable []float32,
	output []int8,
	elemsPerGroup, bits int,
) SymmetricParams {
	stats := localReduceAbsMax(buf)
	stats.Reduce(tb, tid.Linear())

	params := NewSymmetricParams(stats, bits)
	QuantizeWithParams(tid, buf, params, paramTable, output, elemsPerGroup, bits)
	return params
}

// ReduceAndQuantizeIntegerSymmetric is the integer-symmetric variant
// of ReduceAndQuantizeSymmetric.
func ReduceAndQuantizeIntegerSymmetric(
	tid deepspeed.ThreadID,
	tb *deepspeed.ThreadBlock,
	buf []float32,
	paramTable []float32,
	output []int8,
	elemsPerGroup, bits int,
) IntegerSymmetricParams {
	stats := localReduceAbsMax(buf)
	stats.Reduce(tb, tid.Linear())

	params := NewIntegerSymmetricParams(stats, bits)
	QuantizeWithParams(tid, buf, params, paramTable, output, elemsPerGroup, bits)
	return params
}

// ReduceAndQuantizeAsymmetric is the asymmetric variant of
// ReduceAndQuantizeSymmetric, reducing the maximum and minimum in one
// pass and storing both scale and offset.
func ReduceAndQuantizeAsymmetric(
	tid deepspeed.ThreadID,
	tb *deepspeed.ThreadBlock,
	buf []float32,
	paramTable []float32,
	output []int8,
	elemsPerGroup, bits int,
) AsymmetricParams {
	stats := localReduceMinMax(buf)
	stats.Reduce(tb, tid.Linear())

	params := NewAsymmetricParams(stats, bits)
	QuantizeWithParams(tid, buf, params, paramTable, output, elemsPerGroup, bits)
	return params
}
