package quantize

import (
	deepspeed "github.com/mingshine10000/DeepSpeed"
)

// Dequantize reconstructs numGroups contiguous groups of
// elemsPerGroup half-precision values into output from the packed
// integers in input and the per-group parameter table in params. Mode
// and Bits must match the Quantize call that produced the data;
// ThreadsPerBlock and ChunksPerThread are ignored, the kernel is flat
// with one thread per element.
//
// The launch is asynchronous; call deepspeed.Synchronize before
// reading the results.
func Dequantize(output, params, input deepspeed.DevicePtr, numGroups, elemsPerGroup int, opts Options) error {
	bits := opts.bitsOrDefault()
	if err := validateShape("Dequantize", input, params, output, numGroups, elemsPerGroup, opts.Mode, bits); err != nil {
		return err
	}

	packed := input.Int8()
	paramTable := params.Float32()
	outHalf := output.Float16()

	var reconstruct func(q int8, group int) float32
	switch opts.Mode {
	case ModeAsymmetric:
		reconstruct = func(q int8, group int) float32 {
			scale := paramTable[2*group]
			offset := paramTable[2*group+1]
			return (float32(q) - offset) * scale
		}
	case ModeIntegerSymmetric:
		_, qMax := quantRange(bits)
		reconstruct = func(q int8, group int) float32 {
			return float32(q) * paramTable[group] / float32(qMax)
		}
	default:
		reconstruct = func(q int8, group int) float32 {
			return float32(q) * paramTable[group]
		}
	}

	total := numGroups * elemsPerGroup
	kernel := func(tid deepspeed.ThreadID, args ...interface{}) {
		idx := tid.Global()
		if idx >= total {
			return
		}

		var q int8
		if bits == 8 {
			q = packed[idx]
		} else if idx%2 == 0 {
			// Low nibble, sign extended by the shift pair.
			q = (packed[idx/2] << 4) >> 4
		} else {
			q = packed[idx/2] >> 4
		}

		outHalf.SetFloat32(idx, reconstruct(q, idx/elemsPerGroup))
	}

	blockSize := deepspeed.DefaultBlockSize
	grid := deepspeed.Dim3{X: (total + blockSize - 1) / blockSize, Y: 1, Z: 1}
	block := deepspeed.Dim3{X: blockSize, Y: 1, Z: 1}
	return deepspeed.LaunchFunc(kernel, grid, block)
}
