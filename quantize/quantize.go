package quantize

import (
	"fmt"

	deepspeed "github.com/mingshine10000/DeepSpeed"
)

// Mode selects the quantization scheme.
type Mode int

const (
	// ModeSymmetric scales by the group's absolute maximum so zero
	// maps to zero. One parameter slot per group holds the dequant
	// scale.
	ModeSymmetric Mode = iota

	// ModeAsymmetric spends the full integer range on the group's
	// [min, max] interval. Two parameter slots per group hold the
	// dequant scale and the offset.
	ModeAsymmetric

	// ModeIntegerSymmetric scales by the group's absolute maximum
	// rounded up to an integer, which quantizers that divide by the
	// scale on specialized hardware prefer. One parameter slot per
	// group holds the integer scale as a float.
	ModeIntegerSymmetric
)

func (m Mode) String() string {
	switch m {
	case ModeSymmetric:
		return "symmetric"
	case ModeAsymmetric:
		return "asymmetric"
	case ModeIntegerSymmetric:
		return "integer-symmetric"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParamSlots returns how many float32 parameter slots each group
// stores: one scale for the symmetric modes, scale plus offset for
// asymmetric.
func (m Mode) ParamSlots() int {
	if m == ModeAsymmetric {
		return 2
	}
	return 1
}

func (m Mode) valid() bool {
	switch m {
	case ModeSymmetric, ModeAsymmetric, ModeIntegerSymmetric:
		return true
	}
	return false
}

// Options configures a quantization launch.
type Options struct {
	// Mode selects the quantization scheme.
	Mode Mode

	// Bits is the quantized width, 4 or 8. Zero means 8.
	Bits int

	// ThreadsPerBlock overrides the block size used per group. It
	// must be a power of two no larger than
	// deepspeed.MaxThreadsPerBlock. Zero picks the smallest power of
	// two whose single-chunk pass covers the group, capped at the
	// maximum.
	ThreadsPerBlock int

	// ChunksPerThread overrides how many 16-byte chunks each thread
	// buffers. Zero derives the count that covers the group at the
	// chosen block size.
	ChunksPerThread int
}

// bitsOrDefault resolves the zero value to the 8-bit default.
func (o Options) bitsOrDefault() int {
	if o.Bits == 0 {
		return 8
	}
	return o.Bits
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// geometry resolves the launch shape for one group of elemsPerGroup
// elements: threads per block and chunks per thread.
func (o Options) geometry(elemsPerGroup int) (threads, chunks int, err error) {
	threads = o.ThreadsPerBlock
	if threads == 0 {
		threads = nextPow2((elemsPerGroup + deepspeed.HalfsPerLoad - 1) / deepspeed.HalfsPerLoad)
		if threads > deepspeed.MaxThreadsPerBlock {
			threads = deepspeed.MaxThreadsPerBlock
		}
	}

	span := threads * deepspeed.HalfsPerLoad
	chunks = o.ChunksPerThread
	if chunks == 0 {
		chunks = (elemsPerGroup + span - 1) / span
	}

	if threads*chunks*deepspeed.HalfsPerLoad < elemsPerGroup {
		return 0, 0, deepspeed.NewInvalidArgError("Quantize", fmt.Sprintf(
			"%d threads x %d chunks cover %d elements but the group has %d",
			threads, chunks, threads*chunks*deepspeed.HalfsPerLoad, elemsPerGroup))
	}
	return threads, chunks, nil
}

// validateShape checks the arguments shared by Quantize and
// Dequantize. The packed buffer holds elemsPerGroup*bits/8 bytes per
// group, the half buffer elemsPerGroup*2, and the parameter table
// ParamSlots() float32 values per group.
func validateShape(op string, packed, params, half deepspeed.DevicePtr,
	numGroups, elemsPerGroup int, mode Mode, bits int) error {

	var null deepspeed.DevicePtr
	if packed == null || params == null || half == null {
		return deepspeed.ErrNullPointer
	}
	if !mode.valid() {
		return deepspeed.NewInvalidArgError(op, fmt.Sprintf("unknown mode %d", int(mode)))
	}
	if bits != 4 && bits != 8 {
		return deepspeed.NewInvalidArgError(op, fmt.Sprintf("bits must be 4 or 8, got %d", bits))
	}
	if numGroups <= 0 {
		return deepspeed.NewInvalidArgError(op, fmt.Sprintf("numGroups must be positive, got %d", numGroups))
	}
	if elemsPerGroup <= 0 || elemsPerGroup%deepspeed.HalfsPerLoad != 0 {
		return deepspeed.NewInvalidArgError(op, fmt.Sprintf(
			"elemsPerGroup must be a positive multiple of %d, got %d",
			deepspeed.HalfsPerLoad, elemsPerGroup))
	}

	if need := numGroups * elemsPerGroup * 2; half.Size() < need {
		return deepspeed.NewInvalidArgError(op, fmt.Sprintf(
			"half buffer holds %d bytes, need %d", half.Size(), need))
	}
	if need := numGroups * elemsPerGroup * bits / 8; packed.Size() < need {
		return deepspeed.NewInvalidArgError(op, fmt.Sprintf(
			"packed buffer holds %d bytes, need %d", packed.Size(), need))
	}
	if need := numGroups * mode.ParamSlots() * 4; params.Size() < need {
		return deepspeed.NewInvalidArgError(op, fmt.Sprintf(
			"parameter table holds %d bytes, need %d", params.Size(), need))
	}
	return nil
}

// Quantize quantizes numGroups contiguous groups of elemsPerGroup
// half-precision values from input into packed integers in output,
// storing each group's dequantization parameters in params. One
// cooperative block handles one group: its threads buffer the group
// in 16-byte chunks, reduce the statistics the mode needs, and write
// the quantized bytes back out.
//
// elemsPerGroup must be a multiple of deepspeed.HalfsPerLoad. output
// receives elemsPerGroup*Bits/8 bytes per group and params
// Mode.ParamSlots() float32 values per group. The launch is
// asynchronous; call deepspeed.Synchronize before reading the
// results.
func Quantize(output, params, input deepspeed.DevicePtr, numGroups, elemsPerGroup int, opts Options) error {
	bits := opts.bitsOrDefault()
	if err := validateShape("Quantize", output, params, input, numGroups, elemsPerGroup, opts.Mode, bits); err != nil {
		return err
	}
	threads, chunks, err := opts.geometry(elemsPerGroup)
	if err != nil {
		return err
	}

	inHalf := input.Float16()
	out := output.Int8()
	paramTable := params.Float32()
	mode := opts.Mode

	kernel := func(tid deepspeed.ThreadID, tb *deepspeed.ThreadBlock, args ...interface{}) {
		// Chunks past the end of the group stay zero, mirroring a
		// zero-filled predicated load.
		buf := make([]float32, chunks*deepspeed.HalfsPerLoad)

		blockOffset := tid.BlockIdx.X * elemsPerGroup
		elemOffset := tid.Linear() * deepspeed.HalfsPerLoad
		stride := tid.BlockDim.Size() * deepspeed.HalfsPerLoad

		for i := 0; i < chunks; i++ {
			if elemOffset+i*stride >= elemsPerGroup {
				continue
			}
			base := blockOffset + elemOffset + i*stride
			for j := 0; j < deepspeed.PairsPerLoad; j++ {
				lo, hi := inHalf.GetHalf2(base/2 + j).Float32s()
				buf[i*deepspeed.HalfsPerLoad+2*j] = lo
				buf[i*deepspeed.HalfsPerLoad+2*j+1] = hi
			}
		}

		switch mode {
		case ModeAsymmetric:
			ReduceAndQuantizeAsymmetric(tid, tb, buf, paramTable, out, elemsPerGroup, bits)
		case ModeIntegerSymmetric:
			ReduceAndQuantizeIntegerSymmetric(tid, tb, buf, paramTable, out, elemsPerGroup, bits)
		default:
			ReduceAndQuantizeSymmetric(tid, tb, buf, paramTable, out, elemsPerGroup, bits)
		}
	}

	grid := deepspeed.Dim3{X: numGroups, Y: 1, Z: 1}
	block := deepspeed.Dim3{X: threads, Y: 1, Z: 1}
	return deepspeed.LaunchCooperative(kernel, grid, block)
}
