// Package deepspeed configuration constants
package deepspeed

// Quantization load geometry. Kernels move half-precision data in
// fixed 16-byte chunks; every per-thread buffer and output stride is
// derived from these.
const (
	// Granularity is the per-load chunk size in bytes
	Granularity = 16

	// HalfsPerLoad is the number of half-precision elements per chunk
	HalfsPerLoad = Granularity / 2

	// PairsPerLoad is the number of packed half pairs per chunk
	PairsPerLoad = Granularity / 4
)

// Thread and block dimensions
const (
	// DefaultBlockSize is the default block size for flat kernels
	DefaultBlockSize = 256

	// MaxThreadsPerBlock is the maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// LaneWidth is the width of a lock-step lane group. Cooperative
	// reductions butterfly within a lane group before combining across
	// groups, so block sizes must be powers of two.
	LaneWidth = 32
)

// Memory pool parameters
const (
	// Minimum allocation size to prevent fragmentation
	MinAllocationSize = 64

	// Memory alignment for allocations
	MemoryAlignment = 64

	// Free list size threshold for reuse
	FreeListThreshold = 100
)

// Numerical constants
const (
	// Machine epsilon for float32
	Float32Epsilon = 1.192092896e-07

	// Maximum ULP difference for float32 comparisons
	MaxULPDiff = 4
)
