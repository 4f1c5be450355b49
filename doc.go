// Package deepspeed provides a CUDA-style execution runtime for CPU:
// device buffers, streams, kernel launches over a grid/block thread
// hierarchy, and cooperative thread blocks with barrier-synchronized
// reductions.
//
// The runtime exists to host the group quantization kernels in the
// quantize subpackage, which convert half-precision tensors into
// packed 4-bit or 8-bit integers with per-group parameter tables. The
// execution model mirrors the GPU original closely enough that kernel
// code reads the same way: a kernel receives a ThreadID carrying its
// block and thread indices, and cooperative kernels additionally
// receive a ThreadBlock for barriers and block-wide reductions.
//
// Example usage:
//
//	d_in, _ := deepspeed.Malloc(n * 2) // n half-precision values
//	defer deepspeed.Free(d_in)
//
//	grid := deepspeed.Dim3{X: numGroups, Y: 1, Z: 1}
//	block := deepspeed.Dim3{X: 256, Y: 1, Z: 1}
//	deepspeed.LaunchCooperative(kernel, grid, block)
//	deepspeed.Synchronize()
package deepspeed
