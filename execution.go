package deepspeed

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// launchInternal implements the core kernel execution logic for flat
// kernels, where threads within a block never synchronize with each
// other.
func (ctx *Context) launchInternal(
	kernelFunc func(ThreadID, ...interface{}),
	grid, block Dim3,
	stream *Stream,
	args ...interface{},
) error {
	// Calculate total work items
	gridSize := grid.Size()
	blockSize := block.Size()

	slog.Debug("kernel launch", "blocks", gridSize, "threads_per_block", blockSize)

	// Handle edge case where grid size is zero
	if gridSize == 0 {
		// Submit an empty task to maintain stream ordering
		stream.Submit(func() {})
		return nil
	}

	// Determine parallelism strategy
	numWorkers := runtime.NumCPU()
	if gridSize < numWorkers {
		numWorkers = gridSize
	}

	// Cache-aware scheduling: each worker processes multiple blocks
	// to maximize cache reuse
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	// Submit work to stream
	stream.Submit(func() {
		var wg sync.WaitGroup
		wg.Add(numWorkers)

		for workerID := 0; workerID < numWorkers; workerID++ {
			startBlock := workerID * blocksPerWorker
			endBlock := startBlock + blocksPerWorker
			if endBlock > gridSize {
				endBlock = gridSize
			}

			// Launch worker goroutine
			go func() {
				defer wg.Done()

				// Process assigned blocks
				for blockID := startBlock; blockID < endBlock; blockID++ {
					// Convert linear block ID to 3D
					blockIdx := linearTo3D(blockID, grid)

					// Execute all threads in this block
					// For flat kernels, threads run sequentially within a block.
					// This maximizes cache reuse and minimizes synchronization.
					for threadID := 0; threadID < blockSize; threadID++ {
						// Convert linear thread ID to 3D
						threadIdx := linearTo3D(threadID, block)

						// Create thread identification
						tid := ThreadID{
							BlockIdx:  blockIdx,
							ThreadIdx: threadIdx,
							BlockDim:  block,
							GridDim:   grid,
						}

						// Execute kernel for this thread
						kernelFunc(tid, args...)
					}
				}
			}()
		}

		wg.Wait()
	})

	return nil
}

// launchCooperativeInternal executes a kernel whose threads cooperate
// through barriers. Sequential thread execution cannot support a
// barrier, so every thread of a block gets its own goroutine and the
// block completes only when all of them return. Blocks fan out through
// a bounded group so a large grid keeps at most NumCPU blocks (and
// thus NumCPU*blockSize goroutines) in flight.
func (ctx *Context) launchCooperativeInternal(
	kernelFunc func(ThreadID, *ThreadBlock, ...interface{}),
	grid, block Dim3,
	stream *Stream,
	args ...interface{},
) error {
	gridSize := grid.Size()
	blockSize := block.Size()

	slog.Debug("cooperative kernel launch", "blocks", gridSize, "threads_per_block", blockSize)

	if blockSize <= 0 || blockSize > MaxThreadsPerBlock {
		return NewInvalidArgError("LaunchCooperative",
			fmt.Sprintf("block size %d out of range [1, %d]", blockSize, MaxThreadsPerBlock))
	}
	// The lane-group butterfly pairs thread ranks by XOR, which
	// requires a power-of-two block.
	if blockSize&(blockSize-1) != 0 {
		return NewInvalidArgError("LaunchCooperative",
			fmt.Sprintf("block size %d is not a power of two", blockSize))
	}

	if gridSize == 0 {
		stream.Submit(func() {})
		return nil
	}

	stream.Submit(func() {
		var eg errgroup.Group
		eg.SetLimit(runtime.NumCPU())

		for blockID := 0; blockID < gridSize; blockID++ {
			blockIdx := linearTo3D(blockID, grid)

			eg.Go(func() error {
				tb := newThreadBlock(blockSize)

				var wg sync.WaitGroup
				wg.Add(blockSize)
				for threadID := 0; threadID < blockSize; threadID++ {
					tid := ThreadID{
						BlockIdx:  blockIdx,
						ThreadIdx: linearTo3D(threadID, block),
						BlockDim:  block,
						GridDim:   grid,
					}

					go func() {
						defer wg.Done()
						kernelFunc(tid, tb, args...)
					}()
				}
				wg.Wait()
				return nil
			})
		}

		eg.Wait()
	})

	return nil
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// ForEach applies a function to each element in parallel
func ForEach(data DevicePtr, size int, fn func(idx int, val *float32)) error {
	grid := Dim3{X: (size + DefaultBlockSize - 1) / DefaultBlockSize, Y: 1, Z: 1}
	block := Dim3{X: DefaultBlockSize, Y: 1, Z: 1}

	kernel := KernelFunc(func(tid ThreadID, args ...interface{}) {
		idx := tid.Global()
		if idx < size {
			slice := data.Float32()
			fn(idx, &slice[idx])
		}
	})

	return Launch(kernel, grid, block, data, size)
}
