package deepspeed

import (
	"sync"
)

// Barrier is a reusable synchronization point for a fixed count of
// goroutines. Wait blocks until all participants arrive, then releases
// them together; the barrier resets itself for the next round, so one
// Barrier serves every synchronization point in a kernel.
type Barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	size  int
	count int
	gen   uint64
}

// NewBarrier creates a barrier for n participants.
func NewBarrier(n int) *Barrier {
	b := &Barrier{size: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all participants have called Wait for the current
// round. The generation counter distinguishes rounds so a fast thread
// re-entering Wait cannot slip through a stale wakeup.
func (b *Barrier) Wait() {
	b.mu.Lock()
	gen := b.gen
	b.count++
	if b.count == b.size {
		b.count = 0
		b.gen++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// ThreadBlock coordinates the threads of one block in a cooperative
// kernel launch. It owns the block-wide barrier, the lane groups the
// block is partitioned into, and the scratch table lane leaders use to
// combine partial reductions across lanes.
//
// A ThreadBlock is created per block per launch and shared by exactly
// the goroutines of that block. The scratch space is owned by one
// in-flight reduction at a time; the reduction methods bracket their
// use with barriers so sequential reductions never overlap.
type ThreadBlock struct {
	size      int
	laneWidth int
	barrier   *Barrier
	lanes     []*LaneGroup
	partials  [][2]float32
}

// newThreadBlock partitions size threads into lane groups of LaneWidth
// (or a single group of size, when the block is smaller than a lane).
// size must be a power of two; the launcher validates this.
func newThreadBlock(size int) *ThreadBlock {
	laneWidth := LaneWidth
	if size < laneWidth {
		laneWidth = size
	}
	numLanes := size / laneWidth

	tb := &ThreadBlock{
		size:      size,
		laneWidth: laneWidth,
		barrier:   NewBarrier(size),
		lanes:     make([]*LaneGroup, numLanes),
		partials:  make([][2]float32, numLanes),
	}
	for i := range tb.lanes {
		tb.lanes[i] = &LaneGroup{
			block:   tb,
			id:      i,
			width:   laneWidth,
			barrier: NewBarrier(laneWidth),
			scratch: make([][2]float32, laneWidth),
		}
	}
	return tb
}

// Size returns the number of threads in the block.
func (tb *ThreadBlock) Size() int {
	return tb.size
}

// NumLanes returns the number of lane groups in the block.
func (tb *ThreadBlock) NumLanes() int {
	return len(tb.lanes)
}

// Sync blocks until every thread in the block has reached it.
func (tb *ThreadBlock) Sync() {
	tb.barrier.Wait()
}

// Lane returns the lane group containing the thread with the given
// block-linear rank.
func (tb *ThreadBlock) Lane(rank int) *LaneGroup {
	return tb.lanes[rank/tb.laneWidth]
}

// LaneGroup is the lock-step tier of the block hierarchy. Threads in a
// lane group exchange reduction operands through a scratch table using
// an XOR butterfly, so lane widths are always powers of two.
type LaneGroup struct {
	block   *ThreadBlock
	id      int
	width   int
	barrier *Barrier
	scratch [][2]float32
}

// ID returns the lane group's index within its block.
func (lg *LaneGroup) ID() int {
	return lg.id
}

// Width returns the number of threads in the lane group.
func (lg *LaneGroup) Width() int {
	return lg.width
}

// Sync blocks until every thread in the lane group has reached it.
func (lg *LaneGroup) Sync() {
	lg.barrier.Wait()
}
