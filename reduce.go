package deepspeed

import (
	"math"
)

// Hierarchical reductions for cooperative kernels. A reduction runs in
// two tiers: an XOR butterfly inside each lane group, then a combine
// across lane leaders through the block's scratch table. Every thread
// of the block receives the final value, and the combine order is
// fixed, so results are identical on every thread and across runs.
//
// All reductions move a pair of float32 values so that a max and a min
// can share one pass; single-value reductions carry a dead second
// lane.

// reduceOp combines two partial reduction values.
type reduceOp func(a, b float32) float32

func maxOp(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minOp(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// allReducePair performs the butterfly within the lane group. rank is
// the thread's index within the lane. After log2(width) rounds every
// thread holds the lane-wide result. Each round publishes to scratch,
// waits, combines with the XOR partner's slot, and waits again so the
// next round (or the next reduction) cannot race the reads.
func (lg *LaneGroup) allReducePair(rank int, v [2]float32, op0, op1 reduceOp) [2]float32 {
	for offset := lg.width >> 1; offset > 0; offset >>= 1 {
		lg.scratch[rank] = v
		lg.barrier.Wait()
		peer := lg.scratch[rank^offset]
		v[0] = op0(v[0], peer[0])
		v[1] = op1(v[1], peer[1])
		lg.barrier.Wait()
	}
	return v
}

// allReducePair performs the block-wide reduction. rank is the
// thread's block-linear rank. Lane leaders publish their lane results
// to the partials table; after the block barrier every thread folds
// the partials in lane order, so all threads compute the identical
// value. The trailing barrier releases the table for the next
// reduction.
func (tb *ThreadBlock) allReducePair(rank int, v [2]float32, op0, op1 reduceOp) [2]float32 {
	lane := tb.Lane(rank)
	v = lane.allReducePair(rank%tb.laneWidth, v, op0, op1)

	if len(tb.lanes) == 1 {
		return v
	}

	if rank%tb.laneWidth == 0 {
		tb.partials[lane.id] = v
	}
	tb.barrier.Wait()

	out := tb.partials[0]
	for i := 1; i < len(tb.partials); i++ {
		out[0] = op0(out[0], tb.partials[i][0])
		out[1] = op1(out[1], tb.partials[i][1])
	}
	tb.barrier.Wait()

	return out
}

// AllReduceMax returns the maximum of val across every thread in the
// block. All threads must call it; all receive the same result.
func (tb *ThreadBlock) AllReduceMax(rank int, val float32) float32 {
	v := tb.allReducePair(rank, [2]float32{val, val}, maxOp, maxOp)
	return v[0]
}

// AllReduceMin returns the minimum of val across every thread in the
// block. All threads must call it; all receive the same result.
func (tb *ThreadBlock) AllReduceMin(rank int, val float32) float32 {
	v := tb.allReducePair(rank, [2]float32{val, val}, minOp, minOp)
	return v[0]
}

// AllReduceMaxMin reduces a maximum and a minimum in a single pass,
// one barrier sequence for both. All threads must call it; all receive
// the same results.
func (tb *ThreadBlock) AllReduceMaxMin(rank int, maxVal, minVal float32) (float32, float32) {
	v := tb.allReducePair(rank, [2]float32{maxVal, minVal}, maxOp, minOp)
	return v[0], v[1]
}

// Serial reductions over device buffers. These are the reference
// counterparts of the cooperative reductions, used by verification
// paths and host-side parameter checks.

// Max returns the maximum value among the first n float32 elements.
func (d DevicePtr) Max(n int) float32 {
	if n == 0 {
		return float32(math.Inf(-1))
	}
	x := d.Float32()[:n]
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Min returns the minimum value among the first n float32 elements.
func (d DevicePtr) Min(n int) float32 {
	if n == 0 {
		return float32(math.Inf(1))
	}
	x := d.Float32()[:n]
	min := x[0]
	for _, v := range x[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// AbsMax returns the largest absolute value among the first n float32
// elements.
func (d DevicePtr) AbsMax(n int) float32 {
	if n == 0 {
		return float32(math.Inf(-1))
	}
	x := d.Float32()[:n]
	max := float32(math.Abs(float64(x[0])))
	for _, v := range x[1:] {
		av := float32(math.Abs(float64(v)))
		if av > max {
			max = av
		}
	}
	return max
}
