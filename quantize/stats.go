package quantize

import (
	"math"

	deepspeed "github.com/mingshine10000/DeepSpeed"
)

// Group statistics accumulate running extrema over the values of one
// quantization group. Each thread folds its private chunk of the
// group into a private accumulator pair by pair, then Reduce merges
// the accumulators of every thread in the block. The scalar results
// are valid only after Reduce; calling Update afterwards leaves the
// accumulator inconsistent.
//
// The accumulators keep two lanes, one per element of a loaded pair,
// and fold them into a scalar only at reduction time. A group with no
// values reduces to the infinity identities rather than zero; callers
// guarantee at least one element per group.

// AbsMaxStats tracks the running absolute maximum for the symmetric
// modes.
type AbsMaxStats struct {
	cur [2]float32

	// Max is the block-wide absolute maximum, valid after Reduce.
	Max float32
}

// NewAbsMaxStats returns an accumulator initialized to the max
// identity.
func NewAbsMaxStats() AbsMaxStats {
	ninf := float32(math.Inf(-1))
	return AbsMaxStats{cur: [2]float32{ninf, ninf}}
}

// Update folds one pair of values into the running absolute maximum.
// Pairs may arrive in any order.
func (s *AbsMaxStats) Update(lo, hi float32) {
	s.cur[0] = maxf(s.cur[0], absf(lo))
	s.cur[1] = maxf(s.cur[1], absf(hi))
}

// Reduce folds the two lanes into a scalar and merges it with every
// other thread in the block. All threads must call Reduce together;
// afterwards each sees the identical Max.
func (s *AbsMaxStats) Reduce(tb *deepspeed.ThreadBlock, rank int) {
	local := maxf(s.cur[0], s.cur[1])
	s.Max = tb.AllReduceMax(rank, local)
}

// MinMaxStats tracks the running maximum and minimum of the raw
// values for asymmetric mode.
type MinMaxStats struct {
	curMax [2]float32
	curMin [2]float32

	// Max and Min are the block-wide extrema, valid after Reduce.
	Max float32
	Min float32
}

// NewMinMaxStats returns an accumulator initialized to the max and
// min identities.
func NewMinMaxStats() MinMaxStats {
	ninf := float32(math.Inf(-1))
	pinf := float32(math.Inf(1))
	return MinMaxStats{
		curMax: [2]float32{ninf, ninf},
		curMin: [2]float32{pinf, pinf},
	}
}

// Update folds one pair of values into the running extrema. Pairs may
// arrive in any order.
func (s *MinMaxStats) Update(lo, hi float32) {
	s.curMax[0] = maxf(s.curMax[0], lo)
	s.curMax[1] = maxf(s.curMax[1], hi)
	s.curMin[0] = minf(s.curMin[0], lo)
	s.curMin[1] = minf(s.curMin[1], hi)
}

// Reduce folds the lanes into scalars and merges them with every
// other thread in the block in a single pass. All threads must call
// Reduce together; afterwards each sees the identical Max and Min.
func (s *MinMaxStats) Reduce(tb *deepspeed.ThreadBlock, rank int) {
	localMax := maxf(s.curMax[0], s.curMax[1])
	localMin := minf(s.curMin[0], s.curMin[1])
	s.Max, s.Min = tb.AllReduceMaxMin(rank, localMax, localMin)
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func absf(v float32) float32 {
	return math.Float32frombits(math.Float32bits(v) &^ (1 << 31))
}
