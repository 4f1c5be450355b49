package quantize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	deepspeed "github.com/mingshine10000/DeepSpeed"
)

func TestAbsMaxStatsUpdate(t *testing.T) {
	s := NewAbsMaxStats()
	s.Update(1.0, -3.0)
	s.Update(-2.5, 0.5)

	// Lanes accumulate independently until Reduce folds them.
	assert.Equal(t, float32(2.5), s.cur[0])
	assert.Equal(t, float32(3.0), s.cur[1])
}

func TestAbsMaxStatsNegativeZero(t *testing.T) {
	s := NewAbsMaxStats()
	s.Update(float32(math.Copysign(0, -1)), -0.25)
	assert.Equal(t, float32(0), s.cur[0])
	assert.Equal(t, float32(0.25), s.cur[1])
}

func TestMinMaxStatsUpdate(t *testing.T) {
	s := NewMinMaxStats()
	s.Update(1.0, -2.0)
	s.Update(3.5, 0)
	s.Update(-1.25, 2.0)
	s.Update(0.5, -3.0)

	assert.Equal(t, float32(3.5), s.curMax[0])
	assert.Equal(t, float32(2.0), s.curMax[1])
	assert.Equal(t, float32(-1.25), s.curMin[0])
	assert.Equal(t, float32(-3.0), s.curMin[1])
}

func TestLocalReduceAbsMax(t *testing.T) {
	buf := []float32{1, -2, 3.5, 0, -1.25, 2, 0.5, -3}
	s := localReduceAbsMax(buf)
	assert.Equal(t, float32(3.5), s.cur[0])
	assert.Equal(t, float32(3.0), s.cur[1])
}

func TestLocalReduceMinMax(t *testing.T) {
	buf := []float32{1, -2, 3.5, 0, -1.25, 2, 0.5, -3}
	s := localReduceMinMax(buf)
	assert.Equal(t, float32(3.5), s.curMax[0])
	assert.Equal(t, float32(2.0), s.curMax[1])
	assert.Equal(t, float32(-1.25), s.curMin[0])
	assert.Equal(t, float32(-3.0), s.curMin[1])
}

func TestStatsBlockReduce(t *testing.T) {
	// Each thread contributes the pair (rank, -rank-0.5). Across an
	// 8-thread block the raw extrema are 7 and -7.5, the absolute
	// maximum 7.5, and every thread must see the same result.
	const threads = 8
	absMax := make([]float32, threads)
	maxs := make([]float32, threads)
	mins := make([]float32, threads)

	kernel := func(tid deepspeed.ThreadID, tb *deepspeed.ThreadBlock, args ...interface{}) {
		rank := tid.Linear()
		lo := float32(rank)
		hi := -float32(rank) - 0.5

		a := NewAbsMaxStats()
		a.Update(lo, hi)
		a.Reduce(tb, rank)
		absMax[rank] = a.Max

		m := NewMinMaxStats()
		m.Update(lo, hi)
		m.Reduce(tb, rank)
		maxs[rank] = m.Max
		mins[rank] = m.Min
	}

	grid := deepspeed.Dim3{X: 1, Y: 1, Z: 1}
	block := deepspeed.Dim3{X: threads, Y: 1, Z: 1}
	deepspeed.LaunchCooperativeOrFail(t, kernel, grid, block)
	deepspeed.SynchronizeOrFail(t)

	for rank := 0; rank < threads; rank++ {
		assert.Equal(t, float32(7.5), absMax[rank], "rank %d", rank)
		assert.Equal(t, float32(7.0), maxs[rank], "rank %d", rank)
		assert.Equal(t, float32(-7.5), mins[rank], "rank %d", rank)
	}
}
