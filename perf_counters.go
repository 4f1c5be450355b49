// Package deepspeed hardware performance counter collection for
// benchmark analysis. Quantization kernels are memory bound, so the
// interesting numbers are IPC and cache behavior rather than FLOPS.
package deepspeed

import (
	"fmt"
	"strings"
	"time"
)

// PerfCounters holds one measurement window of hardware counters.
type PerfCounters struct {
	// Wall time of the measured region
	Duration time.Duration

	// Raw counter values
	Cycles       uint64
	Instructions uint64
	CacheRefs    uint64
	CacheMisses  uint64
	L1DMisses    uint64
	LLCMisses    uint64

	// Derived metrics, filled in by Stop
	IPC      float64 // Instructions per cycle
	MissRate float64 // Cache misses / cache references
}

// derive computes IPC and miss rate from the raw counters.
func (pc *PerfCounters) derive() {
	if pc.Cycles > 0 {
		pc.IPC = float64(pc.Instructions) / float64(pc.Cycles)
	}
	if pc.CacheRefs > 0 {
		pc.MissRate = float64(pc.CacheMisses) / float64(pc.CacheRefs)
	}
}

// PerElement returns instructions and LLC misses per processed element.
// Useful for judging how close a kernel sits to the memory wall.
func (pc *PerfCounters) PerElement(elements uint64) (instrs, llcMisses float64) {
	if elements == 0 {
		return 0, 0
	}
	return float64(pc.Instructions) / float64(elements),
		float64(pc.LLCMisses) / float64(elements)
}

// String formats the counters for display, omitting anything
// the kernel or platform did not provide.
func (pc *PerfCounters) String() string {
	var sb strings.Builder

	sb.WriteString("Hardware Counters:\n")
	if pc.Duration > 0 {
		sb.WriteString(fmt.Sprintf("  Duration:       %v\n", pc.Duration))
	}
	if pc.Cycles > 0 {
		sb.WriteString(fmt.Sprintf("  Cycles:         %d\n", pc.Cycles))
		sb.WriteString(fmt.Sprintf("  Instructions:   %d\n", pc.Instructions))
		sb.WriteString(fmt.Sprintf("  IPC:            %.2f\n", pc.IPC))
	}
	if pc.CacheRefs > 0 {
		sb.WriteString(fmt.Sprintf("  Cache Refs:     %d\n", pc.CacheRefs))
		sb.WriteString(fmt.Sprintf("  Cache Misses:   %d (%.2f%%)\n", pc.CacheMisses, pc.MissRate*100))
	}
	if pc.L1DMisses > 0 {
		sb.WriteString(fmt.Sprintf("  L1D Misses:     %d\n", pc.L1DMisses))
	}
	if pc.LLCMisses > 0 {
		sb.WriteString(fmt.Sprintf("  LLC Misses:     %d\n", pc.LLCMisses))
	}

	return sb.String()
}

// MeasureWithCounters runs fn and collects hardware counters around it.
// When counters cannot be opened (non-Linux, restricted perf_event_paranoid)
// the result carries wall time only.
func MeasureWithCounters(fn func() error) (*PerfCounters, error) {
	mon := NewPerfMonitor()

	counted := mon.Start() == nil

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	var pc *PerfCounters
	if counted {
		pc = mon.Stop()
	} else {
		pc = &PerfCounters{}
	}
	pc.Duration = elapsed

	if err != nil {
		return nil, err
	}
	return pc, nil
}
