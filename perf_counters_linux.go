//go:build linux

package deepspeed

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// perfEvent describes one counter to open and where its value lands.
type perfEvent struct {
	name   string
	typ    uint32
	config uint64
	set    func(*PerfCounters, uint64)
}

// cacheEvent packs a HW_CACHE event descriptor (cache, op, result).
func cacheEvent(cache, op, result uint64) uint64 {
	return cache | op<<8 | result<<16
}

var perfEvents = []perfEvent{
	{"cycles", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CPU_CYCLES,
		func(pc *PerfCounters, v uint64) { pc.Cycles = v }},
	{"instructions", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS,
		func(pc *PerfCounters, v uint64) { pc.Instructions = v }},
	{"cache-references", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_REFERENCES,
		func(pc *PerfCounters, v uint64) { pc.CacheRefs = v }},
	{"cache-misses", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_MISSES,
		func(pc *PerfCounters, v uint64) { pc.CacheMisses = v }},
	{"l1d-read-misses", unix.PERF_TYPE_HW_CACHE,
		cacheEvent(unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS),
		func(pc *PerfCounters, v uint64) { pc.L1DMisses = v }},
	{"llc-read-misses", unix.PERF_TYPE_HW_CACHE,
		cacheEvent(unix.PERF_COUNT_HW_CACHE_LL, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS),
		func(pc *PerfCounters, v uint64) { pc.LLCMisses = v }},
}

// PerfMonitor collects hardware counters for the current process
// via perf_event_open.
type PerfMonitor struct {
	fds []int
}

// NewPerfMonitor returns an unstarted monitor.
func NewPerfMonitor() *PerfMonitor {
	return &PerfMonitor{}
}

// Start opens and enables the counter set. Events the machine cannot
// provide (common for HW_CACHE events inside VMs) are skipped; Start
// fails only when no event can be opened at all.
func (pm *PerfMonitor) Start() error {
	pm.close()

	pm.fds = make([]int, len(perfEvents))
	opened := 0

	for i, ev := range perfEvents {
		attr := unix.PerfEventAttr{
			Type:   ev.typ,
			Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
			Config: ev.config,
			// User space only. Keeps kernel noise out of the numbers and
			// works under perf_event_paranoid=2 without CAP_PERFMON.
			Bits: unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
		}

		fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			pm.fds[i] = -1
			continue
		}
		pm.fds[i] = fd
		opened++
	}

	if opened == 0 {
		pm.fds = nil
		return NewExecutionError("PerfMonitor", "no hardware counters available", unix.EACCES)
	}

	for _, fd := range pm.fds {
		if fd < 0 {
			continue
		}
		unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0)
		unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0)
	}

	return nil
}

// Stop disables the counters, reads their values and releases the
// file descriptors.
func (pm *PerfMonitor) Stop() *PerfCounters {
	pc := &PerfCounters{}

	for i, fd := range pm.fds {
		if fd < 0 {
			continue
		}

		unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0)

		var buf [8]byte
		if n, err := unix.Read(fd, buf[:]); err == nil && n == 8 {
			perfEvents[i].set(pc, *(*uint64)(unsafe.Pointer(&buf[0])))
		}
	}

	pm.close()
	pc.derive()

	return pc
}

func (pm *PerfMonitor) close() {
	for _, fd := range pm.fds {
		if fd >= 0 {
			unix.Close(fd)
		}
	}
	pm.fds = nil
}
