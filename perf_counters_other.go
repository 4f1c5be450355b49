//go:build !linux

package deepspeed

// PerfMonitor stub for platforms without perf_event_open.
type PerfMonitor struct{}

// NewPerfMonitor returns an unstarted monitor.
func NewPerfMonitor() *PerfMonitor {
	return &PerfMonitor{}
}

// Start reports that hardware counters are unavailable here.
func (pm *PerfMonitor) Start() error {
	return &Error{
		Type:    ErrTypeNotImplemented,
		Op:      "PerfMonitor",
		Message: "hardware counters require linux perf_event_open",
	}
}

// Stop returns empty counters.
func (pm *PerfMonitor) Stop() *PerfCounters {
	return &PerfCounters{}
}
