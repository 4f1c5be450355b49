//go:build !linux

package deepspeed

// getSystemMemory returns total system memory in bytes. Without a
// portable way to query the host we assume a 16GB machine, which only
// affects the advisory Device.TotalMem figure.
func getSystemMemory() uint64 {
	return 16 * 1024 * 1024 * 1024
}
