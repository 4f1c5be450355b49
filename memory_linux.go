//go:build linux

package deepspeed

import "golang.org/x/sys/unix"

// getSystemMemory returns total system memory in bytes.
func getSystemMemory() uint64 {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 16 * 1024 * 1024 * 1024
	}
	return uint64(si.Totalram) * uint64(si.Unit)
}
