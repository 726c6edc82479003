//go:build linux

package transport

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCPU locks the calling goroutine to its current OS thread and sets
// that thread's CPU affinity mask to exactly cpu (spec EXPANDED C15:
// thread-private workers pinned to a fixed compute core, the Go analogue of
// an HPC job's rank-to-core binding). The goroutine must not be unlocked or
// allowed to migrate threads afterward, so callers invoke this once at the
// top of a Worker's dedicated goroutine, for the lifetime of that
// goroutine.
func pinToCPU(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("transport: pin to cpu %d: %w", cpu, err)
	}
	return nil
}
