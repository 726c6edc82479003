//go:build !linux

package transport

import "fmt"

// pinToCPU is unsupported outside Linux: it always returns an error, so on
// other platforms PinCurrentGoroutine fails whenever CPUAffinityBase is set.
func pinToCPU(cpu int) error {
	return fmt.Errorf("transport: cpu affinity pinning is only supported on linux")
}
