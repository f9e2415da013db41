package scan

import (
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
)

var (
	workersOnce sync.Once
	workers     int
)

// DefaultWorkers returns the logical CPU count, or 4 when it cannot be read.
func DefaultWorkers() int {
	workersOnce.Do(func() {
		n, err := cpu.Counts(true)
		if err != nil || n < 1 {
			n = fallbackWorkers
		}
		workers = n
	})
	return workers
}
