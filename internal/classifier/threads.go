package classifier

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// OptimalThreads returns the interpreter thread count. A configured value of
// 0 picks the physical core count, leaving hyperthreads to the capture path.
// Values above the CPU count are capped.
func OptimalThreads(configured int) int {
	systemCPUCount := runtime.NumCPU()

	if configured > 0 {
		return min(configured, systemCPUCount)
	}

	if cores := cpuid.CPU.PhysicalCores; cores > 0 {
		return min(cores, systemCPUCount)
	}
	if cores := cpuid.CPU.LogicalCores; cores > 0 {
		return min(cores, systemCPUCount)
	}
	return systemCPUCount
}

// CPUDescription returns the CPU brand and core counts for startup logs.
func CPUDescription() (brand string, physical, logical int) {
	return cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores
}
