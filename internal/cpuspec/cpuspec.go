// Package cpuspec picks inference thread counts from the host CPU topology.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec describes the host CPU.
type CPUSpec struct {
	BrandName        string
	LogicalCores     int
	PerformanceCores int
}

// hybrid Intel parts keyed by model number
var intelPerformanceCores = map[string]int{
	"12900": 8, "12700": 8, "12600": 6, "12400": 6, "12100": 4,
	"13900": 8, "13700": 8, "13600": 6, "13500": 6, "13400": 6, "13100": 4,
	"14900": 8, "14700": 8, "14600": 6, "14400": 6, "14100": 4,
	"ultra 9 285": 8, "ultra 7 265": 8, "ultra 7 255": 8, "ultra 5 235": 6, "ultra 5 225": 4,
}

var applePerformanceCores = map[string]int{
	"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
	"m2": 4, "m2 pro": 8, "m2 max": 12, "m2 ultra": 24,
	"m3": 4, "m3 pro": 8, "m3 max": 12, "m3 ultra": 24,
	"m4": 6, "m4 pro": 8, "m4 max": 12,
}

var (
	intelCoreRegex  = regexp.MustCompile(`intel.*core.*i[3579]-(\d{5})`)
	intelUltraRegex = regexp.MustCompile(`intel.*core.*(ultra\s+[579])\s+(?:processor\s+)?(\d{3})`)
	appleRegex      = regexp.MustCompile(`apple\s+(m[1-4](?:\s+(?:pro|max|ultra))?)`)
)

// GetCPUSpec inspects the running CPU.
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:        cpuid.CPU.BrandName,
		LogicalCores:     cpuid.CPU.LogicalCores,
		PerformanceCores: PerformanceCores(cpuid.CPU.BrandName),
	}
}

// OptimalThreadCount returns the performance core count when the CPU is a
// known hybrid design, otherwise all logical cores. The result never exceeds
// runtime.NumCPU, which honours VM and container limits.
func (c CPUSpec) OptimalThreadCount() int {
	available := runtime.NumCPU()
	if c.PerformanceCores > 0 {
		return min(c.PerformanceCores, available)
	}
	if c.LogicalCores > 0 {
		return min(c.LogicalCores, available)
	}
	return available
}

// ThreadCount resolves a configured inference thread count. Zero means
// automatic; explicit values are capped at the available CPUs.
func ThreadCount(configured int) int {
	if configured <= 0 {
		return GetCPUSpec().OptimalThreadCount()
	}
	return min(configured, runtime.NumCPU())
}

// PerformanceCores returns the number of performance cores for a known
// hybrid CPU brand string, or 0 when the CPU is not recognised.
func PerformanceCores(brandName string) int {
	brand := strings.ToLower(brandName)

	if m := intelCoreRegex.FindStringSubmatch(brand); m != nil {
		return intelPerformanceCores[m[1]]
	}
	if m := intelUltraRegex.FindStringSubmatch(brand); m != nil {
		return intelPerformanceCores[strings.Join(strings.Fields(m[1]), " ")+" "+m[2]]
	}
	if m := appleRegex.FindStringSubmatch(brand); m != nil {
		return applePerformanceCores[strings.Join(strings.Fields(m[1]), " ")]
	}
	return 0
}
