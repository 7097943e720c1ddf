package simd

import (
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// HostInfo describes the CPU the benchmark runs on.
type HostInfo struct {
	Brand    string
	Vendor   string
	Cores    int
	Threads  int
	Features []string
	GOARCH   string
}

// reportedFeatures are the vector extensions worth printing next to a result.
var reportedFeatures = []cpuid.FeatureID{
	cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.F16C,
	cpuid.AVX512F, cpuid.AVX512BF16, cpuid.ASIMD, cpuid.SVE,
}

func Host() HostInfo {
	info := HostInfo{
		Brand:   cpuid.CPU.BrandName,
		Vendor:  cpuid.CPU.VendorString,
		Cores:   cpuid.CPU.PhysicalCores,
		Threads: runtime.NumCPU(),
		GOARCH:  runtime.GOARCH,
	}
	for _, f := range reportedFeatures {
		if cpuid.CPU.Supports(f) {
			info.Features = append(info.Features, f.String())
		}
	}
	if info.Brand == "" {
		info.Brand = "unknown"
	}
	return info
}

func (h HostInfo) String() string {
	features := "none"
	if len(h.Features) > 0 {
		features = strings.Join(h.Features, ",")
	}
	return h.Brand + " (" + h.GOARCH + ", features: " + features + ")"
}
