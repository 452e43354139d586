package detections

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// CPUFeatures lists the vector extensions ONNX Runtime can use on this host.
// An empty list on amd64 usually explains slow inference.
func CPUFeatures() []string {
	var features []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasSSE41 {
			features = append(features, "sse4.1")
		}
		if cpu.X86.HasAVX2 {
			features = append(features, "avx2")
		}
		if cpu.X86.HasFMA {
			features = append(features, "fma")
		}
		if cpu.X86.HasAVX512F {
			features = append(features, "avx512f")
		}
		if cpu.X86.HasAVX512VNNI {
			features = append(features, "avx512vnni")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "asimd")
		}
		if cpu.ARM64.HasASIMDDP {
			features = append(features, "asimddp")
		}
		if cpu.ARM64.HasSVE {
			features = append(features, "sve")
		}
	}
	return features
}

// preprocessWorkers divides the processors between the sessions that may be
// preprocessing at the same time.
func preprocessWorkers(poolSize int) int {
	n := runtime.GOMAXPROCS(0) / max(1, poolSize)
	return max(1, n)
}
