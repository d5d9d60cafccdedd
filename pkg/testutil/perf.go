package testutil

import (
	"fmt"
	"runtime"
	"testing"
	"time"
)

// SkipIfShort marks a test as a sustained-load test, skipped under -short.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping sustained-load test in short mode")
	}
}

// PerformanceTest checks an acquire/release workload against throughput,
// latency, and memory thresholds. Thresholds left unset are not enforced.
type PerformanceTest struct {
	t         *testing.T
	name      string
	threshold struct {
		minThroughput float64 // acquires/sec
		maxLatency    time.Duration
		maxMemory     int64 // bytes
	}
}

// NewPerformanceTest creates a performance test with no thresholds set.
func NewPerformanceTest(t *testing.T, name string) *PerformanceTest {
	return &PerformanceTest{
		t:    t,
		name: name,
	}
}

// WithThroughputTarget sets the minimum acceptable acquire rate.
func (p *PerformanceTest) WithThroughputTarget(acquiresPerSec float64) *PerformanceTest {
	p.threshold.minThroughput = acquiresPerSec
	return p
}

// WithLatencyTarget sets the maximum acceptable mean time per acquisition.
func (p *PerformanceTest) WithLatencyTarget(maxLatency time.Duration) *PerformanceTest {
	p.threshold.maxLatency = maxLatency
	return p
}

// WithMemoryTarget sets the maximum acceptable heap growth.
func (p *PerformanceTest) WithMemoryTarget(maxBytes int64) *PerformanceTest {
	p.threshold.maxMemory = maxBytes
	return p
}

// Run executes the workload and enforces the configured thresholds. The
// workload reports how many acquisitions it completed and how long it ran.
func (p *PerformanceTest) Run(fn func() (acquires int64, duration time.Duration)) {
	p.t.Helper()

	initialMem := CaptureMemoryProfile()

	acquires, duration := fn()
	if acquires == 0 {
		p.t.Fatalf("performance test %s completed no acquisitions", p.name)
	}

	throughput := float64(acquires) / duration.Seconds()
	avgLatency := duration / time.Duration(acquires)

	finalMem := CaptureMemoryProfile()
	memoryUsed := int64(finalMem.AllocBytes - initialMem.AllocBytes)

	p.t.Logf("Performance Test: %s", p.name)
	p.t.Logf("  Acquires: %d", acquires)
	p.t.Logf("  Duration: %v", duration)
	p.t.Logf("  Throughput: %.0f acquires/sec", throughput)
	p.t.Logf("  Avg Latency: %v", avgLatency)
	p.t.Logf("  Memory Used: %s", formatBytes(memoryUsed))

	if p.threshold.minThroughput > 0 && throughput < p.threshold.minThroughput {
		p.t.Errorf("Throughput %.0f acquires/sec below target %.0f acquires/sec",
			throughput, p.threshold.minThroughput)
	}

	if p.threshold.maxLatency > 0 && avgLatency > p.threshold.maxLatency {
		p.t.Errorf("Latency %v exceeds target %v", avgLatency, p.threshold.maxLatency)
	}

	if p.threshold.maxMemory > 0 && memoryUsed > p.threshold.maxMemory {
		p.t.Errorf("Memory usage %s exceeds target %s",
			formatBytes(memoryUsed), formatBytes(p.threshold.maxMemory))
	}
}

// MemoryProfile captures memory statistics
type MemoryProfile struct {
	AllocBytes uint64
	TotalAlloc uint64
	Sys        uint64
	Mallocs    uint64
	Frees      uint64
	HeapAlloc  uint64
	HeapSys    uint64
	HeapInuse  uint64
	StackInuse uint64
}

// CaptureMemoryProfile captures current memory profile
func CaptureMemoryProfile() *MemoryProfile {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &MemoryProfile{
		AllocBytes: m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		Mallocs:    m.Mallocs,
		Frees:      m.Frees,
		HeapAlloc:  m.HeapAlloc,
		HeapSys:    m.HeapSys,
		HeapInuse:  m.HeapInuse,
		StackInuse: m.StackInuse,
	}
}

// formatBytes formats bytes into human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
