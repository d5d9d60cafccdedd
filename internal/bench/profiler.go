package bench

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/minggrim/ResourcePool/pkg/metrics"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// ResourceUsage is a snapshot of process resource consumption.
type ResourceUsage struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryRSS      uint64  `json:"memory_rss_bytes"`
	MemoryVMS      uint64  `json:"memory_vms_bytes"`
	SystemMemUsed  float64 `json:"system_memory_used_percent"`
	GoroutineCount int     `json:"goroutine_count"`
	ThreadCount    int32   `json:"thread_count"`
	OpenFDs        int32   `json:"open_fds,omitempty"`
}

// ResourceMonitor samples resource usage of the current process. CPU
// percentage is averaged over the window between Start and Snapshot.
type ResourceMonitor struct {
	proc         *process.Process
	startTime    time.Time
	startCPUTime float64
}

// NewResourceMonitor attaches to the current process and records the
// baseline CPU time.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to attach to process")
	}

	m := &ResourceMonitor{
		proc:      proc,
		startTime: time.Now(),
	}
	if cpuTime, err := proc.Times(); err == nil {
		m.startCPUTime = cpuTime.Total()
	}
	return m, nil
}

// Snapshot returns current usage. Fields the platform cannot report are
// left at zero rather than failing the whole sample.
func (m *ResourceMonitor) Snapshot() *ResourceUsage {
	usage := &ResourceUsage{
		GoroutineCount: runtime.NumGoroutine(),
	}

	elapsed := time.Since(m.startTime).Seconds()
	if cpuTime, err := m.proc.Times(); err == nil && elapsed > 0 {
		usage.CPUPercent = (cpuTime.Total() - m.startCPUTime) / elapsed * 100
	}

	if memInfo, err := m.proc.MemoryInfo(); err == nil {
		usage.MemoryRSS = memInfo.RSS
		usage.MemoryVMS = memInfo.VMS
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemUsed = vmStat.UsedPercent
	}

	if threads, err := m.proc.NumThreads(); err == nil {
		usage.ThreadCount = threads
	}

	if fds, err := m.proc.NumFDs(); err == nil {
		usage.OpenFDs = fds
	}

	metrics.ProcessRSSBytes.Set(float64(usage.MemoryRSS))
	metrics.ProcessCPUPercent.Set(usage.CPUPercent)

	return usage
}
