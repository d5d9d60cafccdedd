package bench

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// Report is the aggregated result of one benchmark run.
type Report struct {
	Tool     string `json:"tool"`
	Version  string `json:"version"`
	Pool     string `json:"pool"`
	Workload string `json:"workload"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	Workers             int `json:"workers"`
	IterationsPerWorker int `json:"iterations_per_worker"`

	// Outcome counts across all workers
	Acquires             int64 `json:"acquires"`
	Timeouts             int64 `json:"timeouts"`
	ConstructionFailures int64 `json:"construction_failures"`
	OtherFailures        int64 `json:"other_failures"`
	WorkErrors           int64 `json:"work_errors"`

	AcquiresPerSecond float64 `json:"acquires_per_second"`

	// Acquire wait distribution
	WaitP50 time.Duration `json:"wait_p50_ns"`
	WaitP95 time.Duration `json:"wait_p95_ns"`
	WaitP99 time.Duration `json:"wait_p99_ns"`
	WaitMax time.Duration `json:"wait_max_ns"`

	// Final pool snapshot, taken after the workers drain and before Close
	PoolStats pool.Stats `json:"pool_stats"`

	// Process resource usage over the run
	Resources *ResourceUsage `json:"resources,omitempty"`
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to encode report")
	}
	return data, nil
}

// Text renders the report as a human-readable block.
func (r *Report) Text() string {
	resources := ""
	if r.Resources != nil {
		resources = fmt.Sprintf(`
Resources:
- CPU: %.2f%%
- RSS: %s
- Goroutines: %d
- Threads: %d
`,
			r.Resources.CPUPercent,
			formatBytes(r.Resources.MemoryRSS),
			r.Resources.GoroutineCount,
			r.Resources.ThreadCount,
		)
	}

	return fmt.Sprintf(`
Benchmark Report: %s (workload=%s)
========================
Duration: %v
Workers: %d x %d iterations

Acquires:
- Completed: %d (%.2f/sec)
- Timeouts: %d
- Construction failures: %d
- Other failures: %d
- Work errors: %d

Acquire wait:
- P50: %v
- P95: %v
- P99: %v
- Max: %v

Pool:
- Live: %d (idle %d, leased %d)
- Reuses: %d
- Constructions: %d
- Discards: %d
%s`,
		r.Pool,
		r.Workload,
		r.Duration,
		r.Workers,
		r.IterationsPerWorker,
		r.Acquires,
		r.AcquiresPerSecond,
		r.Timeouts,
		r.ConstructionFailures,
		r.OtherFailures,
		r.WorkErrors,
		r.WaitP50,
		r.WaitP95,
		r.WaitP99,
		r.WaitMax,
		r.PoolStats.Live,
		r.PoolStats.Idle,
		r.PoolStats.Leased,
		r.PoolStats.Reuses,
		r.PoolStats.Constructions,
		r.PoolStats.Discards,
		resources,
	)
}

// WriteTo writes the report to w in the requested format ("text" or "json").
func (r *Report) WriteTo(w io.Writer, format string) error {
	if format == "json" {
		data, err := r.JSON()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to write report")
		}
		return nil
	}

	if _, err := io.WriteString(w, r.Text()); err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to write report")
	}
	return nil
}

// Save writes the report to path, creating or truncating the file.
func (r *Report) Save(path, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to create report file")
	}

	if err := r.WriteTo(f, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// formatBytes renders a byte count with a binary-unit suffix.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
