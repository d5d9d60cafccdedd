// Package config provides the configuration system for the resourcepool
// tool. It defines a single ToolConfig structure shared by the CLI and the
// benchmark harness, ensuring consistent configuration across commands.
//
// The configuration is organized into logical sections:
//   - Pool: Idle and maximum capacity limits
//   - Workload: Synthetic factory behavior for benchmark runs
//   - Bench: Worker counts, iteration counts, report output
//   - Observability: Metrics, tracing, logging
//
// Example usage:
//
//	cfg := config.NewToolConfig("bench")
//	cfg.Pool.MaxLimit = 32
//	cfg.Bench.Workers = 16
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"runtime"
	"time"

	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// ToolConfig is the unified configuration structure for the resourcepool
// tool. It provides the options the bench and config commands understand,
// organized into logical sections.
type ToolConfig struct {
	// Name identifies the pool instance in logs and metrics
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Pool settings control capacity limits
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Workload settings shape the synthetic factory used by bench runs
	Workload WorkloadConfig `yaml:"workload" json:"workload"`

	// Bench settings control the benchmark harness
	Bench BenchConfig `yaml:"bench" json:"bench"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// PoolConfig contains the capacity settings handed to the pool.
type PoolConfig struct {
	// IdleLimit caps the number of instances parked for reuse
	IdleLimit int `yaml:"idle_limit" json:"idle_limit"`
	// MaxLimit caps simultaneously existing instances; values below
	// IdleLimit are raised to it
	MaxLimit int `yaml:"max_limit" json:"max_limit"`
}

// WorkloadConfig describes the synthetic resource used by benchmark runs.
// The factory sleeps for ConstructDelay to imitate an expensive resource,
// and fails a FailureRate fraction of constructions to exercise error
// accounting.
type WorkloadConfig struct {
	// Kind selects the synthetic resource (sleep, avro)
	Kind string `yaml:"kind" json:"kind"`
	// ConstructDelay is the simulated construction cost
	ConstructDelay time.Duration `yaml:"construct_delay" json:"construct_delay"`
	// FailureRate is the fraction of constructions that fail (0.0-1.0)
	FailureRate float64 `yaml:"failure_rate" json:"failure_rate"`
	// HoldTime is how long each worker holds a lease before releasing
	HoldTime time.Duration `yaml:"hold_time" json:"hold_time"`
}

// BenchConfig contains the benchmark harness settings.
type BenchConfig struct {
	// Workers defines the number of concurrent workers
	Workers int `yaml:"workers" json:"workers"`
	// Iterations is the acquire/release count per worker
	Iterations int `yaml:"iterations" json:"iterations"`
	// AcquireTimeout bounds each acquire; zero blocks indefinitely
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`
	// ReportFormat selects report output (text, json)
	ReportFormat string `yaml:"report_format" json:"report_format"`
	// ReportPath writes the report to a file instead of stdout when set
	ReportPath string `yaml:"report_path" json:"report_path"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates distributed tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// EnableLogging controls logging output
	EnableLogging bool `yaml:"enable_logging" json:"enable_logging"`
	// MetricsInterval sets how often occupancy gauges are refreshed
	MetricsInterval time.Duration `yaml:"metrics_interval" json:"metrics_interval"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// NewToolConfig creates a new ToolConfig with sensible defaults.
// It initializes all sections with values that produce a meaningful
// benchmark on a typical developer machine. Commands override these
// defaults from flags and config files as needed.
//
// Example:
//
//	cfg := config.NewToolConfig("bench")
//	cfg.Workload.ConstructDelay = 50 * time.Millisecond // Pricier factory
func NewToolConfig(name string) *ToolConfig {
	return &ToolConfig{
		Name:    name,
		Version: "1.0.0",
		Pool: PoolConfig{
			IdleLimit: 4,
			MaxLimit:  16,
		},
		Workload: WorkloadConfig{
			Kind:           "sleep",
			ConstructDelay: 5 * time.Millisecond,
			FailureRate:    0,
			HoldTime:       time.Millisecond,
		},
		Bench: BenchConfig{
			Workers:        runtime.NumCPU(),
			Iterations:     1000,
			AcquireTimeout: 5 * time.Second,
			ReportFormat:   "text",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			EnableLogging:     true,
			MetricsInterval:   30 * time.Second,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable
// ranges. Commands should call this after loading configuration to catch
// errors early.
//
// Returns an error if validation fails, nil otherwise.
func (tc *ToolConfig) Validate() error {
	if tc.Name == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "name is required")
	}
	if tc.Pool.IdleLimit < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "idle_limit cannot be negative").
			WithDetail("idle_limit", tc.Pool.IdleLimit)
	}
	if tc.Pool.MaxLimit < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "max_limit cannot be negative").
			WithDetail("max_limit", tc.Pool.MaxLimit)
	}
	if tc.Workload.Kind != "sleep" && tc.Workload.Kind != "avro" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "workload kind must be sleep or avro").
			WithDetail("kind", tc.Workload.Kind)
	}
	if tc.Workload.FailureRate < 0 || tc.Workload.FailureRate > 1 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "failure_rate must be between 0 and 1").
			WithDetail("failure_rate", tc.Workload.FailureRate)
	}
	if tc.Workload.ConstructDelay < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "construct_delay cannot be negative")
	}
	if tc.Workload.HoldTime < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "hold_time cannot be negative")
	}
	if tc.Bench.Workers <= 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "workers must be positive").
			WithDetail("workers", tc.Bench.Workers)
	}
	if tc.Bench.Iterations <= 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "iterations must be positive").
			WithDetail("iterations", tc.Bench.Iterations)
	}
	if tc.Bench.AcquireTimeout < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "acquire_timeout cannot be negative")
	}
	if tc.Bench.ReportFormat != "text" && tc.Bench.ReportFormat != "json" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "report_format must be text or json").
			WithDetail("report_format", tc.Bench.ReportFormat)
	}
	if tc.Observability.TracingSampleRate < 0 || tc.Observability.TracingSampleRate > 1 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "tracing_sample_rate must be between 0 and 1").
			WithDetail("tracing_sample_rate", tc.Observability.TracingSampleRate)
	}
	return nil
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (b *BenchConfig) GetWorkers() int {
	if b.Workers <= 0 {
		return runtime.NumCPU()
	}
	return b.Workers
}

// EffectiveMaxLimit returns the max limit the pool will actually enforce
func (p *PoolConfig) EffectiveMaxLimit() int {
	if p.MaxLimit < p.IdleLimit {
		return p.IdleLimit
	}
	return p.MaxLimit
}

// IsJSON returns true if the report should be rendered as JSON
func (b *BenchConfig) IsJSON() bool {
	return b.ReportFormat == "json"
}

// TotalIterations returns the acquire count across all workers
func (b *BenchConfig) TotalIterations() int {
	return b.GetWorkers() * b.Iterations
}
