// Package metrics provides performance tracking and observability for
// resource pools using Prometheus metrics. It offers collectors for pool
// occupancy, acquisition latency, construction outcomes, and reuse rates.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for pool operations
//   - Acquire-rate and latency tracking utilities
//   - Thread-safe metric recording
//   - Automatic metric registration
//
// # Basic Usage
//
//	// Record acquire outcomes
//	metrics.Acquires.WithLabelValues("postgres", "ok").Inc()
//
//	// Track acquisition latency
//	timer := metrics.NewTimer("acquire")
//	lease, err := p.Acquire(ctx)
//	metrics.WaitDuration.WithLabelValues("postgres").Observe(float64(timer.Stop().Nanoseconds()))
//
//	// Track acquire rate
//	tracker := metrics.NewRateTracker("postgres")
//	for i := 0; i < n; i++ {
//	    lease, _ := p.Acquire(ctx)
//	    lease.Release()
//	    tracker.Increment(1)
//	}
//	rate := tracker.GetAndReset()
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total acquires)
// Gauge: Values that can go up or down (e.g., idle instances)
// Histogram: Distribution of values (e.g., wait-time percentiles)
//
// # Performance Considerations
//
// Metrics are designed to have minimal overhead:
//   - Lock-free atomic operations where possible
//   - Efficient histogram buckets
//   - Lazy evaluation of expensive calculations
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides a centralized metrics collection interface for one pool.
// It wraps the package-level Prometheus metrics with the pool name pre-bound
// and provides convenience methods for recording pool events. Each pool
// should create its own collector.
type Collector struct {
	name          string                   // Pool name for labeling
	acquires      *prometheus.CounterVec   // Acquire attempts by outcome
	waitDuration  *prometheus.HistogramVec // Acquire wait distribution
	constructions *prometheus.CounterVec   // Factory invocations by status
	reuses        *prometheus.CounterVec   // Idle instance reuses
	discards      *prometheus.CounterVec   // Destroyed instances
	live          *prometheus.GaugeVec     // Live instance gauge
	idle          *prometheus.GaugeVec     // Idle instance gauge
	leased        *prometheus.GaugeVec     // Leased instance gauge
	startTime     time.Time                // Collector creation time
	mu            sync.RWMutex             // Protects internal state
}

// NewCollector creates a new metrics collector for a pool.
// The name parameter identifies the pool in metrics labels.
//
// Example:
//
//	collector := metrics.NewCollector("postgres")
//
//	// Use throughout pool lifecycle
//	collector.ObserveAcquire("ok", wait)
//	collector.SetOccupancy(live, idle, leased)
func NewCollector(name string) *Collector {
	return &Collector{
		name:          name,
		acquires:      Acquires,
		waitDuration:  WaitDuration,
		constructions: Constructions,
		reuses:        Reuses,
		discards:      Discards,
		live:          LiveInstances,
		idle:          IdleInstances,
		leased:        LeasedInstances,
		startTime:     time.Now(),
	}
}

// GetAll returns all current metric values
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"pool":       c.name,
		"start_time": c.startTime,
		"uptime":     time.Since(c.startTime).Seconds(),
	}
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// ObserveAcquire records one acquire attempt and its wait time.
// The outcome label should be a stable token such as "ok" or "timed_out".
func (c *Collector) ObserveAcquire(outcome string, wait time.Duration) {
	c.acquires.WithLabelValues(c.name, outcome).Inc()
	c.waitDuration.WithLabelValues(c.name).Observe(float64(wait.Nanoseconds()))
}

// RecordConstruction records one factory invocation
func (c *Collector) RecordConstruction(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.constructions.WithLabelValues(c.name, status).Inc()
}

// RecordReuse records one idle-instance reuse
func (c *Collector) RecordReuse() {
	c.reuses.WithLabelValues(c.name).Inc()
}

// RecordDiscard records one destroyed instance
func (c *Collector) RecordDiscard() {
	c.discards.WithLabelValues(c.name).Inc()
}

// SetOccupancy updates the live, idle, and leased gauges from a
// pool snapshot.
func (c *Collector) SetOccupancy(live, idle, leased int) {
	c.live.WithLabelValues(c.name).Set(float64(live))
	c.idle.WithLabelValues(c.name).Set(float64(idle))
	c.leased.WithLabelValues(c.name).Set(float64(leased))
}

var (
	// Acquires tracks the total number of acquire attempts across all pools.
	// Labels: pool (pool name), outcome (ok/timed_out/construction_failed/closed/unknown)
	//
	// Example:
	//	metrics.Acquires.WithLabelValues("postgres", "ok").Inc()
	Acquires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_acquires_total",
			Help: "Total number of acquire attempts",
		},
		[]string{"pool", "outcome"},
	)

	// WaitDuration tracks the distribution of acquire wait times in nanoseconds.
	// The histogram buckets are optimized for sub-millisecond wait tracking.
	// Labels: pool
	//
	// Example:
	//	start := time.Now()
	//	lease, _ := p.Acquire(ctx)
	//	metrics.WaitDuration.WithLabelValues("postgres").
	//	    Observe(float64(time.Since(start).Nanoseconds()))
	WaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pool_acquire_wait_nanoseconds",
			Help: "Acquire wait time in nanoseconds",
			Buckets: []float64{
				100,    // 100ns - Uncontended fast path
				1000,   // 1μs - Idle reuse under light contention
				10000,  // 10μs - Scheduler handoff
				100000, // 100μs - Short waiter queues
				1e6,    // 1ms - Cheap construction
				1e7,    // 10ms - Network construction
				1e8,    // 100ms - Slow construction
				1e9,    // 1s - Saturated pool waits
			},
		},
		[]string{"pool"},
	)

	// Constructions tracks factory invocations.
	// Labels: pool, status (success/failure)
	Constructions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_constructions_total",
			Help: "Total number of factory invocations",
		},
		[]string{"pool", "status"},
	)

	// Reuses tracks acquisitions satisfied from idle stock
	Reuses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_reuses_total",
			Help: "Total number of idle instance reuses",
		},
		[]string{"pool"},
	)

	// Discards tracks destroyed instances
	Discards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_discards_total",
			Help: "Total number of discarded instances",
		},
		[]string{"pool"},
	)

	// LiveInstances tracks instances currently owned by a pool
	LiveInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pool_live_instances",
			Help: "Number of live instances",
		},
		[]string{"pool"},
	)

	// IdleInstances tracks parked instances awaiting reuse
	IdleInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pool_idle_instances",
			Help: "Number of idle instances",
		},
		[]string{"pool"},
	)

	// LeasedInstances tracks instances currently held by callers
	LeasedInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pool_leased_instances",
			Help: "Number of leased instances",
		},
		[]string{"pool"},
	)

	// AcquireRate tracks acquires per second
	AcquireRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pool_acquire_rate_per_second",
			Help: "Current acquire rate in operations per second",
		},
		[]string{"pool"},
	)

	// ProcessRSSBytes tracks resident memory of the benchmarking process
	ProcessRSSBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pool_process_rss_bytes",
			Help: "Resident set size of the process in bytes",
		},
	)

	// ProcessCPUPercent tracks CPU usage of the benchmarking process
	ProcessCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pool_process_cpu_percent",
			Help: "CPU usage of the process in percent",
		},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("acquire")
//	lease, _ := p.Acquire(ctx)
//	duration := timer.Stop()
//	logger.Info("acquired", zap.Duration("duration", duration))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	return duration
}

// RateTracker tracks acquire throughput (operations per second) over time
// windows. It automatically updates the AcquireRate gauge when queried.
// Thread-safe for concurrent use.
type RateTracker struct {
	mu        sync.Mutex
	count     int64     // Operations since last reset
	lastReset time.Time // Time of last reset
	pool      string    // Pool name
}

// NewRateTracker creates a new rate tracker for a pool.
// The pool parameter identifies the pool and is used as a metric label.
//
// Example:
//
//	tracker := metrics.NewRateTracker("postgres")
//	for i := 0; i < n; i++ {
//	    lease, _ := p.Acquire(ctx)
//	    lease.Release()
//	    tracker.Increment(1)
//	}
//	rate := tracker.GetAndReset()
//	logger.Info("rate", zap.Float64("acquires_per_sec", rate))
func NewRateTracker(pool string) *RateTracker {
	return &RateTracker{
		lastReset: time.Now(),
		pool:      pool,
	}
}

// Increment adds n to the operation count. Safe for concurrent use.
func (t *RateTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current rate (operations/second),
// updates the Prometheus gauge, resets the counter, and returns
// the calculated rate. Safe for concurrent use.
func (t *RateTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	rate := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	// Update Prometheus metric
	AcquireRate.WithLabelValues(t.pool).Set(rate)

	return rate
}

// LatencyTracker provides percentile tracking
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	maxSize int
}

// NewLatencyTracker creates a new latency tracker
func NewLatencyTracker(maxSize int) *LatencyTracker {
	return &LatencyTracker{
		values:  make([]time.Duration, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) >= l.maxSize {
		// Remove oldest
		l.values = l.values[1:]
	}
	l.values = append(l.values, d)
}

// Len returns the number of recorded values
func (l *LatencyTracker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.values)
}

// GetPercentile returns the percentile value (0-100) from a sorted copy
// of the recorded samples.
func (l *LatencyTracker) GetPercentile(p float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(l.values))
	copy(sorted, l.values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)) * p / 100)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
