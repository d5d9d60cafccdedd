package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/minggrim/ResourcePool/pkg/metrics"
	"github.com/minggrim/ResourcePool/pkg/pool"
)

// OTel instruments, created during Initialize. They stay nil until then;
// the record helpers tolerate that so traced pools work without the
// framework (spans become no-ops through the default tracer provider).
var (
	acquireCounter  metric.Int64Counter
	acquireWait     metric.Float64Histogram
	leasedInstances metric.Int64UpDownCounter
)

// OutcomeLabel maps an acquire status onto its metric label token. The
// same tokens label the Prometheus counters in pkg/metrics and the OTel
// instruments here, so dashboards can join the two series.
func OutcomeLabel(s pool.Status) string {
	switch s {
	case pool.StatusOK:
		return "ok"
	case pool.StatusTimedOut:
		return "timed_out"
	case pool.StatusConstructionFailed:
		return "construction_failed"
	case pool.StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// recordAcquire records one completed acquire call on the OTel instruments.
func recordAcquire(ctx context.Context, poolName string, status pool.Status, wait time.Duration) {
	if acquireCounter == nil {
		return
	}

	poolAttr := attribute.String("pool", poolName)
	acquireCounter.Add(ctx, 1, metric.WithAttributes(
		poolAttr,
		attribute.String("outcome", OutcomeLabel(status)),
	))
	acquireWait.Record(ctx, wait.Seconds(), metric.WithAttributes(poolAttr))

	if status == pool.StatusOK {
		leasedInstances.Add(ctx, 1, metric.WithAttributes(poolAttr))
	}
}

// recordRelease records one effective release on the OTel instruments.
func recordRelease(ctx context.Context, poolName string) {
	if leasedInstances == nil {
		return
	}
	leasedInstances.Add(ctx, -1, metric.WithAttributes(attribute.String("pool", poolName)))
}

// StatsSource is the slice of a pool the monitor samples. Every Pool
// instantiation satisfies it regardless of element type.
type StatsSource interface {
	Name() string
	Stats() pool.Stats
}

// PoolMonitor periodically samples a pool's Stats snapshot and publishes it
// to the Prometheus occupancy gauges and the acquire-rate gauge. One monitor
// watches one pool; Start launches the sampling goroutine and Stop tears it
// down after a final sample.
type PoolMonitor struct {
	source    StatsSource
	collector *metrics.Collector
	rate      *metrics.RateTracker
	interval  time.Duration
	logger    *zap.Logger

	lastAcquires int64

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPoolMonitor creates a monitor for source, sampling every interval.
// Intervals below one second are raised to one second to keep the gauge
// traffic bounded.
func NewPoolMonitor(source StatsSource, interval time.Duration) *PoolMonitor {
	if interval < time.Second {
		interval = time.Second
	}
	return &PoolMonitor{
		source:    source,
		collector: metrics.NewCollector(source.Name()),
		rate:      metrics.NewRateTracker(source.Name()),
		interval:  interval,
		logger:    zap.L().With(zap.String("pool", source.Name())),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the background sampling loop. Calling Start twice is a
// no-op.
func (m *PoolMonitor) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

func (m *PoolMonitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stopCh:
			// Final sample so the gauges reflect the terminal state.
			m.sample()
			return
		}
	}
}

// sample takes one Stats snapshot and publishes it.
func (m *PoolMonitor) sample() {
	stats := m.source.Stats()
	m.collector.SetOccupancy(stats.Live, stats.Idle, stats.Leased)

	delta := stats.Acquires - m.lastAcquires
	m.lastAcquires = stats.Acquires
	m.rate.Increment(delta)
	rate := m.rate.GetAndReset()

	m.logger.Debug("pool sample",
		zap.Int("live", stats.Live),
		zap.Int("idle", stats.Idle),
		zap.Int("leased", stats.Leased),
		zap.Int64("acquires", stats.Acquires),
		zap.Int64("reuses", stats.Reuses),
		zap.Int64("discards", stats.Discards),
		zap.Float64("acquire_rate", rate),
	)
}

// Stop halts the sampling loop and blocks until the final sample has been
// published. Safe to call more than once.
func (m *PoolMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	<-m.doneCh
}

// PoolObserver bundles the per-pool observability surfaces behind one
// handle: Prometheus collection, tracing, and a pre-labeled logger.
type PoolObserver struct {
	Collector *metrics.Collector
	Tracer    *PoolTracer
	Logger    *zap.Logger
}

// NewPoolObserver creates a unified observability handle for one pool.
func NewPoolObserver(poolName, resource string) *PoolObserver {
	return &PoolObserver{
		Collector: metrics.NewCollector(poolName),
		Tracer:    NewPoolTracer(poolName, resource),
		Logger: GetLogger().With(
			zap.String("pool", poolName),
			zap.String("resource", resource),
		),
	}
}

// TrackOperation runs fn inside a span, recording its duration and outcome
// on the span and the logs. Use it for pool-adjacent work (warmup, drain,
// workload batches); acquire itself goes through TraceAcquire.
func (po *PoolObserver) TrackOperation(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := po.Tracer.StartSpan(ctx, operation)
	defer span.End()

	err := fn(ctx)
	duration := span.Elapsed()

	if err != nil {
		span.SetAttribute("error", true)
		span.SetAttribute("error.message", err.Error())
		po.Logger.Error("operation failed",
			zap.String("operation", operation),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	po.Logger.Debug("operation completed",
		zap.String("operation", operation),
		zap.Duration("duration", duration),
	)
	return nil
}
