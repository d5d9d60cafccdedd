// Package bench implements the benchmark harness behind the bench
// command. A Runner builds a pool from the configured workload, drives
// concurrent acquire/use/release loops against it, and assembles a
// Report with outcome counts, wait percentiles, and process resource
// usage.
//
// Two workloads are available. The sleep workload pools a synthetic
// instance whose construction sleeps for the configured delay, which
// isolates pool behavior from real resource behavior. The avro workload
// pools goavro codecs and encodes a small record on every lease, which
// exercises the pool with genuine shared-object reuse.
package bench

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/linkedin/goavro/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/minggrim/ResourcePool/pkg/config"
	"github.com/minggrim/ResourcePool/pkg/factories"
	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/metrics"
	"github.com/minggrim/ResourcePool/pkg/observability"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// latencySampleSize bounds the wait samples kept for percentile math.
const latencySampleSize = 10000

// Runner executes one benchmark run described by a ToolConfig.
type Runner struct {
	cfg    *config.ToolConfig
	logger *zap.Logger
}

// NewRunner validates the configuration and prepares a runner.
func NewRunner(cfg *config.ToolConfig) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		logger: logger.Get().With(zap.String("component", "bench")),
	}, nil
}

// Run executes the configured workload and returns its report. The
// context cancels in-flight acquires; iterations completed before the
// cancellation are still reported.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	switch r.cfg.Workload.Kind {
	case "avro":
		return r.runAvro(ctx)
	default:
		return r.runSleep(ctx)
	}
}

// sleepInstance is the synthetic resource behind the default workload.
// The sequence number makes instances distinguishable in debug logs.
type sleepInstance struct {
	seq       int64
	createdAt time.Time
}

func (r *Runner) runSleep(ctx context.Context) (*Report, error) {
	var seq int64
	factory := func(ctx context.Context) (*sleepInstance, error) {
		if err := r.simulateConstruction(ctx); err != nil {
			return nil, err
		}
		inst := &sleepInstance{
			seq:       atomic.AddInt64(&seq, 1),
			createdAt: time.Now(),
		}
		r.logger.Debug("constructed sleep instance", zap.Int64("seq", inst.seq))
		return inst, nil
	}

	p, err := pool.New(pool.Config[*sleepInstance]{
		Name:      r.cfg.Name,
		IdleLimit: r.cfg.Pool.IdleLimit,
		MaxLimit:  r.cfg.Pool.EffectiveMaxLimit(),
		Factory:   factory,
		Logger:    r.logger,
	})
	if err != nil {
		return nil, err
	}

	use := func(*sleepInstance) error { return nil }
	return run(ctx, r, p, use)
}

// benchAvroSchema keeps the avro workload self-contained.
const benchAvroSchema = `{
	"type": "record",
	"name": "BenchEvent",
	"fields": [
		{"name": "seq", "type": "long"},
		{"name": "payload", "type": "string"}
	]
}`

func (r *Runner) runAvro(ctx context.Context) (*Report, error) {
	inner := factories.NewAvroCodecFactory(factories.AvroConfig{Schema: benchAvroSchema})

	factory := func(ctx context.Context) (*goavro.Codec, error) {
		if err := r.simulateConstruction(ctx); err != nil {
			return nil, err
		}
		return inner(ctx)
	}

	p, err := pool.New(pool.Config[*goavro.Codec]{
		Name:      r.cfg.Name,
		IdleLimit: r.cfg.Pool.IdleLimit,
		MaxLimit:  r.cfg.Pool.EffectiveMaxLimit(),
		Factory:   factory,
		Logger:    r.logger,
	})
	if err != nil {
		return nil, err
	}

	var seq int64
	use := func(codec *goavro.Codec) error {
		record := map[string]interface{}{
			"seq":     atomic.AddInt64(&seq, 1),
			"payload": "resourcepool-bench",
		}
		if _, err := codec.BinaryFromNative(nil, record); err != nil {
			return poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to encode bench record")
		}
		return nil
	}
	return run(ctx, r, p, use)
}

// simulateConstruction applies the configured construction delay and
// failure injection shared by both workloads.
func (r *Runner) simulateConstruction(ctx context.Context) error {
	workload := r.cfg.Workload
	if workload.ConstructDelay > 0 {
		select {
		case <-time.After(workload.ConstructDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if workload.FailureRate > 0 && rand.Float64() < workload.FailureRate {
		return poolerrors.New(poolerrors.ErrorTypeInternal, "injected construction failure")
	}
	return nil
}

// run drives the acquire/use/release loop across the configured workers
// and assembles the report. It is a free function because methods cannot
// introduce type parameters.
func run[T any](ctx context.Context, r *Runner, p *pool.Pool[T], use func(T) error) (*Report, error) {
	benchCfg := r.cfg.Bench
	obs := r.cfg.Observability
	workers := benchCfg.GetWorkers()

	collector := metrics.NewCollector(p.Name())
	latency := metrics.NewLatencyTracker(latencySampleSize)

	var monitor *observability.PoolMonitor
	if obs.EnableMetrics {
		monitor = observability.NewPoolMonitor(p, obs.MetricsInterval)
		monitor.Start()
	}

	var progress *observability.AcquireProgress
	if obs.EnableLogging {
		opLogger := observability.NewStructuredLogger(p.Name(), r.cfg.Workload.Kind).WithOperation("bench")
		opLogger.LogStart("benchmark starting",
			zap.Int("workers", workers),
			zap.Int("iterations_per_worker", benchCfg.Iterations),
			zap.Int("total_iterations", benchCfg.TotalIterations()),
		)
		progress = observability.NewAcquireProgress(opLogger)
		progress.SetLogInterval(10 * time.Second)
	}

	var tracer *observability.PoolTracer
	if obs.EnableTracing {
		tracer = observability.NewPoolTracer(p.Name(), r.cfg.Workload.Kind)
	}

	resources, rmErr := NewResourceMonitor()
	if rmErr != nil {
		r.logger.Warn("resource monitoring unavailable", zap.Error(rmErr))
	}

	var (
		acquires       int64
		timeouts       int64
		constructFails int64
		otherFails     int64
		workErrs       int64
	)

	startedAt := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < benchCfg.Iterations; i++ {
				// A stop request takes effect once the in-flight
				// acquire resolves, bounded by the acquire timeout.
				if err := gctx.Err(); err != nil {
					return err
				}

				var (
					lease *pool.Lease[T]
					err   error
				)
				begin := time.Now()
				switch {
				case tracer != nil:
					actx := gctx
					cancel := func() {}
					if benchCfg.AcquireTimeout > 0 {
						actx, cancel = context.WithTimeout(gctx, benchCfg.AcquireTimeout)
					}
					lease, err = observability.TraceAcquire(actx, tracer, p)
					cancel()
				case benchCfg.AcquireTimeout > 0:
					lease, err = p.AcquireTimeout(benchCfg.AcquireTimeout)
				default:
					lease, err = p.Acquire(gctx)
				}
				wait := time.Since(begin)

				status := pool.StatusOf(err)
				collector.ObserveAcquire(observability.OutcomeLabel(status), wait)

				if err != nil {
					switch status {
					case pool.StatusTimedOut:
						atomic.AddInt64(&timeouts, 1)
					case pool.StatusConstructionFailed:
						atomic.AddInt64(&constructFails, 1)
					default:
						atomic.AddInt64(&otherFails, 1)
					}
					if progress != nil {
						progress.RecordError()
					}
					continue
				}

				atomic.AddInt64(&acquires, 1)
				latency.Record(wait)
				if progress != nil {
					progress.RecordAcquire(wait)
					progress.LogProgress()
				}

				if err := use(lease.Value()); err != nil {
					atomic.AddInt64(&workErrs, 1)
					r.logger.Debug("workload error", zap.Error(err))
				}
				if hold := r.cfg.Workload.HoldTime; hold > 0 {
					time.Sleep(hold)
				}

				if tracer != nil {
					observability.TraceRelease(gctx, tracer, lease)
				} else {
					lease.Release()
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	duration := time.Since(startedAt)

	if monitor != nil {
		monitor.Stop()
	}
	if progress != nil {
		progress.LogFinal()
	}

	// Snapshot before Close so the report reflects the steady state the
	// run produced rather than the drained pool.
	stats := p.Stats()
	p.Close()

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) && !errors.Is(waitErr, context.DeadlineExceeded) {
		return nil, waitErr
	}

	report := &Report{
		Tool:                 r.cfg.Name,
		Version:              r.cfg.Version,
		Pool:                 p.Name(),
		Workload:             r.cfg.Workload.Kind,
		StartedAt:            startedAt,
		Duration:             duration,
		Workers:              workers,
		IterationsPerWorker:  benchCfg.Iterations,
		Acquires:             atomic.LoadInt64(&acquires),
		Timeouts:             atomic.LoadInt64(&timeouts),
		ConstructionFailures: atomic.LoadInt64(&constructFails),
		OtherFailures:        atomic.LoadInt64(&otherFails),
		WorkErrors:           atomic.LoadInt64(&workErrs),
		PoolStats:            stats,
	}
	if duration > 0 {
		report.AcquiresPerSecond = float64(report.Acquires) / duration.Seconds()
	}
	if latency.Len() > 0 {
		report.WaitP50 = latency.GetPercentile(50)
		report.WaitP95 = latency.GetPercentile(95)
		report.WaitP99 = latency.GetPercentile(99)
		report.WaitMax = latency.GetPercentile(100)
	}
	if resources != nil {
		report.Resources = resources.Snapshot()
	}

	r.logger.Info("benchmark complete",
		zap.Duration("duration", duration),
		zap.Int64("acquires", report.Acquires),
		zap.Int64("timeouts", report.Timeouts),
		zap.Int64("construction_failures", report.ConstructionFailures),
		zap.Float64("acquires_per_second", report.AcquiresPerSecond),
	)
	return report, nil
}
