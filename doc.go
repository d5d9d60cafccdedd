// Package resourcepool provides a generic, thread-safe, bounded resource
// pool for Go. It lazily constructs, lends out, and recycles instances of
// an arbitrary resource type, bounding both the number of live instances
// and the number kept idle for reuse.
//
// The pool amortizes expensive resource construction (database connections,
// producers, encoders, HTTP clients) across concurrent goroutines while
// enforcing a hard ceiling on total outstanding resources.
//
// # Quick Start
//
// Pool Postgres connections with a capacity of 16 and 4 kept warm:
//
//	import (
//	    "context"
//	    "github.com/minggrim/ResourcePool/pkg/factories"
//	)
//
//	p, err := factories.NewPostgresPool(factories.PostgresConfig{
//	    Host:     "localhost",
//	    Database: "orders",
//	    Username: "app",
//	    Password: "secret",
//	}, 4, 16)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	lease, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//
//	conn := lease.Value()
//	// use conn; Release parks it for the next caller
//
// Or pool any type directly with a factory closure:
//
//	p, err := pool.New(pool.Config[*zstd.Encoder]{
//	    Name:      "encoders",
//	    IdleLimit: 4,
//	    MaxLimit:  16,
//	    Factory: func(ctx context.Context) (*zstd.Encoder, error) {
//	        return zstd.NewWriter(nil)
//	    },
//	    Close: func(e *zstd.Encoder) { e.Close() },
//	})
//
// # Key Packages
//
//	pkg/pool          - The bounded pool core: Pool[T], Lease[T], Status
//	pkg/factories     - Ready-made factories for real resource kinds
//	pkg/poolerrors    - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus collectors for pool behavior
//	pkg/observability - OpenTelemetry tracing and pool monitors
//	pkg/config        - Configuration for the benchmark tool
//	internal/bench    - The workload runner behind the bench command
//	cmd/resourcepool  - CLI: version, bench, config
//
// # Semantics
//
// Acquisition blocks while the pool is at capacity, honoring the context
// deadline; a zero timeout with AcquireTimeout blocks indefinitely. Failed
// acquisitions return a nil lease and a status-typed error (TimedOut,
// ConstructionFailed, Closed, Unknown) that works with errors.Is and
// pool.StatusOf.
//
// Releases are idempotent and nil-safe, so `defer lease.Release()` is
// always correct after the error check. On release the instance is parked
// for reuse only while fewer instances than the idle limit remain leased;
// otherwise it is discarded through the optional Close hook.
//
// # The bench Tool
//
// The repository ships a benchmark harness for observing pool behavior
// under contention:
//
//	resourcepool bench --workers 16 --iterations 5000 --max-limit 8
//	resourcepool bench --workload avro --failure-rate 0.05 --report-format json
//	resourcepool config init
//
// Reports include throughput, wait percentiles, construction outcomes, and
// process resource usage.
package resourcepool
