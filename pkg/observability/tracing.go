// Package observability provides monitoring, tracing, and logging around
// resource pools. It wires OpenTelemetry tracing and metrics, structured zap
// logging, and periodic pool-occupancy sampling into one Initialize call.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/minggrim/ResourcePool/pkg/pool"
)

var (
	// Global tracer instance
	tracer trace.Tracer

	// Global meter instance
	meter metric.Meter

	// Global logger instance
	logger *zap.Logger

	// Initialization lock
	initOnce sync.Once
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	ExporterType   string // "stdout"
	ExporterURL    string
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Namespace       string
	Subsystem       string
	PrometheusPush  bool
	PushGateway     string
	PushInterval    time.Duration
	HistogramBounds []float64
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       zapcore.Level
	Format      string // "json", "console"
	OutputPaths []string
	ErrorPaths  []string
	Sampling    *zap.SamplingConfig
	Development bool
}

// ObservabilityConfig contains all observability configuration
type ObservabilityConfig struct {
	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// Initialize sets up the observability framework
func Initialize(config ObservabilityConfig) error {
	var err error

	initOnce.Do(func() {
		// Initialize tracing
		err = initTracing(config.Tracing)
		if err != nil {
			return
		}

		// Initialize metrics
		err = initMetrics(config.Metrics)
		if err != nil {
			return
		}

		// Initialize logging
		err = initLogging(config.Logging)
		if err != nil {
			return
		}

		// Set up global propagators
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})

	return err
}

// GetTracer returns the global tracer
func GetTracer() trace.Tracer {
	return tracer
}

// GetMeter returns the global meter
func GetMeter() metric.Meter {
	return meter
}

// GetLogger returns the global logger. Before Initialize runs it falls
// back to the zap global, so logging facades built early stay safe.
func GetLogger() *zap.Logger {
	if logger == nil {
		return zap.L()
	}
	return logger
}

// Span wraps a tracing span, batching attribute writes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan creates a new span under the global tracer. Before Initialize
// runs, the default tracer provider is used, which yields no-op spans.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	t := tracer
	if t == nil {
		t = otel.Tracer("resourcepool")
	}
	ctx, span := t.Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched until End)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetStatus sets the span status
func (s *Span) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// Elapsed returns the time since the span started
func (s *Span) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// End flushes batched attributes and ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// PoolTracer provides pool-specific tracing utilities. Spans are named
// pool.<name>.<operation> and carry the pool name and resource kind.
type PoolTracer struct {
	poolName string
	resource string
	tracer   trace.Tracer
}

// NewPoolTracer creates a tracer for one pool. The resource parameter names
// the kind of instance the pool manages ("postgres", "zstd", ...).
func NewPoolTracer(poolName, resource string) *PoolTracer {
	return &PoolTracer{
		poolName: poolName,
		resource: resource,
		tracer:   tracer,
	}
}

// StartSpan starts a pool-specific span
func (pt *PoolTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	operationName := fmt.Sprintf("pool.%s.%s", pt.poolName, operation)
	ctx, span := NewSpan(ctx, operationName)

	span.SetAttribute("pool.name", pt.poolName)
	span.SetAttribute("pool.resource", pt.resource)
	span.SetAttribute("pool.operation", operation)

	return ctx, span
}

// TraceAcquire acquires from p inside an "acquire" span, recording the wait
// time and outcome on both the span and the OTel instruments. The returned
// lease and error are exactly what p.Acquire would have returned.
func TraceAcquire[T any](ctx context.Context, pt *PoolTracer, p *pool.Pool[T]) (*pool.Lease[T], error) {
	ctx, span := pt.StartSpan(ctx, "acquire")
	defer span.End()

	lease, err := p.Acquire(ctx)
	wait := span.Elapsed()

	status := pool.StatusOf(err)
	span.SetAttribute("pool.acquire.outcome", OutcomeLabel(status))
	span.SetAttribute("pool.acquire.wait_ms", wait.Seconds()*1000)
	recordAcquire(ctx, pt.poolName, status, wait)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return lease, nil
}

// TraceRelease releases a lease inside a "release" span. Safe on nil and
// already-released leases, like Release itself.
func TraceRelease[T any](ctx context.Context, pt *PoolTracer, lease *pool.Lease[T]) {
	ctx, span := pt.StartSpan(ctx, "release")
	defer span.End()

	redundant := lease.Released()
	span.SetAttribute("pool.release.redundant", redundant)
	lease.Release()
	if !redundant {
		recordRelease(ctx, pt.poolName)
	}
	span.SetStatus(codes.Ok, "")
}
