package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/minggrim/ResourcePool/pkg/pool"
)

func TestObservabilityFramework(t *testing.T) {
	// Initialize observability with test config
	config := ObservabilityConfig{
		Tracing: TracingConfig{
			ServiceName:    "test-resourcepool",
			ServiceVersion: "1.0.0-test",
			Environment:    "test",
			SamplingRate:   1.0, // Sample everything for tests
			ExporterType:   "stdout",
			BatchTimeout:   1 * time.Second,
			MaxExportBatch: 100,
			MaxQueueSize:   1000,
		},
		Metrics: MetricsConfig{
			Namespace: "test_pool",
			Subsystem: "test",
		},
		Logging: LoggingConfig{
			Level:       zapcore.DebugLevel,
			Format:      "json",
			Development: true,
		},
	}

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	// Test basic components are available
	if GetTracer() == nil {
		t.Error("Tracer should not be nil after initialization")
	}

	if GetMeter() == nil {
		t.Error("Meter should not be nil after initialization")
	}

	if GetLogger() == nil {
		t.Error("Logger should not be nil after initialization")
	}
}

func TestOutcomeLabel(t *testing.T) {
	cases := []struct {
		status pool.Status
		want   string
	}{
		{pool.StatusOK, "ok"},
		{pool.StatusTimedOut, "timed_out"},
		{pool.StatusConstructionFailed, "construction_failed"},
		{pool.StatusClosed, "closed"},
		{pool.StatusUnknown, "unknown"},
	}

	for _, tc := range cases {
		if got := OutcomeLabel(tc.status); got != tc.want {
			t.Errorf("OutcomeLabel(%v) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestPoolTracer(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = zapcore.DebugLevel

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	p, err := pool.New(pool.Config[int]{
		Name:      "traced",
		IdleLimit: 1,
		MaxLimit:  1,
		Factory: func(ctx context.Context) (int, error) {
			return 42, nil
		},
	})
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	tracer := NewPoolTracer("traced", "test")
	ctx := context.Background()

	// Successful traced acquire and release
	lease, err := TraceAcquire(ctx, tracer, p)
	if err != nil {
		t.Fatalf("TraceAcquire should succeed on an empty pool: %v", err)
	}
	if lease.Value() != 42 {
		t.Errorf("Leased value = %d, want 42", lease.Value())
	}
	TraceRelease(ctx, tracer, lease)
	if !lease.Released() {
		t.Error("Lease should be released after TraceRelease")
	}

	// Releasing again must stay a no-op
	TraceRelease(ctx, tracer, lease)

	// Exhaust capacity, then a canceled acquire must report a timeout
	held, err := TraceAcquire(ctx, tracer, p)
	if err != nil {
		t.Fatalf("TraceAcquire should succeed: %v", err)
	}
	defer TraceRelease(ctx, tracer, held)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	lease, err = TraceAcquire(canceled, tracer, p)
	if lease != nil {
		t.Error("TraceAcquire should return a nil lease on failure")
	}
	if pool.StatusOf(err) != pool.StatusTimedOut {
		t.Errorf("StatusOf(err) = %v, want StatusTimedOut", pool.StatusOf(err))
	}
}

func TestPoolMonitor(t *testing.T) {
	config := DefaultConfig()
	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	p, err := pool.New(pool.Config[string]{
		Name:      "monitored",
		IdleLimit: 2,
		MaxLimit:  4,
		Factory: func(ctx context.Context) (string, error) {
			return "instance", nil
		},
	})
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	monitor := NewPoolMonitor(p, time.Second)
	monitor.Start()
	monitor.Start() // second Start is a no-op

	// Generate some activity for the final sample to pick up
	for i := 0; i < 5; i++ {
		lease, err := p.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		lease.Release()
	}

	// Stop publishes a final sample and waits for the loop to exit
	monitor.Stop()
	monitor.Stop() // second Stop is a no-op

	if monitor.lastAcquires != 5 {
		t.Errorf("Final sample saw %d acquires, want 5", monitor.lastAcquires)
	}
}

func TestStructuredLogger(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = zapcore.DebugLevel

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	logger := NewStructuredLogger("postgres", "connection")

	ctx := context.Background()

	// Test context logger
	ctxLogger := logger.WithContext(ctx)
	ctxLogger.Info("test message with context")

	// Test operation logger
	opLogger := logger.WithOperation("warmup")
	opLogger.LogStart("starting warmup")
	opLogger.LogProgress("constructing instances", 0.5)
	opLogger.LogComplete("warmup completed")

	// Test error logging
	testErr := errors.New("test error")
	opLogger.LogError("warmup failed", testErr)
}

func TestAcquireProgress(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = zapcore.DebugLevel

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	logger := NewStructuredLogger("postgres", "connection")
	opLogger := logger.WithOperation("bench")

	progress := NewAcquireProgress(opLogger)
	progress.SetLogInterval(1 * time.Millisecond) // Fast logging for tests

	// Simulate acquire activity
	progress.RecordAcquire(100 * time.Microsecond)
	progress.RecordAcquire(200 * time.Microsecond)
	progress.RecordError()

	// Force a progress log
	progress.LogProgress()

	// Log final stats
	progress.LogFinal()

	if progress.acquiresTotal != 2 {
		t.Errorf("acquiresTotal = %d, want 2", progress.acquiresTotal)
	}
	if progress.errorsTotal != 1 {
		t.Errorf("errorsTotal = %d, want 1", progress.errorsTotal)
	}
}

func TestPerformanceLogger(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = zapcore.DebugLevel

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	perfLogger := NewPerformanceLogger()

	// Test throughput logging
	perfLogger.LogThroughput("acquire", 1000.0, 800.0) // Normal
	perfLogger.LogThroughput("acquire", 500.0, 800.0)  // Degraded
	perfLogger.LogThroughput("acquire", 200.0, 800.0)  // Critical

	// Test latency logging
	perfLogger.LogLatency("acquire", 1*time.Millisecond, 2*time.Millisecond) // Normal
	perfLogger.LogLatency("acquire", 3*time.Millisecond, 2*time.Millisecond) // Degraded
	perfLogger.LogLatency("acquire", 5*time.Millisecond, 2*time.Millisecond) // Critical

	// Test memory usage logging
	perfLogger.LogMemoryUsage("pool", 1024*1024, 2*1024*1024)   // Normal
	perfLogger.LogMemoryUsage("pool", 3*1024*1024, 2*1024*1024) // High
	perfLogger.LogMemoryUsage("pool", 5*1024*1024, 2*1024*1024) // Critical
}

func TestPoolObserver(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = zapcore.DebugLevel

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	observer := NewPoolObserver("postgres", "connection")

	ctx := context.Background()

	// Test successful operation
	err = observer.TrackOperation(ctx, "warmup", func(ctx context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Errorf("TrackOperation should not return error for successful operation: %v", err)
	}

	// Test failed operation
	testError := errors.New("test error")
	err = observer.TrackOperation(ctx, "warmup", func(ctx context.Context) error {
		time.Sleep(3 * time.Millisecond)
		return testError
	})
	if !errors.Is(err, testError) {
		t.Errorf("TrackOperation should return the original error: got %v, want %v", err, testError)
	}
}

func TestErrorReporter(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = zapcore.DebugLevel

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	errorReporter := NewErrorReporter()
	ctx := context.Background()
	testErr := errors.New("test error")

	errorReporter.ReportError(ctx, testErr, "factory", "construct", map[string]interface{}{
		"host": "localhost",
		"port": 5432,
	})
}

func TestShutdown(t *testing.T) {
	config := DefaultConfig()
	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	// Test graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = Shutdown(ctx)
	if err != nil {
		t.Errorf("Shutdown should not return error: %v", err)
	}
}
