package pool

import (
	"context"
	"testing"
)

func newBenchPool(b *testing.B, idleLimit, maxLimit int) *Pool[*struct{}] {
	b.Helper()
	p, err := New(Config[*struct{}]{
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory: func(context.Context) (*struct{}, error) {
			return &struct{}{}, nil
		},
	})
	if err != nil {
		b.Fatal(err)
	}
	return p
}

func BenchmarkAcquireRelease(b *testing.B) {
	p := newBenchPool(b, 1, 1)
	defer p.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lease, err := p.Acquire(ctx)
		if err != nil {
			b.Fatal(err)
		}
		lease.Release()
	}
}

func BenchmarkAcquireReleaseParallel(b *testing.B) {
	p := newBenchPool(b, 16, 64)
	defer p.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			lease, err := p.Acquire(ctx)
			if err != nil {
				b.Fatal(err)
			}
			lease.Release()
		}
	})
	b.StopTimer()

	stats := p.Stats()
	if stats.Acquires > 0 {
		b.ReportMetric(float64(stats.Reuses)/float64(stats.Acquires), "reuse-ratio")
	}
}

// BenchmarkAcquireContended runs far more goroutines than capacity so most
// acquisitions wait for a release.
func BenchmarkAcquireContended(b *testing.B) {
	p := newBenchPool(b, 2, 4)
	defer p.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			lease, err := p.Acquire(ctx)
			if err != nil {
				b.Fatal(err)
			}
			lease.Release()
		}
	})
}
