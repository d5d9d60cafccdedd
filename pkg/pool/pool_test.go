package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minggrim/ResourcePool/pkg/poolerrors"
	"github.com/minggrim/ResourcePool/pkg/testutil"
)

// countingFactory builds *int instances carrying their construction ordinal
// and counts invocations.
type countingFactory struct {
	calls int64
}

func (f *countingFactory) factory(_ context.Context) (*int, error) {
	n := int(atomic.AddInt64(&f.calls, 1))
	return &n, nil
}

func (f *countingFactory) count() int64 {
	return atomic.LoadInt64(&f.calls)
}

func newTestPool(t *testing.T, idleLimit, maxLimit int) (*Pool[*int], *countingFactory) {
	t.Helper()
	f := &countingFactory{}
	p, err := New(Config[*int]{
		Name:      "test",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   f.factory,
		Logger:    testutil.TestLogger(t),
	})
	testutil.RequireNoError(t, err, "New")
	return p, f
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config[int]{IdleLimit: 1, MaxLimit: 1}); err == nil {
		t.Fatal("expected error for nil factory")
	} else if !poolerrors.IsType(err, poolerrors.ErrorTypeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}

	f := func(context.Context) (int, error) { return 0, nil }
	if _, err := New(Config[int]{IdleLimit: -1, MaxLimit: 1, Factory: f}); err == nil {
		t.Fatal("expected error for negative idle limit")
	}
	if _, err := New(Config[int]{IdleLimit: 1, MaxLimit: -1, Factory: f}); err == nil {
		t.Fatal("expected error for negative max limit")
	}
}

func TestMaxLimitCoercion(t *testing.T) {
	p, _ := newTestPool(t, 5, 2)
	defer p.Close()
	if got := p.MaxLimit(); got != 5 {
		t.Fatalf("effective max = %d, want max(idle, max) = 5", got)
	}
	if got := p.IdleLimit(); got != 5 {
		t.Fatalf("idle limit = %d, want 5", got)
	}
}

func TestLazyConstruction(t *testing.T) {
	p, f := newTestPool(t, 2, 4)
	defer p.Close()

	if p.Size() != 0 || f.count() != 0 {
		t.Fatalf("pool constructed eagerly: size=%d calls=%d", p.Size(), f.count())
	}

	lease, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "Acquire")
	defer lease.Release()

	testutil.RequireEqual(t, 1, p.Size(), "size after first acquire")
	testutil.RequireEqual(t, int64(1), f.count(), "factory calls")
}

func TestReuseOfIdleInstance(t *testing.T) {
	p, f := newTestPool(t, 2, 4)
	defer p.Close()

	lease, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "first Acquire")
	first := lease.Value()
	lease.Release()

	lease, err = p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "second Acquire")
	defer lease.Release()

	if lease.Value() != first {
		t.Fatal("expected the parked instance back, got a different one")
	}
	testutil.RequireEqual(t, int64(1), f.count(), "factory calls after reuse")
	testutil.RequireEqual(t, 1, p.Size(), "live count after reuse")
}

// TestParkVersusDiscard pins the release policy: an instance is parked only
// when, after its removal, fewer than IdleLimit instances remain leased.
// The comparison is against the LEASED count, not the idle count.
func TestParkVersusDiscard(t *testing.T) {
	t.Run("parks under low lease pressure", func(t *testing.T) {
		p, f := newTestPool(t, 2, 3)
		defer p.Close()

		a, err := p.Acquire(context.Background())
		testutil.RequireNoError(t, err, "acquire a")
		b, err := p.Acquire(context.Background())
		testutil.RequireNoError(t, err, "acquire b")

		// Two leased; releasing one leaves one leased, below the idle
		// limit of two, so the instance parks and the live count holds.
		first := a.Value()
		a.Release()
		testutil.RequireEqual(t, 2, p.Size(), "live count after parking release")

		c, err := p.Acquire(context.Background())
		testutil.RequireNoError(t, err, "acquire c")
		if c.Value() != first {
			t.Fatal("expected reuse of the parked instance")
		}
		testutil.RequireEqual(t, int64(2), f.count(), "factory calls")

		c.Release()
		b.Release()
	})

	t.Run("discards under high lease pressure", func(t *testing.T) {
		var closed []int
		f := &countingFactory{}
		p, err := New(Config[*int]{
			IdleLimit: 1,
			MaxLimit:  3,
			Factory:   f.factory,
			Close:     func(v *int) { closed = append(closed, *v) },
			Logger:    testutil.TestLogger(t),
		})
		testutil.RequireNoError(t, err, "New")
		defer p.Close()

		a, _ := p.Acquire(context.Background())
		b, _ := p.Acquire(context.Background())
		c, _ := p.Acquire(context.Background())
		testutil.RequireEqual(t, 3, p.Size(), "live after three acquires")

		// Three leased; after removing one, two remain, at or above the
		// idle limit of one, so the instance is discarded.
		a.Release()
		testutil.RequireEqual(t, 2, p.Size(), "live after discarding release")
		testutil.RequireEqual(t, 1, len(closed), "close hook invocations")

		// Two leased; after removal one remains, still not below the
		// limit, so this discards too.
		b.Release()
		testutil.RequireEqual(t, 1, p.Size(), "live after second discard")

		// One leased; after removal zero remain, below the limit: parked.
		c.Release()
		testutil.RequireEqual(t, 1, p.Size(), "live after parking release")

		// The parked instance is the last released one.
		d, _ := p.Acquire(context.Background())
		if d.Value() != c.Value() {
			t.Fatal("expected the parked instance from the final release")
		}
		testutil.RequireEqual(t, int64(3), f.count(), "factory calls")
		d.Release()
	})
}

func TestAcquireTimeoutOnSaturatedPool(t *testing.T) {
	p, _ := newTestPool(t, 0, 1)
	defer p.Close()

	hold, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "saturating Acquire")
	defer hold.Release()

	before := p.Stats()
	const timeout = 60 * time.Millisecond
	start := time.Now()
	lease, err := p.AcquireTimeout(timeout)
	elapsed := time.Since(start)

	if lease != nil || err == nil {
		t.Fatal("expected timeout failure")
	}
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if got := StatusOf(err); got != StatusTimedOut {
		t.Fatalf("StatusOf = %v, want %v", got, StatusTimedOut)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause not preserved: %v", err)
	}
	if elapsed < timeout-10*time.Millisecond {
		t.Fatalf("returned after %v, before the %v timeout", elapsed, timeout)
	}

	after := p.Stats()
	if after.Live != before.Live || after.Leased != before.Leased || after.Idle != before.Idle {
		t.Fatalf("failed acquire mutated pool state: before=%+v after=%+v", before, after)
	}
	testutil.RequireEqual(t, before.Timeouts+1, after.Timeouts, "timeout counter")
}

func TestAcquireContextCancel(t *testing.T) {
	p, _ := newTestPool(t, 0, 1)
	defer p.Close()

	hold, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "saturating Acquire")
	defer hold.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if StatusOf(err) != StatusTimedOut {
			t.Fatalf("StatusOf = %v, want %v", StatusOf(err), StatusTimedOut)
		}
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cause not preserved: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled acquire did not return")
	}
}

func TestZeroTimeoutBlocksUntilRelease(t *testing.T) {
	p, _ := newTestPool(t, 1, 1)

	hold, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "saturating Acquire")

	var unblocked int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		lease, err := p.AcquireTimeout(0)
		if err != nil {
			t.Errorf("blocking acquire failed: %v", err)
			return
		}
		atomic.StoreInt32(&unblocked, 1)
		lease.Release()
	}()

	testutil.AssertNever(t, func() bool { return atomic.LoadInt32(&unblocked) == 1 },
		50*time.Millisecond, "acquire returned while pool was saturated")

	hold.Release()
	testutil.AssertEventually(t, func() bool { return atomic.LoadInt32(&unblocked) == 1 },
		2*time.Second, "release did not unblock the waiter")
	<-done
	p.Close()
}

func TestNegativeTimeout(t *testing.T) {
	p, _ := newTestPool(t, 1, 1)
	defer p.Close()

	// Capacity available: an expired deadline still succeeds because
	// availability is checked before the deadline.
	lease, err := p.AcquireTimeout(-time.Millisecond)
	testutil.RequireNoError(t, err, "negative timeout with capacity")
	lease.Release()

	hold, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "saturating Acquire")
	defer hold.Release()

	start := time.Now()
	_, err = p.AcquireTimeout(-time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("negative timeout blocked for %v", elapsed)
	}
}

func TestConstructionFailure(t *testing.T) {
	boom := errors.New("dial refused")
	fail := int32(1)
	p, err := New(Config[*int]{
		IdleLimit: 1,
		MaxLimit:  2,
		Factory: func(context.Context) (*int, error) {
			if atomic.LoadInt32(&fail) == 1 {
				return nil, boom
			}
			n := 7
			return &n, nil
		},
		Logger: testutil.TestLogger(t),
	})
	testutil.RequireNoError(t, err, "New")
	defer p.Close()

	lease, err := p.Acquire(context.Background())
	if lease != nil || err == nil {
		t.Fatal("expected construction failure")
	}
	if !errors.Is(err, ErrConstructionFailed) {
		t.Fatalf("expected ErrConstructionFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("factory cause not preserved: %v", err)
	}
	testutil.RequireEqual(t, 0, p.Size(), "size after failed construction")

	// The failed attempt must not leak capacity: once the factory
	// recovers, acquisition succeeds immediately.
	atomic.StoreInt32(&fail, 0)
	lease, err = p.AcquireTimeout(time.Second)
	testutil.RequireNoError(t, err, "acquire after factory recovery")
	lease.Release()

	stats := p.Stats()
	testutil.RequireEqual(t, int64(1), stats.ConstructionFailures, "failure counter")
}

func TestFactoryPanicBecomesUnknown(t *testing.T) {
	first := int32(1)
	p, err := New(Config[*int]{
		IdleLimit: 1,
		MaxLimit:  1,
		Factory: func(context.Context) (*int, error) {
			if atomic.CompareAndSwapInt32(&first, 1, 0) {
				panic("corrupt handshake state")
			}
			n := 1
			return &n, nil
		},
		Logger: testutil.TestLogger(t),
	})
	testutil.RequireNoError(t, err, "New")
	defer p.Close()

	_, err = p.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected failure from panicking factory")
	}
	if got := StatusOf(err); got != StatusUnknown {
		t.Fatalf("StatusOf = %v, want %v", got, StatusUnknown)
	}
	testutil.RequireEqual(t, 0, p.Size(), "size after recovered panic")

	lease, err := p.AcquireTimeout(time.Second)
	testutil.RequireNoError(t, err, "acquire after panic recovery")
	lease.Release()
}

// TestThreeWaitersTwoInstances is the canonical contention scenario: three
// goroutines block on a pool capped at two instances; only two instances
// are ever constructed, and one release admits exactly one waiter.
func TestThreeWaitersTwoInstances(t *testing.T) {
	p, f := newTestPool(t, 2, 2)
	defer p.Close()

	type result struct {
		lease *Lease[*int]
		err   error
	}
	results := make(chan result, 3)
	for i := 0; i < 3; i++ {
		go func() {
			lease, err := p.AcquireTimeout(0)
			results <- result{lease, err}
		}()
	}

	// Two acquisitions complete; the third stays blocked.
	var held []*Lease[*int]
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			testutil.RequireNoError(t, r.err, "acquire")
			held = append(held, r.lease)
		case <-time.After(2 * time.Second):
			t.Fatal("expected two immediate acquisitions")
		}
	}
	testutil.AssertNever(t, func() bool { return len(results) > 0 },
		50*time.Millisecond, "third acquire returned while pool was full")
	testutil.RequireEqual(t, int64(2), f.count(), "constructed instances")
	testutil.RequireEqual(t, 2, p.Size(), "live instances")

	// One release unblocks exactly the one remaining waiter.
	held[0].Release()
	select {
	case r := <-results:
		testutil.RequireNoError(t, r.err, "unblocked acquire")
		r.lease.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("release did not unblock the waiter")
	}

	testutil.RequireEqual(t, int64(2), f.count(), "instances constructed overall")
	held[1].Release()
}

// TestDiscardingReleaseAdmitsWaiter covers the other shape of waiter
// handoff: with a tight idle limit the release discards instead of parking,
// and the admitted waiter constructs a fresh instance.
func TestDiscardingReleaseAdmitsWaiter(t *testing.T) {
	p, f := newTestPool(t, 1, 2)
	defer p.Close()

	a, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "acquire a")
	b, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "acquire b")

	leases := make(chan *Lease[*int], 1)
	go func() {
		lease, err := p.AcquireTimeout(0)
		if err != nil {
			t.Errorf("blocked acquire failed: %v", err)
		}
		leases <- lease
	}()
	testutil.AssertNever(t, func() bool { return len(leases) > 0 },
		50*time.Millisecond, "acquire returned while pool was full")

	// One instance remains leased after removal, not below the idle limit
	// of one, so the release discards. The freed capacity still admits the
	// waiter, which finds no idle stock and constructs.
	a.Release()
	select {
	case lease := <-leases:
		testutil.RequireEqual(t, 2, p.Size(), "live after discard and rebuild")
		testutil.RequireEqual(t, int64(3), f.count(), "constructed instances")
		lease.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("discarding release did not admit the waiter")
	}
	b.Release()
}

// TestConcurrentInvariants hammers the pool from many goroutines and
// checks the capacity and accounting invariants afterwards.
func TestConcurrentInvariants(t *testing.T) {
	const (
		idleLimit  = 4
		maxLimit   = 8
		workers    = 32
		iterations = 200
	)
	p, _ := newTestPool(t, idleLimit, maxLimit)
	defer p.Close()

	var inUse, highwater int64
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < iterations; i++ {
				lease, err := p.Acquire(ctx)
				if err != nil {
					return fmt.Errorf("iteration %d: %w", i, err)
				}
				cur := atomic.AddInt64(&inUse, 1)
				for {
					hw := atomic.LoadInt64(&highwater)
					if cur <= hw || atomic.CompareAndSwapInt64(&highwater, hw, cur) {
						break
					}
				}
				if cur > maxLimit {
					lease.Release()
					return fmt.Errorf("%d instances leased concurrently, limit %d", cur, maxLimit)
				}
				atomic.AddInt64(&inUse, -1)
				lease.Release()
			}
			return nil
		})
	}
	testutil.RequireNoError(t, g.Wait(), "worker group")

	stats := p.Stats()
	if stats.Leased != 0 {
		t.Fatalf("leased = %d after full drain", stats.Leased)
	}
	if stats.Live != stats.Idle {
		t.Fatalf("live %d != idle %d after drain", stats.Live, stats.Idle)
	}
	if stats.Idle > idleLimit {
		t.Fatalf("idle %d exceeds idle limit %d", stats.Idle, idleLimit)
	}
	if stats.Live > maxLimit {
		t.Fatalf("live %d exceeds max limit %d", stats.Live, maxLimit)
	}
	if int(atomic.LoadInt64(&highwater)) > maxLimit {
		t.Fatalf("leased highwater %d exceeds max limit %d", highwater, maxLimit)
	}
	if stats.Acquires != stats.Reuses+stats.Constructions {
		t.Fatalf("acquires %d != reuses %d + constructions %d",
			stats.Acquires, stats.Reuses, stats.Constructions)
	}
	if int(stats.Constructions-stats.Discards) != stats.Live {
		t.Fatalf("constructions %d - discards %d != live %d",
			stats.Constructions, stats.Discards, stats.Live)
	}
	testutil.RequireEqual(t, int64(workers*iterations), stats.Acquires, "total acquires")
}

func TestCloseDiscardsIdle(t *testing.T) {
	var mu sync.Mutex
	var closed []*int
	f := &countingFactory{}
	p, err := New(Config[*int]{
		IdleLimit: 2,
		MaxLimit:  2,
		Factory:   f.factory,
		Close: func(v *int) {
			mu.Lock()
			closed = append(closed, v)
			mu.Unlock()
		},
		Logger: testutil.TestLogger(t),
	})
	testutil.RequireNoError(t, err, "New")

	a, _ := p.Acquire(context.Background())
	b, _ := p.Acquire(context.Background())
	parked := b.Value()
	b.Release() // one left leased, below the idle limit: parked

	p.Close()

	// The parked instance is discarded through the hook; the leased one
	// survives until its release.
	mu.Lock()
	got := append([]*int(nil), closed...)
	mu.Unlock()
	if len(got) != 1 || got[0] != parked {
		t.Fatalf("expected close to discard the parked instance, hook saw %v", got)
	}
	testutil.RequireEqual(t, 1, p.Size(), "live count after close")

	// Acquire after close fails fast with StatusClosed.
	_, err = p.Acquire(context.Background())
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := StatusOf(err); got != StatusClosed {
		t.Fatalf("StatusOf = %v, want %v", got, StatusClosed)
	}

	// Releasing a still-held lease after close discards rather than parks.
	a.Release()
	testutil.RequireEqual(t, 0, p.Size(), "live count after post-close release")
	mu.Lock()
	testutil.RequireEqual(t, 2, len(closed), "close hook invocations")
	mu.Unlock()

	// Close is idempotent.
	p.Close()
}

func TestCloseWakesBlockedWaiter(t *testing.T) {
	p, _ := newTestPool(t, 0, 1)

	hold, err := p.Acquire(context.Background())
	testutil.RequireNoError(t, err, "saturating Acquire")

	waiterErr := make(chan error, 1)
	go func() {
		_, err := p.AcquireTimeout(0)
		waiterErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	p.Close()
	select {
	case err := <-waiterErr:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close did not wake the blocked waiter")
	}

	hold.Release()
	testutil.RequireEqual(t, 0, p.Size(), "size after releasing into closed pool")
}

func TestStatsSnapshot(t *testing.T) {
	p, _ := newTestPool(t, 1, 2)
	defer p.Close()

	a, _ := p.Acquire(context.Background())
	b, _ := p.Acquire(context.Background())
	a.Release() // one still leased, at the idle limit: discarded
	b.Release() // none leased afterwards, below the limit: parked

	c, _ := p.Acquire(context.Background()) // reuse
	stats := p.Stats()
	testutil.RequireEqual(t, int64(3), stats.Acquires, "acquires")
	testutil.RequireEqual(t, int64(1), stats.Reuses, "reuses")
	testutil.RequireEqual(t, int64(2), stats.Constructions, "constructions")
	testutil.RequireEqual(t, int64(1), stats.Discards, "discards")
	testutil.RequireEqual(t, 1, stats.Live, "live")
	testutil.RequireEqual(t, 1, stats.Leased, "leased")
	testutil.RequireEqual(t, 0, stats.Idle, "idle")
	c.Release()
}

func TestZeroCapacityPoolTimesOut(t *testing.T) {
	p, f := newTestPool(t, 0, 0)
	defer p.Close()

	start := time.Now()
	_, err := p.AcquireTimeout(40 * time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("returned after %v, before the timeout", elapsed)
	}
	testutil.RequireEqual(t, int64(0), f.count(), "factory calls on zero-capacity pool")
}
