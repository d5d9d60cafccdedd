// Package pool provides a generic, bounded, thread-safe resource pool.
// Instances are constructed lazily through a user-supplied factory, lent
// out to callers through Lease handles, and recycled on release. The pool
// bounds both the number of simultaneously live instances and the number
// kept idle for reuse, amortizing expensive construction (connections,
// producers, encoders) across concurrent goroutines.
//
// The package provides:
//   - Generic type-safe pooling with Pool[T]
//   - Blocking acquisition with context/timeout support
//   - Exactly-once release through idempotent Lease handles
//   - A scoped Status taxonomy for acquisition failures
//   - Statistics for monitoring reuse, construction, and discard activity
//
// Example usage:
//
//	p, err := pool.New(pool.Config[*Conn]{
//	    IdleLimit: 2,
//	    MaxLimit:  8,
//	    Factory:   func(ctx context.Context) (*Conn, error) { return dial(ctx) },
//	    Close:     func(c *Conn) { c.Shutdown() },
//	})
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
//	lease.Value().Do(ctx)
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// Factory constructs one new resource instance. It is invoked by the pool
// whenever an acquisition finds no idle instance and the live count is below
// the maximum. Construction arguments are fixed at pool creation time by
// closing over them. The context is the acquiring caller's context; a
// factory that dials should honor it.
type Factory[T any] func(ctx context.Context) (T, error)

// Config carries the pool construction parameters.
type Config[T any] struct {
	// Name labels the pool in logs and metrics. Defaults to "pool".
	Name string

	// IdleLimit is the maximum number of instances kept parked for reuse.
	IdleLimit int

	// MaxLimit is the ceiling on simultaneously existing instances
	// (leased + idle). The effective ceiling is max(IdleLimit, MaxLimit).
	MaxLimit int

	// Factory constructs new instances. Required.
	Factory Factory[T]

	// Close, when set, is run on every discarded instance so real
	// resources shut down cleanly. Optional.
	Close func(T)

	// Logger receives debug-level pool activity. Optional; defaults to
	// a no-op logger.
	Logger *zap.Logger
}

// entry wraps one pool-managed instance. The pool keys its leased set by
// entry pointer, so identity is preserved across park/reuse cycles.
type entry[T any] struct {
	value T
}

// Pool is a bounded, lazily populated resource pool. It is safe for
// concurrent use; a single Pool is shared by its owner and every Lease it
// has issued.
//
// Each instance is in exactly one of three states: leased (checked out
// through a Lease), idle (parked for reuse), or discarded (closed and
// forgotten, live count decremented). Instances move
// nonexistent → leased → {idle ⇄ leased} → discarded; an instance is never
// created directly into the idle set and never leaves the discarded state.
type Pool[T any] struct {
	name      string
	idleLimit int
	maxLimit  int
	factory   Factory[T]
	closeFn   func(T)
	logger    *zap.Logger

	// permits is a counting semaphore with capacity maxLimit: sending
	// takes one capacity slot, receiving frees one. Exactly one permit is
	// held per leased instance; parked idle instances hold none. A waiter
	// therefore only blocks when the leased count equals maxLimit, which
	// implies the idle set is empty, so winning a permit always finds
	// either idle stock or construction headroom.
	permits chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	leased map[*entry[T]]struct{}
	idle   []*entry[T]
	live   int
	closed bool

	stats struct {
		acquires             int64
		reuses               int64
		constructions        int64
		constructionFailures int64
		discards             int64
		timeouts             int64
	}
}

// New creates a pool from cfg. No instances are constructed eagerly; the
// live count starts at zero and grows on demand up to the effective
// maximum, max(cfg.IdleLimit, cfg.MaxLimit).
//
// New fails if cfg.Factory is nil or either limit is negative.
func New[T any](cfg Config[T]) (*Pool[T], error) {
	if cfg.Factory == nil {
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "pool factory must not be nil")
	}
	if cfg.IdleLimit < 0 || cfg.MaxLimit < 0 {
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig,
			fmt.Sprintf("pool limits must not be negative: idle=%d max=%d", cfg.IdleLimit, cfg.MaxLimit))
	}

	name := cfg.Name
	if name == "" {
		name = "pool"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxLimit := cfg.MaxLimit
	if cfg.IdleLimit > maxLimit {
		maxLimit = cfg.IdleLimit
	}

	return &Pool[T]{
		name:      name,
		idleLimit: cfg.IdleLimit,
		maxLimit:  maxLimit,
		factory:   cfg.Factory,
		closeFn:   cfg.Close,
		logger:    logger.With(zap.String("pool", name)),
		permits:   make(chan struct{}, maxLimit),
		done:      make(chan struct{}),
		leased:    make(map[*entry[T]]struct{}),
	}, nil
}

// Acquire obtains one instance, blocking while the pool is at capacity.
// It returns an idle instance when one is parked, constructs a new one
// when the live count is below the maximum, and otherwise waits until a
// release frees capacity, ctx ends, or the pool closes.
//
// On failure the returned lease is nil and the error is a *Error whose
// Status reports the cause: StatusTimedOut when ctx expired or was
// canceled before capacity became available, StatusConstructionFailed when
// the factory returned an error, StatusClosed when the pool is closed, and
// StatusUnknown for a recovered factory panic. A failed acquisition leaves
// the pool state untouched. Use StatusOf or errors.Is with the package
// sentinels to classify failures.
func (p *Pool[T]) Acquire(ctx context.Context) (*Lease[T], error) {
	select {
	case <-p.done:
		return nil, &Error{Status: StatusClosed}
	default:
	}

	// Capacity is always preferred over an already-expired context, so a
	// zero or negative deadline still succeeds when a slot is free.
	select {
	case p.permits <- struct{}{}:
	default:
		select {
		case p.permits <- struct{}{}:
		case <-ctx.Done():
			atomic.AddInt64(&p.stats.timeouts, 1)
			p.logger.Debug("acquire timed out waiting for capacity")
			return nil, &Error{Status: StatusTimedOut, Cause: ctx.Err()}
		case <-p.done:
			return nil, &Error{Status: StatusClosed}
		}
	}

	// One permit held from here; every exit path below either hands it to
	// the returned lease or gives it back.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.permits
		return nil, &Error{Status: StatusClosed}
	}
	if n := len(p.idle); n > 0 {
		e := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.leased[e] = struct{}{}
		p.mu.Unlock()
		atomic.AddInt64(&p.stats.acquires, 1)
		atomic.AddInt64(&p.stats.reuses, 1)
		p.logger.Debug("reusing idle instance")
		return &Lease[T]{pool: p, entry: e}, nil
	}
	p.live++ // construction slot reserved; rolled back on failure
	p.mu.Unlock()

	v, err := p.construct(ctx)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		<-p.permits
		p.logger.Debug("instance construction failed", zap.Error(err))
		return nil, err
	}

	e := &entry[T]{value: v}
	p.mu.Lock()
	p.leased[e] = struct{}{}
	live := p.live
	p.mu.Unlock()
	atomic.AddInt64(&p.stats.acquires, 1)
	atomic.AddInt64(&p.stats.constructions, 1)
	p.logger.Debug("constructed new instance", zap.Int("live", live))
	return &Lease[T]{pool: p, entry: e}, nil
}

// AcquireTimeout is Acquire with a duration instead of a context. A zero
// timeout blocks indefinitely; a positive timeout waits until now+timeout
// and then fails with StatusTimedOut; a negative timeout only succeeds
// when capacity is immediately available.
func (p *Pool[T]) AcquireTimeout(timeout time.Duration) (*Lease[T], error) {
	if timeout == 0 {
		return p.Acquire(context.Background())
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Acquire(ctx)
}

// construct runs the factory without holding the pool mutex. Factory
// errors surface as StatusConstructionFailed; panics are recovered and
// surface as StatusUnknown so nothing unmodeled crosses the pool boundary.
func (p *Pool[T]) construct(ctx context.Context) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.stats.constructionFailures, 1)
			err = &Error{Status: StatusUnknown, Cause: fmt.Errorf("factory panic: %v", r)}
		}
	}()
	var ferr error
	v, ferr = p.factory(ctx)
	if ferr != nil {
		atomic.AddInt64(&p.stats.constructionFailures, 1)
		return v, &Error{Status: StatusConstructionFailed, Cause: ferr}
	}
	return v, nil
}

// release returns a leased entry to the pool. Unknown entries (double
// release, foreign instance) are ignored without touching any counts.
//
// Park-vs-discard intentionally compares the LEASED set size against
// IdleLimit, not the idle set size: the instance is parked only when, after
// removal, fewer than IdleLimit instances remain checked out. Under high
// concurrent lease pressure the pool therefore returns capacity instead of
// growing its idle reserve. Callers relying on reuse behavior depend on
// this exact comparison.
func (p *Pool[T]) release(e *entry[T]) {
	p.mu.Lock()
	if _, ok := p.leased[e]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.leased, e)
	if !p.closed && len(p.leased) < p.idleLimit {
		p.idle = append(p.idle, e)
		p.mu.Unlock()
		// Free the capacity slot only after the bookkeeping is done and
		// the lock dropped, so the woken waiter sees a settled state.
		<-p.permits
		return
	}
	p.live--
	p.mu.Unlock()
	<-p.permits
	atomic.AddInt64(&p.stats.discards, 1)
	p.logger.Debug("discarded instance")
	p.destroy(e.value)
}

func (p *Pool[T]) destroy(v T) {
	if p.closeFn != nil {
		p.closeFn(v)
	}
}

// Close shuts the pool down: parked idle instances are discarded through
// the Close hook, blocked acquirers are woken with StatusClosed, and
// subsequent acquires fail fast. Instances currently leased remain valid;
// releasing them after Close discards them. Close is idempotent and never
// blocks on waiters.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.live -= len(idle)
	p.mu.Unlock()

	close(p.done)
	for _, e := range idle {
		atomic.AddInt64(&p.stats.discards, 1)
		p.destroy(e.value)
	}
	p.logger.Debug("pool closed", zap.Int("idle_discarded", len(idle)))
}

// Size returns the current live instance count (leased + idle), a
// point-in-time snapshot.
func (p *Pool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Name returns the pool's label.
func (p *Pool[T]) Name() string { return p.name }

// IdleLimit returns the configured idle ceiling.
func (p *Pool[T]) IdleLimit() int { return p.idleLimit }

// MaxLimit returns the effective live-instance ceiling,
// max(Config.IdleLimit, Config.MaxLimit).
func (p *Pool[T]) MaxLimit() int { return p.maxLimit }

// Stats is a point-in-time snapshot of pool state and activity counters.
type Stats struct {
	// Live is the number of instances currently constructed (leased + idle).
	Live int `json:"live"`
	// Idle is the number of instances parked for reuse.
	Idle int `json:"idle"`
	// Leased is the number of instances currently checked out.
	Leased int `json:"leased"`
	// Acquires counts successful acquisitions.
	Acquires int64 `json:"acquires"`
	// Reuses counts acquisitions served from the idle set.
	Reuses int64 `json:"reuses"`
	// Constructions counts successful factory invocations.
	Constructions int64 `json:"constructions"`
	// ConstructionFailures counts factory errors and panics.
	ConstructionFailures int64 `json:"construction_failures"`
	// Discards counts instances permanently removed from the pool.
	Discards int64 `json:"discards"`
	// Timeouts counts acquisitions abandoned before capacity was available.
	Timeouts int64 `json:"timeouts"`
}

// Stats returns a snapshot of the pool's sizes and monotonic activity
// counters. Counter reads are individually atomic; the snapshot as a whole
// is advisory, like any concurrent observation of a live pool.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	live, idle, leased := p.live, len(p.idle), len(p.leased)
	p.mu.Unlock()
	return Stats{
		Live:                 live,
		Idle:                 idle,
		Leased:               leased,
		Acquires:             atomic.LoadInt64(&p.stats.acquires),
		Reuses:               atomic.LoadInt64(&p.stats.reuses),
		Constructions:        atomic.LoadInt64(&p.stats.constructions),
		ConstructionFailures: atomic.LoadInt64(&p.stats.constructionFailures),
		Discards:             atomic.LoadInt64(&p.stats.discards),
		Timeouts:             atomic.LoadInt64(&p.stats.timeouts),
	}
}
