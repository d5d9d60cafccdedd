package pool

import "sync/atomic"

// Lease is the handle to one leased instance. It carries the obligation to
// return the instance to the issuing pool exactly once; Release is
// idempotent, so however many copies of the pointer exist, the first
// Release wins and the rest are no-ops. A nil lease (the result of a failed
// acquisition) releases as a no-op, which keeps the usual pattern correct:
//
//	lease, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//
// A Lease grants exclusive ownership of its instance: the pool never
// issues two leases over the same live instance. Ownership is transferred
// by handing the pointer over; the previous holder must simply stop using
// it. The lease itself must not be shared between goroutines without
// external synchronization.
type Lease[T any] struct {
	pool     *Pool[T]
	entry    *entry[T]
	released int32
}

// Value returns the leased instance. It must only be called between a
// successful acquisition and Release; calling it on a nil (failed) lease
// panics.
func (l *Lease[T]) Value() T {
	return l.entry.value
}

// Release returns the instance to the pool, which parks it for reuse or
// discards it according to the pool's idle policy. Only the first call has
// any effect; later calls, and calls on a nil lease, are no-ops. Release
// never blocks and never fails.
func (l *Lease[T]) Release() {
	if l == nil {
		return
	}
	if !atomic.CompareAndSwapInt32(&l.released, 0, 1) {
		return
	}
	l.pool.release(l.entry)
}

// Released reports whether the lease has already been returned.
func (l *Lease[T]) Released() bool {
	return l == nil || atomic.LoadInt32(&l.released) != 0
}
