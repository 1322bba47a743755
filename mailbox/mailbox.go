// Package mailbox implements a single-slot, overwrite-on-write channel
// between a producer and a single consumer.
//
// Philosophy: "Drop frames, never queue. Latency > Completeness."
//
// Design:
//   - Non-blocking Put() (~1µs latency)
//   - Blocking Receive() with mailbox semantics (efficient waiting)
//   - Overwrite policy: a new value replaces an unconsumed one, the
//     producer never blocks on the consumer
//   - Drop tracking for operational monitoring
package mailbox

import (
	"sync"
	"sync/atomic"
)

// Box is a capacity-1 overwrite mailbox from one producer to one consumer.
//
// Thread-safety: Put and Drops are safe for concurrent use; Receive MUST be
// called from a single consumer goroutine.
type Box[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  T
	full   bool // true while value is unconsumed
	closed bool

	drops atomic.Uint64
}

// New returns a new empty Box.
func New[T any]() *Box[T] {
	b := &Box[T]{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Put stores a value in the slot, overwriting any unconsumed value
// (overwrite policy, tracked in Drops). Non-blocking: always returns
// immediately. After Close, Put is a no-op.
func (b *Box[T]) Put(v T) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.full {
		b.drops.Add(1)
	}
	b.value = v
	b.full = true
	b.cond.Signal()
	b.mu.Unlock()
}

// Receive blocks until a value is available or the box is closed.
// Returns ok=false on close; the consumer should exit its loop.
func (b *Box[T]) Receive() (v T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.full && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		var zero T
		return zero, false
	}
	v = b.value
	var zero T
	b.value = zero // release reference, mark consumed
	b.full = false
	return v, true
}

// Close wakes a blocked Receive and makes subsequent Puts no-ops.
// Idempotent.
func (b *Box[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Drops returns the number of values overwritten before consumption.
// Safe for concurrent use.
func (b *Box[T]) Drops() uint64 {
	return b.drops.Load()
}
