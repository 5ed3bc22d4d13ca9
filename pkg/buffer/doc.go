// Package buffer provides the bounded image queue that couples producers to
// consumers, with per-item completion futures, built-in statistics and
// optional Prometheus metrics.
//
// # Overview
//
// BoundedQueue is a fixed-capacity FIFO ring of image entries. Each entry
// pairs a deep copy of the pushed image with a future.Future that the popping
// consumer resolves once the item is processed. Producers can keep the future
// and wait on it; observers can inspect it through Snapshot.
//
// # Quick Start
//
//	q, err := buffer.New(10)
//	if err != nil {
//		return err // errors.ErrAllocationFailed
//	}
//
//	// Producer side
//	fut, err := q.Push(img)
//
//	// Consumer side
//	img, fut, err := q.Pop(2 * time.Second)
//	if errors.IsTimeout(err) {
//		// nothing arrived, re-check exit condition
//	}
//	fut.Resolve(result, nil)
//
// # Flow Control
//
// Two counting semaphores from golang.org/x/sync/semaphore track free and
// occupied slots. Push takes a free-slot permit before locking and gives an
// occupied-slot permit after unlocking. Pop does the reverse. The mutex only
// guards the ring indices, the count and the slot contents, and is never held
// while waiting.
//
// Push waits without bound unless called through PushContext. Pop always has
// a bound: a timeout, or a ctx deadline through PopContext. A timed out Pop
// returns errors.ErrTimedOut and consumes nothing.
//
// # Ownership
//
// Push copies the payload, so the caller keeps its original. Pop moves the
// stored copy out without copying, and the caller becomes its owner.
//
// # Snapshots
//
// Snapshot reads every slot under the queue lock, taking each future's lock
// briefly to classify the slot as empty, pending or resolved. It never
// changes queue state and is safe to call from a polling observer.
//
// # Observability
//
// Statistics are always on and available via q.Stats(): pushes, pops,
// snapshots, blocked pushes, pop timeouts, current and max size, and queued
// pixel bytes. Prometheus export is enabled with WithMetrics:
//
//	q, err := buffer.New(10, buffer.WithMetrics(registry, "queue"))
//
// Registration failure makes New fail with errors.ErrAllocationFailed.
package buffer
