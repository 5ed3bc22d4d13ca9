// Package future provides a single-assignment completion handle.
//
// A Future starts Pending and moves to Resolved exactly once. Any number of
// goroutines may wait on it; all of them observe the same value and error.
package future

import (
	"context"
	"sync"
	"time"

	"github.com/c360/pixelflow/errors"
)

// State is the resolution state of a Future.
type State int

const (
	// Pending means no result has been stored yet.
	Pending State = iota
	// Resolved means a result is stored and waiters have been released.
	Resolved
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Future is a completion handle carrying one value and one error.
type Future[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    State
	value    T
	err      error
	done     chan struct{}
	resolves int
}

// New creates a pending Future.
func New[T any]() *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Resolve stores the result and wakes every waiter.
// It returns false if the Future was already resolved; the stored result is
// then kept and the call only counts toward Resolutions.
func (f *Future[T]) Resolve(value T, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resolves++
	if f.state == Resolved {
		return false
	}
	f.value = value
	f.err = err
	f.state = Resolved
	close(f.done)
	f.cond.Broadcast()
	return true
}

// Await blocks until the Future is resolved and returns its result.
func (f *Future[T]) Await() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.state != Resolved {
		f.cond.Wait()
	}
	return f.value, f.err
}

// AwaitContext waits for resolution or for ctx to end.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		if f.IsResolved() {
			return f.result()
		}
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitTimeout waits at most d. It returns errors.ErrTimedOut if the Future
// is still pending when d expires.
func (f *Future[T]) AwaitTimeout(d time.Duration) (T, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.result()
	case <-timer.C:
		if f.IsResolved() {
			return f.result()
		}
		var zero T
		return zero, errors.ErrTimedOut
	}
}

// IsResolved reports whether a result is stored. It never blocks on resolution.
func (f *Future[T]) IsResolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == Resolved
}

// State returns the current state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done returns a channel closed on the first resolution.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Resolutions returns how many times Resolve has been called.
func (f *Future[T]) Resolutions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolves
}

func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}
