package buffer

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/payload"
	"github.com/c360/pixelflow/pkg/future"
)

// entry is an occupied slot. A nil *entry is an empty slot, so a slot can
// never hold a payload without its future or the reverse.
type entry struct {
	img *payload.Image
	fut *Result
}

// BoundedQueue is a fixed-capacity FIFO of images guarded by one mutex and
// two counting semaphores. empty counts free slots, filled counts occupied
// ones. The mutex is never held while waiting on either semaphore.
type BoundedQueue struct {
	mu       sync.Mutex
	slots    []*entry
	capacity int
	head     int // next slot to pop
	tail     int // next slot to push
	count    int

	empty  *semaphore.Weighted
	filled *semaphore.Weighted

	stats   *Statistics   // ALWAYS initialized for observability
	metrics *queueMetrics // Optional Prometheus metrics
	opts    *queueOptions
}

var _ Queue = (*BoundedQueue)(nil)

// New creates a queue with room for capacity items.
// It fails with errors.ErrAllocationFailed if capacity is below 1 or if
// requested metrics cannot be registered.
func New(capacity int, options ...Option) (*BoundedQueue, error) {
	if capacity < 1 {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: capacity %d", errors.ErrAllocationFailed, capacity),
			"BoundedQueue", "New", "validate capacity")
	}

	opts := applyOptions(options...)

	var metrics *queueMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newQueueMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapFatal(errors.Join(errors.ErrAllocationFailed, err),
				"BoundedQueue", "New", "metrics registration")
		}
	}

	q := &BoundedQueue{
		slots:    make([]*entry, capacity),
		capacity: capacity,
		empty:    semaphore.NewWeighted(int64(capacity)),
		filled:   semaphore.NewWeighted(int64(capacity)),
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}

	// filled starts at zero permits available
	if !q.filled.TryAcquire(int64(capacity)) {
		return nil, errors.WrapFatal(errors.ErrAllocationFailed, "BoundedQueue", "New", "initialize filled semaphore")
	}

	return q, nil
}

// Push enqueues a deep copy of img and returns its pending future.
// It blocks while the queue is full. The caller keeps ownership of img.
func (q *BoundedQueue) Push(img *payload.Image) (*Result, error) {
	return q.PushContext(context.Background(), img)
}

// PushContext is Push with cancellation. If ctx ends before a slot frees up
// the queue is left unchanged.
func (q *BoundedQueue) PushContext(ctx context.Context, img *payload.Image) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, errors.Wrap(err, "BoundedQueue", "Push", "validate payload")
	}

	if !q.empty.TryAcquire(1) {
		q.stats.PushWait()
		if q.metrics != nil {
			q.metrics.recordPushWait()
		}
		q.opts.logger.Debug("queue full, producer waiting", "item", img.Name)

		if err := q.empty.Acquire(ctx, 1); err != nil {
			return nil, errors.Wrap(err, "BoundedQueue", "Push", "wait for free slot")
		}
	}

	fut := future.New[*payload.Image]()
	e := &entry{img: img.Clone(), fut: fut}

	q.mu.Lock()
	if q.slots[q.tail] != nil {
		q.mu.Unlock()
		panic(fmt.Sprintf("buffer: slot %d occupied at tail", q.tail))
	}
	q.slots[q.tail] = e
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	size := q.count
	q.stats.Push(int64(size), int64(len(e.img.Pix)))
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.recordPush(size, q.capacity)
	}

	q.filled.Release(1)
	return fut, nil
}

// Pop dequeues the oldest item, waiting at most timeout for one to arrive.
// On timeout it returns errors.ErrTimedOut and consumes nothing. The caller
// takes ownership of the image and must resolve the future.
func (q *BoundedQueue) Pop(timeout time.Duration) (*payload.Image, *Result, error) {
	if timeout <= 0 {
		if !q.filled.TryAcquire(1) {
			q.recordTimeout()
			return nil, nil, errors.ErrTimedOut
		}
		img, fut := q.take()
		return img, fut, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return q.PopContext(ctx)
}

// PopContext dequeues the oldest item, waiting until ctx ends.
// A ctx deadline is reported as errors.ErrTimedOut; cancellation as ctx.Err().
func (q *BoundedQueue) PopContext(ctx context.Context) (*payload.Image, *Result, error) {
	if err := q.filled.Acquire(ctx, 1); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			q.recordTimeout()
			return nil, nil, errors.ErrTimedOut
		}
		return nil, nil, errors.Wrap(err, "BoundedQueue", "Pop", "wait for item")
	}

	img, fut := q.take()
	return img, fut, nil
}

// take removes the head entry. The caller must hold one filled permit.
func (q *BoundedQueue) take() (*payload.Image, *Result) {
	q.mu.Lock()
	e := q.slots[q.head]
	if e == nil {
		q.mu.Unlock()
		panic(fmt.Sprintf("buffer: slot %d empty at head", q.head))
	}
	q.slots[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	q.count--
	size := q.count
	q.stats.Pop(int64(size), int64(len(e.img.Pix)))
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.recordPop(size, q.capacity)
	}

	q.empty.Release(1)
	return e.img, e.fut
}

func (q *BoundedQueue) recordTimeout() {
	q.stats.PopTimeout()
	if q.metrics != nil {
		q.metrics.recordPopTimeout()
	}
}

// Snapshot returns a per-slot view taken under the queue lock. Each future's
// own lock is taken briefly while the queue lock is held, one at a time.
func (q *BoundedQueue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := Snapshot{
		Size:     q.count,
		Capacity: q.capacity,
		Head:     q.head,
		Tail:     q.tail,
		Slots:    make([]SlotView, q.capacity),
		Taken:    time.Now(),
	}

	for i, e := range q.slots {
		view := SlotView{Index: i}
		if e != nil {
			view.State = SlotPending
			if e.fut.IsResolved() {
				view.State = SlotResolved
			}
			view.Name = e.img.Name
			view.ProducerID = e.img.ProducerID
			view.ItemID = e.img.ID
			view.Future = e.fut
		}
		snap.Slots[i] = view
	}

	q.stats.Snapshot()
	if q.metrics != nil {
		q.metrics.recordSnapshot()
	}

	return snap
}

// Len returns the number of occupied slots.
func (q *BoundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Capacity returns the fixed slot count.
func (q *BoundedQueue) Capacity() int {
	return q.capacity
}

// IsFull reports whether every slot is occupied.
func (q *BoundedQueue) IsFull() bool {
	return q.Len() == q.capacity
}

// IsEmpty reports whether no slot is occupied.
func (q *BoundedQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Stats returns queue statistics (always available for observability).
func (q *BoundedQueue) Stats() *Statistics {
	return q.stats
}
