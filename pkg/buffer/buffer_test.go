package buffer

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/metric"
	"github.com/c360/pixelflow/payload"
)

func newImage(name string, producer int) *payload.Image {
	img := payload.New(name, 2, 1, 3)
	img.ProducerID = producer
	return img
}

func mustQueue(t *testing.T, capacity int, opts ...Option) *BoundedQueue {
	t.Helper()
	q, err := New(capacity, opts...)
	require.NoError(t, err, "Failed to create queue")
	return q
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		q, err := New(capacity)
		assert.Nil(t, q)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrAllocationFailed)
		assert.True(t, errors.IsFatal(err))
	}
}

func TestBoundedQueueBasicOperations(t *testing.T) {
	q := mustQueue(t, 3)

	assert.Equal(t, 3, q.Capacity())
	assert.True(t, q.IsEmpty())

	for _, name := range []string{"first", "second", "third"} {
		fut, err := q.Push(newImage(name, 1))
		require.NoError(t, err)
		require.NotNil(t, fut)
		assert.False(t, fut.IsResolved())
	}

	assert.True(t, q.IsFull())
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"first", "second", "third"} {
		img, fut, err := q.Pop(time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, img.Name)
		require.NotNil(t, fut)
		fut.Resolve(img, nil)
	}

	assert.True(t, q.IsEmpty())

	stats := q.Stats()
	assert.Equal(t, int64(3), stats.Pushes())
	assert.Equal(t, int64(3), stats.Pops())
	assert.Equal(t, int64(3), stats.MaxSize())
	assert.Equal(t, int64(0), stats.QueuedBytes())
}

func TestPush_CopiesPayload(t *testing.T) {
	q := mustQueue(t, 1)

	original := newImage("a.png", 1)
	original.Pix[0] = 10

	_, err := q.Push(original)
	require.NoError(t, err)

	// The producer still owns its original and may reuse it
	original.Pix[0] = 200

	img, _, err := q.Pop(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte(10), img.Pix[0])
	assert.Equal(t, original.ID, img.ID)
}

func TestPush_RejectsInvalidPayload(t *testing.T) {
	q := mustQueue(t, 2)

	fut, err := q.Push(&payload.Image{Name: "empty", Width: 1, Height: 1, Channels: 3})
	assert.Nil(t, fut)
	assert.ErrorIs(t, err, errors.ErrInvalidPayload)
	assert.Equal(t, 0, q.Len())

	_, err = q.Push(nil)
	assert.ErrorIs(t, err, errors.ErrInvalidPayload)
}

func TestPush_BlocksUntilPop(t *testing.T) {
	q := mustQueue(t, 2)

	_, err := q.Push(newImage("A", 1))
	require.NoError(t, err)
	_, err = q.Push(newImage("B", 1))
	require.NoError(t, err)

	var pushed atomic.Bool
	done := make(chan error, 1)
	go func() {
		_, err := q.Push(newImage("C", 1))
		pushed.Store(true)
		done <- err
	}()

	// Wait a bit to ensure push is blocked
	time.Sleep(50 * time.Millisecond)
	assert.False(t, pushed.Load(), "push into a full queue must block")
	assert.Equal(t, 2, q.Len())

	img, _, err := q.Pop(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "A", img.Name)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after pop")
	}

	for _, want := range []string{"B", "C"} {
		img, _, err := q.Pop(time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, img.Name)
	}

	assert.Equal(t, int64(1), q.Stats().PushWaits())
}

func TestPop_TimesOutOnEmptyQueue(t *testing.T) {
	q := mustQueue(t, 4)

	start := time.Now()
	img, fut, err := q.Pop(100 * time.Millisecond)
	elapsed := time.Since(start)

	assert.Nil(t, img)
	assert.Nil(t, fut)
	assert.True(t, errors.IsTimeout(err))
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(1), q.Stats().PopTimeouts())

	// A timed out pop consumed no permit
	_, err = q.Push(newImage("late", 1))
	require.NoError(t, err)
	img, _, err = q.Pop(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "late", img.Name)
}

func TestPop_ZeroTimeoutDoesNotBlock(t *testing.T) {
	q := mustQueue(t, 1)

	_, _, err := q.Pop(0)
	assert.True(t, errors.IsTimeout(err))

	_, err = q.Push(newImage("x", 1))
	require.NoError(t, err)
	img, _, err := q.Pop(0)
	require.NoError(t, err)
	assert.Equal(t, "x", img.Name)
}

func TestPopContext_Cancellation(t *testing.T) {
	q := mustQueue(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := q.PopContext(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.IsTimeout(err))
}

func TestTwoProducersFillQueue(t *testing.T) {
	q := mustQueue(t, 10)

	var wg sync.WaitGroup
	for p := 1; p <= 2; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				_, err := q.Push(newImage(fmt.Sprintf("p%d-%d", p, i), p))
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 10, q.Len())
	assert.True(t, q.IsFull())

	// An eleventh push blocks until a slot frees up
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := q.PushContext(ctx, newImage("eleventh", 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 10, q.Len())

	// Per-producer order is preserved in the pop order
	next := map[int]int{1: 0, 2: 0}
	for i := 0; i < 10; i++ {
		img, _, err := q.Pop(time.Second)
		require.NoError(t, err)
		want := fmt.Sprintf("p%d-%d", img.ProducerID, next[img.ProducerID])
		assert.Equal(t, want, img.Name)
		next[img.ProducerID]++
	}
	assert.Equal(t, 0, q.Len())
}

func TestManyProducers_GlobalArrivalOrder(t *testing.T) {
	const (
		producers = 8
		perTask   = 8
	)
	q := mustQueue(t, producers*perTask)

	var wg sync.WaitGroup
	for p := 1; p <= producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perTask; i++ {
				_, err := q.Push(newImage(fmt.Sprintf("p%d-%d", p, i), p))
				assert.NoError(t, err)
				runtime.Gosched()
			}
		}(p)
	}
	wg.Wait()

	arrived := q.Snapshot().Occupied()
	require.Len(t, arrived, producers*perTask)

	// Pops follow the single arrival order, not any per-producer grouping
	for i, want := range arrived {
		img, fut, err := q.Pop(time.Second)
		require.NoError(t, err)
		assert.Equal(t, want.Name, img.Name, "pop %d", i)
		assert.Equal(t, want.ProducerID, img.ProducerID, "pop %d", i)
		assert.Same(t, want.Future, fut, "pop %d", i)
	}
	assert.True(t, q.IsEmpty())
}

func TestConcurrentProducersConsumers(t *testing.T) {
	const (
		producers = 4
		consumers = 4
		perProd   = 50
		capacity  = 5
	)

	q := mustQueue(t, capacity)

	var (
		futMu   sync.Mutex
		futures []*Result
	)

	stop := make(chan struct{})
	var violations atomic.Int64
	var samplerWG sync.WaitGroup
	samplerWG.Add(1)
	go func() {
		defer samplerWG.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := q.Snapshot()
			if snap.Size < 0 || snap.Size > capacity || len(snap.Occupied()) != snap.Size {
				violations.Add(1)
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()

	var prodWG sync.WaitGroup
	for p := 0; p < producers; p++ {
		prodWG.Add(1)
		go func(p int) {
			defer prodWG.Done()
			for i := 0; i < perProd; i++ {
				fut, err := q.Push(newImage(fmt.Sprintf("%d-%d", p, i), p))
				if !assert.NoError(t, err) {
					return
				}
				futMu.Lock()
				futures = append(futures, fut)
				futMu.Unlock()
			}
		}(p)
	}

	var consumed atomic.Int64
	var consWG sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consWG.Add(1)
		go func() {
			defer consWG.Done()
			for consumed.Load() < producers*perProd {
				img, fut, err := q.Pop(20 * time.Millisecond)
				if errors.IsTimeout(err) {
					continue
				}
				if !assert.NoError(t, err) {
					return
				}
				fut.Resolve(img, nil)
				consumed.Add(1)
			}
		}()
	}

	prodWG.Wait()
	consWG.Wait()
	close(stop)
	samplerWG.Wait()

	assert.Equal(t, int64(0), violations.Load(), "count bounds violated")
	assert.Equal(t, int64(producers*perProd), consumed.Load())
	assert.Equal(t, 0, q.Len())
	require.Len(t, futures, producers*perProd)
	for _, fut := range futures {
		assert.True(t, fut.IsResolved())
		assert.Equal(t, 1, fut.Resolutions())
	}
}

func TestSnapshot(t *testing.T) {
	q := mustQueue(t, 4)

	first, err := q.Push(newImage("one.png", 1))
	require.NoError(t, err)
	_, err = q.Push(newImage("two.png", 2))
	require.NoError(t, err)

	snap := q.Snapshot()
	assert.Equal(t, 2, snap.Size)
	assert.Equal(t, 4, snap.Capacity)
	require.Len(t, snap.Slots, 4)

	assert.Equal(t, SlotPending, snap.Slots[0].State)
	assert.Equal(t, "one.png", snap.Slots[0].Name)
	assert.Equal(t, 1, snap.Slots[0].ProducerID)
	assert.Same(t, first, snap.Slots[0].Future)
	assert.Equal(t, SlotPending, snap.Slots[1].State)
	assert.Equal(t, SlotEmpty, snap.Slots[2].State)
	assert.Equal(t, SlotEmpty, snap.Slots[3].State)

	// Snapshots never mutate the queue
	assert.Equal(t, 2, q.Len())

	first.Resolve(nil, nil)
	assert.Equal(t, SlotResolved, q.Snapshot().Slots[0].State)

	// Wrap the ring and check Occupied ordering starts at head
	_, _, err = q.Pop(time.Second)
	require.NoError(t, err)
	_, err = q.Push(newImage("three.png", 1))
	require.NoError(t, err)
	_, err = q.Push(newImage("four.png", 1))
	require.NoError(t, err)
	_, err = q.Push(newImage("five.png", 1))
	require.NoError(t, err)

	snap = q.Snapshot()
	var names []string
	for _, v := range snap.Occupied() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"two.png", "three.png", "four.png", "five.png"}, names)
	assert.Equal(t, "five.png", snap.Slots[0].Name)
	assert.Equal(t, int64(3), q.Stats().Snapshots())
}

func TestSlotState_String(t *testing.T) {
	assert.Equal(t, "empty", SlotEmpty.String())
	assert.Equal(t, "pending", SlotPending.String())
	assert.Equal(t, "resolved", SlotResolved.String())
	assert.Equal(t, "unknown", SlotState(7).String())
}

func TestWithMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	q := mustQueue(t, 2, WithMetrics(registry, "queue"))

	_, err := q.Push(newImage("a", 1))
	require.NoError(t, err)
	_, err = q.Push(newImage("b", 1))
	require.NoError(t, err)
	_, _, err = q.Pop(time.Second)
	require.NoError(t, err)
	_, _, _ = q.Pop(time.Second)
	_, _, err = q.Pop(10 * time.Millisecond)
	assert.True(t, errors.IsTimeout(err))

	assert.Equal(t, 2.0, promtestutil.ToFloat64(q.metrics.pushes))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(q.metrics.pops))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(q.metrics.popTimeouts))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(q.metrics.size))

	// Same prefix twice is an allocation failure
	_, err = New(2, WithMetrics(registry, "queue"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAllocationFailed)
}

func TestPushContextNoGoroutineLeaks(t *testing.T) {
	initialGoroutines := countGoroutines()

	q := mustQueue(t, 1)
	_, err := q.Push(newImage("fill", 1))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := q.PushContext(ctx, newImage("blocked", 1))
		assert.Error(t, err)
		cancel()
	}

	// The failed pushes left the queue untouched
	assert.Equal(t, 1, q.Len())

	time.Sleep(50 * time.Millisecond)

	finalGoroutines := countGoroutines()
	if finalGoroutines > initialGoroutines+2 {
		t.Errorf("Potential goroutine leak: started with %d, ended with %d", initialGoroutines, finalGoroutines)
	}
}

// Helper function to count goroutines for leak detection
func countGoroutines() int {
	return runtime.NumGoroutine()
}
