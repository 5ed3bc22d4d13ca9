package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks queue activity.
type Statistics struct {
	// Atomic counters for thread-safe updates
	pushes      int64
	pops        int64
	snapshots   int64
	pushWaits   int64
	popTimeouts int64

	// Protected by mutex
	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
	queuedBytes int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Push records an enqueue that left the queue at size and added n pixel bytes.
func (s *Statistics) Push(size, n int64) {
	atomic.AddInt64(&s.pushes, 1)
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.queuedBytes += n
	s.mu.Unlock()
}

// Pop records a dequeue that left the queue at size and removed n pixel bytes.
func (s *Statistics) Pop(size, n int64) {
	atomic.AddInt64(&s.pops, 1)
	s.mu.Lock()
	s.currentSize = size
	s.queuedBytes -= n
	s.mu.Unlock()
}

// Snapshot records an observer snapshot.
func (s *Statistics) Snapshot() {
	atomic.AddInt64(&s.snapshots, 1)
}

// PushWait records a push that found the queue full and had to block.
func (s *Statistics) PushWait() {
	atomic.AddInt64(&s.pushWaits, 1)
}

// PopTimeout records a pop that gave up waiting.
func (s *Statistics) PopTimeout() {
	atomic.AddInt64(&s.popTimeouts, 1)
}

// Pushes returns the total number of successful pushes.
func (s *Statistics) Pushes() int64 {
	return atomic.LoadInt64(&s.pushes)
}

// Pops returns the total number of successful pops.
func (s *Statistics) Pops() int64 {
	return atomic.LoadInt64(&s.pops)
}

// Snapshots returns the total number of snapshots taken.
func (s *Statistics) Snapshots() int64 {
	return atomic.LoadInt64(&s.snapshots)
}

// PushWaits returns how many pushes blocked on a full queue.
func (s *Statistics) PushWaits() int64 {
	return atomic.LoadInt64(&s.pushWaits)
}

// PopTimeouts returns how many pops timed out.
func (s *Statistics) PopTimeouts() int64 {
	return atomic.LoadInt64(&s.popTimeouts)
}

// CurrentSize returns the current number of items in the queue.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the maximum number of items the queue has held.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// QueuedBytes returns the pixel bytes currently owned by the queue.
func (s *Statistics) QueuedBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queuedBytes
}

// Throughput returns the average number of pushes per second.
func (s *Statistics) Throughput() float64 {
	elapsed := s.Uptime()
	if elapsed == 0 {
		return 0.0
	}
	return float64(s.Pushes()) / elapsed.Seconds()
}

// PopThroughput returns the average number of pops per second.
func (s *Statistics) PopThroughput() float64 {
	elapsed := s.Uptime()
	if elapsed == 0 {
		return 0.0
	}
	return float64(s.Pops()) / elapsed.Seconds()
}

// WaitRate returns the fraction of pushes that had to block (0.0 to 1.0).
func (s *Statistics) WaitRate() float64 {
	pushes := s.Pushes()
	if pushes == 0 {
		return 0.0
	}
	return float64(s.PushWaits()) / float64(pushes)
}

// Utilization returns the current queue utilization as a fraction (0.0 to 1.0).
func (s *Statistics) Utilization(capacity int64) float64 {
	if capacity == 0 {
		return 0.0
	}
	return float64(s.CurrentSize()) / float64(capacity)
}

// Uptime returns how long the queue has existed.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// StatsSummary is a snapshot of all statistics.
type StatsSummary struct {
	Pushes        int64         `json:"pushes" yaml:"pushes"`
	Pops          int64         `json:"pops" yaml:"pops"`
	Snapshots     int64         `json:"snapshots" yaml:"snapshots"`
	PushWaits     int64         `json:"push_waits" yaml:"push_waits"`
	PopTimeouts   int64         `json:"pop_timeouts" yaml:"pop_timeouts"`
	CurrentSize   int64         `json:"current_size" yaml:"current_size"`
	MaxSize       int64         `json:"max_size" yaml:"max_size"`
	QueuedBytes   int64         `json:"queued_bytes" yaml:"queued_bytes"`
	Throughput    float64       `json:"throughput" yaml:"throughput"`
	PopThroughput float64       `json:"pop_throughput" yaml:"pop_throughput"`
	WaitRate      float64       `json:"wait_rate" yaml:"wait_rate"`
	Uptime        time.Duration `json:"uptime" yaml:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Pushes:        s.Pushes(),
		Pops:          s.Pops(),
		Snapshots:     s.Snapshots(),
		PushWaits:     s.PushWaits(),
		PopTimeouts:   s.PopTimeouts(),
		CurrentSize:   s.CurrentSize(),
		MaxSize:       s.MaxSize(),
		QueuedBytes:   s.QueuedBytes(),
		Throughput:    s.Throughput(),
		PopThroughput: s.PopThroughput(),
		WaitRate:      s.WaitRate(),
		Uptime:        s.Uptime(),
	}
}
