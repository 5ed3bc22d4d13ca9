package pipeline

import (
	"log/slog"
	"sync/atomic"

	"github.com/c360/pixelflow/metric"
	"github.com/c360/pixelflow/pkg/buffer"
)

// Shared is the state every task of one run receives at spawn time.
type Shared struct {
	Queue   buffer.Queue
	Tasks   *TaskTable
	Metrics *metric.Metrics // nil disables pipeline-level metrics
	Logger  *slog.Logger

	running atomic.Bool
}

// NewShared bundles the run state. The running flag starts cleared.
func NewShared(queue buffer.Queue, tasks *TaskTable, metrics *metric.Metrics, logger *slog.Logger) *Shared {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shared{
		Queue:   queue,
		Tasks:   tasks,
		Metrics: metrics,
		Logger:  logger,
	}
}

// Start sets the running flag.
func (s *Shared) Start() {
	s.running.Store(true)
}

// Stop clears the running flag. Only the first call returns true.
func (s *Shared) Stop() bool {
	return s.running.CompareAndSwap(true, false)
}

// Running reports whether the run has not been told to stop.
func (s *Shared) Running() bool {
	return s.running.Load()
}
