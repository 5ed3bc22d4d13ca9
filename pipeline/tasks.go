package pipeline

import (
	"sync"
	"time"
)

// Role distinguishes producer and consumer slots in the TaskTable.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
	RoleObserver Role = "observer"
)

// TaskMetrics is one task's counters.
type TaskMetrics struct {
	Role       Role          `json:"role" yaml:"role"`
	ID         int           `json:"id" yaml:"id"`
	Items      int           `json:"items" yaml:"items"`
	Failures   int           `json:"failures" yaml:"failures"`
	Total      time.Duration `json:"total_ns" yaml:"total"`
	Rank       int           `json:"rank" yaml:"rank"`
	Operations []string      `json:"operations,omitempty" yaml:"operations,omitempty"`
}

// Average returns Total divided by Items, or zero with no items.
func (m TaskMetrics) Average() time.Duration {
	if m.Items == 0 {
		return 0
	}
	return m.Total / time.Duration(m.Items)
}

// TaskTable holds one TaskMetrics per producer and consumer. Slots are
// allocated up front and only mutated under mu. Finish ranks come from a
// separate counter per role, starting at 1.
type TaskTable struct {
	mu        sync.Mutex
	producers []TaskMetrics
	consumers []TaskMetrics

	rankMu sync.Mutex
	ranks  map[Role]int
}

// NewTaskTable allocates slots for the given task counts.
func NewTaskTable(producers, consumers int) *TaskTable {
	t := &TaskTable{
		producers: make([]TaskMetrics, producers),
		consumers: make([]TaskMetrics, consumers),
		ranks:     make(map[Role]int),
	}
	for i := range t.producers {
		t.producers[i] = TaskMetrics{Role: RoleProducer, ID: i}
	}
	for i := range t.consumers {
		t.consumers[i] = TaskMetrics{Role: RoleConsumer, ID: i}
	}
	return t
}

func (t *TaskTable) slot(role Role, id int) *TaskMetrics {
	var slots []TaskMetrics
	switch role {
	case RoleProducer:
		slots = t.producers
	case RoleConsumer:
		slots = t.consumers
	}
	if id < 0 || id >= len(slots) {
		return nil
	}
	return &slots[id]
}

// Record adds one completed item and its elapsed time.
func (t *TaskTable) Record(role Role, id int, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.slot(role, id); s != nil {
		s.Items++
		s.Total += elapsed
	}
}

// Fail counts one failed item.
func (t *TaskTable) Fail(role Role, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.slot(role, id); s != nil {
		s.Failures++
	}
}

// SetOperations stores the transform names a consumer applies.
func (t *TaskTable) SetOperations(role Role, id int, ops []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.slot(role, id); s != nil {
		s.Operations = append([]string(nil), ops...)
	}
}

// Finish assigns the next finish rank for role to the task and returns it.
func (t *TaskTable) Finish(role Role, id int) int {
	t.rankMu.Lock()
	t.ranks[role]++
	rank := t.ranks[role]
	t.rankMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.slot(role, id); s != nil {
		s.Rank = rank
	}
	return rank
}

// Producers returns a copy of the producer slots.
func (t *TaskTable) Producers() []TaskMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TaskMetrics(nil), t.producers...)
}

// Consumers returns a copy of the consumer slots.
func (t *TaskTable) Consumers() []TaskMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TaskMetrics(nil), t.consumers...)
}
