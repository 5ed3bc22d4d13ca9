package buffer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/c360/pixelflow/payload"
	"github.com/c360/pixelflow/pkg/future"
)

// Result is the completion handle returned by Push.
type Result = future.Future[*payload.Image]

// Queue is the contract the pipeline tasks depend on.
type Queue interface {
	// Push enqueues a copy of img, blocking while the queue is full.
	Push(img *payload.Image) (*Result, error)

	// PushContext is Push with cancellation.
	PushContext(ctx context.Context, img *payload.Image) (*Result, error)

	// Pop dequeues the oldest item, waiting at most timeout.
	// It returns errors.ErrTimedOut if nothing arrived in time.
	Pop(timeout time.Duration) (*payload.Image, *Result, error)

	// PopContext is Pop bounded by ctx instead of a timeout.
	PopContext(ctx context.Context) (*payload.Image, *Result, error)

	// Len returns the number of occupied slots.
	Len() int

	// Capacity returns the fixed slot count.
	Capacity() int

	// Snapshot returns a consistent per-slot view.
	Snapshot() Snapshot
}

// SlotState describes one ring position in a Snapshot.
type SlotState int

const (
	// SlotEmpty means the position holds no item.
	SlotEmpty SlotState = iota

	// SlotPending means an item waits and its future is unresolved.
	SlotPending

	// SlotResolved means an item is present but its future already resolved.
	SlotResolved
)

// String returns a human-readable representation of the slot state.
func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotPending:
		return "pending"
	case SlotResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// SlotView is the observer's copy of one ring position.
type SlotView struct {
	Index      int
	State      SlotState
	Name       string
	ProducerID int
	ItemID     uuid.UUID

	// Future is shared with the queue entry. Observers may only inspect it.
	Future *Result
}

// Snapshot is a point-in-time view of the whole ring.
type Snapshot struct {
	Size     int
	Capacity int
	Head     int
	Tail     int
	Slots    []SlotView
	Taken    time.Time
}

// Occupied returns the non-empty slots in ring order starting at Head.
func (s Snapshot) Occupied() []SlotView {
	out := make([]SlotView, 0, s.Size)
	for i := 0; i < s.Capacity && len(out) < s.Size; i++ {
		v := s.Slots[(s.Head+i)%s.Capacity]
		if v.State != SlotEmpty {
			out = append(out, v)
		}
	}
	return out
}
