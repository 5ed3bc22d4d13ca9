package worker

import "errors"

// Sentinel errors for task group operations
var (
	// ErrGroupClosed indicates Go was called after Wait
	ErrGroupClosed = errors.New("task group closed")

	// ErrTaskPanicked indicates a task recovered from a panic
	ErrTaskPanicked = errors.New("task panicked")

	// ErrNilTask indicates a nil task function was provided
	ErrNilTask = errors.New("task function cannot be nil")
)
