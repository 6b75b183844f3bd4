package worker

import "errors"

// Pool lifecycle and submission errors.
var (
	// ErrNilProcessor is raised when a pool is created without a processor.
	ErrNilProcessor = errors.New("worker pool requires a processor function")
	// ErrPoolNotStarted is returned when work is submitted before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")
	// ErrPoolStopped is returned when work is submitted after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("worker pool queue full")
	// ErrStopTimeout is returned when workers fail to drain before the
	// stop deadline.
	ErrStopTimeout = errors.New("worker pool stop timed out")
)
