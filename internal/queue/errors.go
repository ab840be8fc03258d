package queue

import "errors"

var (
	// ErrNotFound indicates the requested job id is not in the queue.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition indicates an illegal status change was requested.
	// Transitions out of a terminal status are always illegal.
	ErrInvalidTransition = errors.New("invalid status transition")
)
