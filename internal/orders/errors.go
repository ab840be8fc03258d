package orders

import "errors"

var (
	// ErrInvalidResponse marks a response that parsed as JSON but violated the
	// API contract (missing required fields). Never retried.
	ErrInvalidResponse = errors.New("invalid response shape")

	// ErrTransient marks a retryable failure: network error, timeout, 5xx, or
	// a body that failed to parse as JSON.
	ErrTransient = errors.New("transient api failure")

	// ErrRejected marks an acknowledgment the service answered with success=false.
	ErrRejected = errors.New("request rejected by order service")
)
