// Package breaker implements the circuit breaker pattern used to isolate the
// order API from cascading failures.
//
// States:
//   - Closed: normal operation, calls pass through
//   - Open: too many consecutive failures, calls fail fast
//   - HalfOpen: cool-down elapsed, a single probe call is allowed
package breaker
