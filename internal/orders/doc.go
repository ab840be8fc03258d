// Package orders implements the HTTP client for the remote order service.
// Every call carries a deadline, retries transient faults with exponential
// backoff, and passes through a shared circuit breaker so a failing service
// cannot cascade into the copy pipeline.
package orders
