// Package backoff provides exponential backoff calculation for retry loops.
package backoff

import (
	"math"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 500ms
	Max     time.Duration // default: 30s
}

// Exponential calculates exponential backoff for a given attempt.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc., capped at max.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 500 * time.Millisecond
	maxBackoff := 30 * time.Second
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
	}

	if attempt < 1 {
		return initial
	}
	delay := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if delay > float64(maxBackoff) {
		delay = float64(maxBackoff)
	}
	return time.Duration(delay)
}
