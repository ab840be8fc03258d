package backoff

import (
	"testing"
	"time"
)

func TestExponentialDefaults(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{20, 30 * time.Second}, // capped
	}
	for _, tt := range tests {
		if got := Exponential(tt.attempt, nil); got != tt.want {
			t.Errorf("Exponential(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialCustomConfig(t *testing.T) {
	cfg := &Config{Initial: 100 * time.Millisecond, Max: 250 * time.Millisecond}
	if got := Exponential(1, cfg); got != 100*time.Millisecond {
		t.Errorf("Exponential(1) = %v, want 100ms", got)
	}
	if got := Exponential(2, cfg); got != 200*time.Millisecond {
		t.Errorf("Exponential(2) = %v, want 200ms", got)
	}
	if got := Exponential(3, cfg); got != 250*time.Millisecond {
		t.Errorf("Exponential(3) = %v, want capped 250ms", got)
	}
}
