// Package state persists small JSON state files: the run-summary history and
// the UI snapshot. Both follow the same contract: a missing file yields the
// default value, a corrupt file yields the default value and logs the error.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mediacopier/internal/logging"
)

// historyCap bounds the run-summary history to the most recent entries.
const historyCap = 100

// RunSummary records the outcome of one job run.
type RunSummary struct {
	JobID       string    `json:"job_id"`
	JobName     string    `json:"job_name"`
	OrderID     string    `json:"order_id,omitempty"`
	FilesCopied int       `json:"files_copied"`
	FilesFailed int       `json:"files_failed"`
	BytesCopied int64     `json:"bytes_copied"`
	Succeeded   bool      `json:"succeeded"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// StatsStore keeps an append-only history of run summaries, capped to the
// most recent 100, in a JSON file.
type StatsStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewStatsStore creates a store writing to path.
func NewStatsStore(path string, logger *slog.Logger) *StatsStore {
	return &StatsStore{path: path, logger: logging.NewComponentLogger(logger, "stats")}
}

// Append adds a summary, trimming history beyond the cap.
func (s *StatsStore) Append(summary RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.loadLocked()
	history = append(history, summary)
	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	return s.saveLocked(history)
}

// History returns the stored summaries, oldest first.
func (s *StatsStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *StatsStore) loadLocked() []RunSummary {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("read stats file", logging.Error(err))
		}
		return nil
	}
	var history []RunSummary
	if err := json.Unmarshal(data, &history); err != nil {
		s.logger.Error("corrupt stats file, starting fresh", logging.Error(err))
		return nil
	}
	return history
}

func (s *StatsStore) saveLocked(history []RunSummary) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace stats file: %w", err)
	}
	return nil
}
