package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mediacopier/internal/logging"
)

// UIStateStore persists a flat key-value snapshot for front ends (last
// selected destination, window layout, and similar). Same corruption
// contract as the stats store.
type UIStateStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewUIStateStore creates a store writing to path.
func NewUIStateStore(path string, logger *slog.Logger) *UIStateStore {
	return &UIStateStore{path: path, logger: logging.NewComponentLogger(logger, "ui-state")}
}

// Get returns the value for key, or fallback when absent.
func (s *UIStateStore) Get(key, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.loadLocked()[key]; ok {
		return v
	}
	return fallback
}

// Set stores one key and persists the snapshot.
func (s *UIStateStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.loadLocked()
	snapshot[key] = value
	return s.saveLocked(snapshot)
}

// All returns a copy of the full snapshot.
func (s *UIStateStore) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *UIStateStore) loadLocked() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("read ui state file", logging.Error(err))
		}
		return map[string]string{}
	}
	var snapshot map[string]string
	if err := json.Unmarshal(data, &snapshot); err != nil || snapshot == nil {
		if err != nil {
			s.logger.Error("corrupt ui state file, using defaults", logging.Error(err))
		}
		return map[string]string{}
	}
	return snapshot
}

func (s *UIStateStore) saveLocked(snapshot map[string]string) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ui state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ui state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace ui state file: %w", err)
	}
	return nil
}
