package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/model"
)

// Store persists the single workflow record as a human-readable JSON
// snapshot at a fixed path. Writes are whole-file overwrites through a temp
// file + rename, which is enough for the single-writer coordinator;
// concurrent external readers must tolerate a missing or torn file.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a store writing to the given snapshot path
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the snapshot path
func (s *Store) Path() string {
	return s.path
}

// Load returns the last persisted record, or a fresh default when the file
// is missing or fails to parse. A parse failure is logged, never fatal.
func (s *Store) Load() *model.WorkflowData {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read state file, starting fresh",
				zap.String("path", s.path),
				zap.Error(err))
		} else {
			s.logger.Info("No state file, starting fresh", zap.String("path", s.path))
		}
		return model.NewWorkflowData()
	}

	data := model.NewWorkflowData()
	if err := json.Unmarshal(raw, data); err != nil {
		s.logger.Warn("Failed to parse state file, starting fresh",
			zap.String("path", s.path),
			zap.Error(err))
		return model.NewWorkflowData()
	}

	s.logger.Info("Loaded workflow state", zap.String("state", data.State.String()))
	return data
}

// Save serializes the full record, creating parent directories as needed
func (s *Store) Save(data *model.WorkflowData) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.logger.Debug("Saved workflow state", zap.String("state", data.State.String()))
	return nil
}
