// Package status provides task sync status tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

// StatusPersistence defines the interface for task status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus stores the status of one task
	SaveStatus(ctx context.Context, taskName string, status *TaskStatus) error

	// LoadAllStatus loads the stored status of every task.
	// Returns an empty map when nothing was stored yet.
	LoadAllStatus(ctx context.Context) (map[string]*TaskStatus, error)
}

// fileStatusPersistence keeps every task status in one JSON document
type fileStatusPersistence struct {
	path string

	mu       sync.Mutex
	statuses map[string]*TaskStatus
}

// NewFileStatusPersistence creates a file-based status persistence writing to path
func NewFileStatusPersistence(path string) StatusPersistence {
	return &fileStatusPersistence{path: path}
}

// SaveStatus rewrites the status file with the new value for taskName
func (f *fileStatusPersistence) SaveStatus(ctx context.Context, taskName string, status *TaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.statuses == nil {
		loaded, err := f.load()
		if err != nil {
			return err
		}
		f.statuses = loaded
	}

	statusCopy := *status
	f.statuses[taskName] = &statusCopy

	if err := ctx.Err(); err != nil {
		return err
	}
	return f.write()
}

// LoadAllStatus reads the status file
func (f *fileStatusPersistence) LoadAllStatus(_ context.Context) (map[string]*TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	loaded, err := f.load()
	if err != nil {
		return nil, err
	}
	f.statuses = loaded

	result := make(map[string]*TaskStatus, len(loaded))
	for name, st := range loaded {
		statusCopy := *st
		result[name] = &statusCopy
	}
	return result, nil
}

func (f *fileStatusPersistence) load() (map[string]*TaskStatus, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]*TaskStatus), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	statuses := make(map[string]*TaskStatus)
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status file: %w", err)
	}
	for name, st := range statuses {
		if st == nil {
			delete(statuses, name)
		}
	}
	return statuses, nil
}

// write replaces the status file atomically
func (f *fileStatusPersistence) write() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	data, err := json.MarshalIndent(f.statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}
