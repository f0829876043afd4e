package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tqrg-bot/ambari-sync/internal/status"
)

// ErrUnknownTask is returned for tasks that were never initialized
var ErrUnknownTask = errors.New("unknown task")

type memoryStateService struct {
	statusPersistence status.StatusPersistence

	mu             sync.RWMutex
	cachedStatuses map[string]*status.TaskStatus
}

// NewMemoryStateService creates an in-memory task state service.
// A nil persistence keeps statuses in memory only.
func NewMemoryStateService(statusPersistence status.StatusPersistence) TaskStateService {
	return &memoryStateService{
		statusPersistence: statusPersistence,
		cachedStatuses:    make(map[string]*status.TaskStatus),
	}
}

func (m *memoryStateService) Initialize(ctx context.Context, taskNames []string) error {
	persisted := map[string]*status.TaskStatus{}
	if m.statusPersistence != nil {
		loaded, err := m.statusPersistence.LoadAllStatus(ctx)
		if err != nil {
			slog.Warn("Failed to load task statuses, initializing with defaults", "error", err)
		} else {
			persisted = loaded
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range taskNames {
		syncStatus, ok := persisted[name]
		switch {
		case !ok:
			syncStatus = &status.TaskStatus{Phase: status.SyncPhasePending}
		case syncStatus.Phase == status.SyncPhaseSyncing:
			// the previous process stopped during a run
			slog.Warn("Previous run was interrupted, resetting to Failed", "task", name)
			syncStatus.Fail("Interrupted", "Previous run was interrupted")
		}
		m.cachedStatuses[name] = syncStatus
	}
	return nil
}

func (m *memoryStateService) ListStatuses(_ context.Context) (map[string]*status.TaskStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a deep copy to prevent external modification
	result := make(map[string]*status.TaskStatus, len(m.cachedStatuses))
	for name, syncStatus := range m.cachedStatuses {
		statusCopy := *syncStatus
		result[name] = &statusCopy
	}
	return result, nil
}

func (m *memoryStateService) GetStatus(_ context.Context, taskName string) (*status.TaskStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	syncStatus, exists := m.cachedStatuses[taskName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, taskName)
	}
	statusCopy := *syncStatus
	return &statusCopy, nil
}

func (m *memoryStateService) UpdateStatusAtomically(
	ctx context.Context,
	taskName string,
	testAndUpdateFn func(syncStatus *status.TaskStatus) bool,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	syncStatus, exists := m.cachedStatuses[taskName]
	if !exists {
		return false, fmt.Errorf("%w: %s", ErrUnknownTask, taskName)
	}

	// work on a copy so a failed save leaves the cached status untouched
	updated := *syncStatus
	if !testAndUpdateFn(&updated) {
		return false, nil
	}

	if m.statusPersistence != nil {
		if err := m.statusPersistence.SaveStatus(ctx, taskName, &updated); err != nil {
			return false, fmt.Errorf("failed to persist status of %s: %w", taskName, err)
		}
	}
	m.cachedStatuses[taskName] = &updated
	return true, nil
}
