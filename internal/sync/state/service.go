// Package state contains logic for managing the sync state of update tasks.
package state

import (
	"context"

	"github.com/tqrg-bot/ambari-sync/internal/status"
)

// TaskStateService provides methods for inspecting and updating the sync state of tasks.
//
//go:generate mockgen -destination=mocks/mock_task_state_service.go -package=mocks github.com/tqrg-bot/ambari-sync/internal/sync/state TaskStateService
type TaskStateService interface {
	// Initialize populates the state store with the set of tasks.
	// It is intended that this is called at application startup.
	Initialize(ctx context.Context, taskNames []string) error
	// ListStatuses lists all available sync statuses.
	ListStatuses(ctx context.Context) (map[string]*status.TaskStatus, error)
	// GetStatus returns the status of the named task.
	GetStatus(ctx context.Context, taskName string) (*status.TaskStatus, error)
	// UpdateStatusAtomically fetches the status of the named task, applies
	// testAndUpdateFn to it and stores it when the function reports a change,
	// all as a single atomic action. The boolean result tells whether the
	// status was modified.
	UpdateStatusAtomically(
		ctx context.Context,
		taskName string,
		testAndUpdateFn func(syncStatus *status.TaskStatus) bool,
	) (bool, error)
}
