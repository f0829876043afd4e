package status

import "time"

// SyncPhase represents the outcome of the latest run of a task
type SyncPhase string

const (
	// SyncPhasePending means the task has not run yet
	SyncPhasePending SyncPhase = "Pending"

	// SyncPhaseSyncing means a run is in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means the latest run completed successfully
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseSkipped means the latest run decided there was nothing to fetch
	SyncPhaseSkipped SyncPhase = "Skipped"

	// SyncPhaseFailed means the latest run failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// TaskStatus represents the synchronization state of one task
type TaskStatus struct {
	// Phase represents the current synchronization phase
	Phase SyncPhase `json:"phase"`

	// Reason is a machine readable cause for Skipped and Failed phases
	Reason string `json:"reason,omitempty"`

	// Message provides additional information about the sync status
	Message string `json:"message,omitempty"`

	// LastAttempt is the timestamp of the last run
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// AttemptCount is the number of runs since the last success
	AttemptCount int `json:"attemptCount,omitempty"`

	// LastSyncTime is the timestamp of the last successful run
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// ItemCount is the number of items in the last successful payload
	ItemCount int `json:"itemCount,omitempty"`
}

// Start marks a run as begun at now
func (s *TaskStatus) Start(now time.Time) {
	s.Phase = SyncPhaseSyncing
	s.Reason = ""
	s.Message = ""
	s.LastAttempt = &now
	s.AttemptCount++
}

// Complete marks the run as successful at now
func (s *TaskStatus) Complete(now time.Time, items int) {
	s.Phase = SyncPhaseComplete
	s.Reason = ""
	s.Message = ""
	s.LastSyncTime = &now
	s.AttemptCount = 0
	s.ItemCount = items
}

// Skip marks the run as finished without fetching
func (s *TaskStatus) Skip(reason string) {
	s.Phase = SyncPhaseSkipped
	s.Reason = reason
	s.Message = ""
	s.AttemptCount = 0
}

// Fail marks the run as failed
func (s *TaskStatus) Fail(reason, message string) {
	s.Phase = SyncPhaseFailed
	s.Reason = reason
	s.Message = message
}
