package sync

import (
	"errors"
	"fmt"
)

// Skip reason constants
const (
	// ReasonGateClosed means the task gate was false at tick time
	ReasonGateClosed = "gate-closed"
	// ReasonAlreadyInProgress means the previous run has not completed yet
	ReasonAlreadyInProgress = "sync-already-in-progress"
	// ReasonPreconditionNotMet means a supporting service is not started
	ReasonPreconditionNotMet = "precondition-not-met"
	// ReasonUpToDate means the data is loaded and the current view needs no refresh
	ReasonUpToDate = "up-to-date"
	// ReasonNoMatches means no entity matched the pre-load filter
	ReasonNoMatches = "no-matches"
)

// Failure reason constants
const (
	// ReasonCompileFailed means the request filters could not be rendered
	ReasonCompileFailed = "CompileFailed"
	// ReasonFetchFailed means the request failed or returned an error status
	ReasonFetchFailed = "FetchFailed"
	// ReasonMapFailed means the response could not be applied
	ReasonMapFailed = "MapFailed"
)

// Error represents a failed task run
type Error struct {
	Err     error
	Task    string
	Reason  string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("task %s: %s: %v", e.Task, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a task failure with the given reason
func NewError(task, reason string, err error) *Error {
	return &Error{Err: err, Task: task, Reason: reason}
}

// ReasonOf returns the failure reason carried by err, or ReasonFetchFailed
// for errors that are not a *Error
func ReasonOf(err error) string {
	var syncErr *Error
	if errors.As(err, &syncErr) && syncErr.Reason != "" {
		return syncErr.Reason
	}
	return ReasonFetchFailed
}
