// Package sync holds the vocabulary shared by the update engine packages:
// the reasons a scheduled tick does not run or a task fails, and the
// structured Error reported for failed task runs.
//
// # Skip reasons
//
// A timer tick of an armed task is a no-op when
//
//   - the task gate is closed (ReasonGateClosed)
//   - the previous run of the task is still in flight (ReasonAlreadyInProgress)
//
// Task runs can also finish early without touching the network:
//
//   - a supporting service is not started (ReasonPreconditionNotMet)
//   - the data is already loaded and the current view does not need a refresh (ReasonUpToDate)
//   - no entity matched the pre-load filter (ReasonNoMatches)
//
// # Errors
//
// Error carries the task name and a failure reason (ReasonCompileFailed,
// ReasonFetchFailed, ReasonMapFailed) next to the wrapped cause, so callers can
// use errors.Is/As on the cause and still report the reason in task status.
//
// The coordinator subpackage wires tasks and push channels to the global gate,
// and the state subpackage tracks per-task sync status.
package sync
