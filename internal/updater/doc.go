// Package updater drives named synchronization tasks on their own timers.
//
// Tasks are registered once and armed whenever the scheduler is started
// (the global gate turns active). Each task moves through three states:
//
//	IDLE     registered, no timer
//	ARMED    timer running, waiting for the next tick
//	RUNNING  action dispatched, waiting for its completion signal
//
// A tick runs the action only when the task gate is open and the task has no
// run in flight; otherwise it is skipped and the task stays ARMED. The action
// receives a done function that returns the task to ARMED and releases its
// in-flight marker. done is idempotent and also called when the action panics.
//
// Every arm runs the action once immediately; tasks with a zero interval get
// only that run. Tasks with a route pattern poll at their interval while the
// current route matches the pattern and at the off-route interval elsewhere.
// Navigation and interval changes reset the timer of an armed task without
// running it early.
package updater
