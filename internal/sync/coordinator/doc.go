// Package coordinator wires the update engine together: the polling task set,
// the push channel set and the global gate that switches both on and off.
//
// # Lifecycle
//
// New registers every update task with the scheduler and builds the push
// channel set. Start initializes the per-task sync status, subscribes to the
// gate and blocks until its context is cancelled:
//
//	coord, err := coordinator.New(client, push, stateSvc, cfg,
//	    coordinator.WithGate(g),
//	    coordinator.WithNavigation(tracker),
//	)
//	if err != nil {
//	    return err
//	}
//	go coord.Start(ctx)
//	...
//	coord.Stop()
//
// # Gate transitions
//
// Activation opens the push subscriptions first and then arms every task, so
// no push event arrives before the pollers that reconcile gaps exist.
// Deactivation disarms the tasks and then closes the subscriptions.
//
// # Tasks
//
// Periodic tasks poll the REST API and store each payload in the dataset
// store. Tasks with a zero interval run once per activation and can be run
// again with Refresh; the configuration push channel uses Refresh to reload
// cluster-env. Every run records its outcome (Syncing, Complete, Skipped or
// Failed) in the task state service.
//
// Runs are dispatched on their own goroutine. The scheduler guard keeps at
// most one run per task in flight; Refresh goes through the same guard.
package coordinator
