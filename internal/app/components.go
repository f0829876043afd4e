package app

import (
	"github.com/tqrg-bot/ambari-sync/internal/gate"
	"github.com/tqrg-bot/ambari-sync/internal/navigation"
	"github.com/tqrg-bot/ambari-sync/internal/store"
	"github.com/tqrg-bot/ambari-sync/internal/sync/coordinator"
	"github.com/tqrg-bot/ambari-sync/internal/sync/state"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Coordinator runs the update tasks and push channels
	Coordinator coordinator.Coordinator

	// StateService holds the outcome of every task run
	StateService state.TaskStateService

	// Store holds the synchronized datasets
	Store *store.Store

	// Gate is active while updates may run
	Gate *gate.Gate

	// Conditions derive the gate
	Conditions *gate.Conditions

	// Navigation tracks the current route
	Navigation *navigation.Tracker
}
